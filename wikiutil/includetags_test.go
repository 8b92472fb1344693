package wikiutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

func TestParseIncludeTags_PlainText(t *testing.T) {
	notT, trans := wikiutil.ParseIncludeTags("Hello world", nil)
	assert.Equal(t, "Hello world", notT)
	assert.Equal(t, "Hello world", trans)
}

func TestParseIncludeTags_IncludeOnly(t *testing.T) {
	notT, trans := wikiutil.ParseIncludeTags("A<includeonly>B</includeonly>C", nil)
	assert.Equal(t, "AC", notT)
	assert.Equal(t, "ABC", trans)
}

func TestParseIncludeTags_NoInclude(t *testing.T) {
	notT, trans := wikiutil.ParseIncludeTags("A<noinclude>B</noinclude>C", nil)
	assert.Equal(t, "ABC", notT)
	assert.Equal(t, "AC", trans)
}

func TestParseIncludeTags_OnlyIncludeSingleSection(t *testing.T) {
	notT, trans := wikiutil.ParseIncludeTags("A<onlyinclude>B</onlyinclude>C", nil)
	assert.Equal(t, "ABC", notT)
	assert.Equal(t, "B", trans)
}

func TestParseIncludeTags_OnlyIncludeMultipleSections(t *testing.T) {
	notT, trans := wikiutil.ParseIncludeTags("A<onlyinclude>B</onlyinclude>C<onlyinclude>D</onlyinclude>E", nil)
	assert.Equal(t, "ABCDE", notT)
	assert.Equal(t, "BD", trans)
}

func TestParseIncludeTags_CommentHidesInnerTagsButKeepsText(t *testing.T) {
	code := "A<!-- <includeonly> -->B"
	notT, trans := wikiutil.ParseIncludeTags(code, nil)
	// The includeonly tag inside the comment is never recognized as a real
	// tag, and the comment's own text passes through unmodified.
	assert.Equal(t, code, notT)
	assert.Equal(t, code, trans)
}

func TestParseIncludeTags_UnclosedComment(t *testing.T) {
	var errs []wikiutil.IncludeTagError
	code := "A<!-- unterminated"
	notT, trans := wikiutil.ParseIncludeTags(code, func(e wikiutil.IncludeTagError) { errs = append(errs, e) })
	assert.Equal(t, code, notT)
	assert.Equal(t, code, trans)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, wikiutil.ErrUnclosedComment, errs[0].Kind)
	}
}

func TestParseIncludeTags_NoWikiProtectsTags(t *testing.T) {
	code := "<nowiki><includeonly>X</includeonly></nowiki>"
	notT, trans := wikiutil.ParseIncludeTags(code, nil)
	// Tags inside <nowiki> are not parsed as real includeonly/noinclude tags.
	assert.Equal(t, code, notT)
	assert.Equal(t, code, trans)
}

func TestParseIncludeTags_UnclosedRawTextTag(t *testing.T) {
	var errs []wikiutil.IncludeTagError
	code := "<nowiki>abc"
	notT, trans := wikiutil.ParseIncludeTags(code, func(e wikiutil.IncludeTagError) { errs = append(errs, e) })
	assert.Equal(t, code, notT)
	assert.Equal(t, code, trans)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, wikiutil.ErrUnclosedTag, errs[0].Kind)
		assert.Equal(t, wikiutil.TagNoWiki, errs[0].Tag1)
	}
}

func TestParseIncludeTags_UnopenedClosingTag(t *testing.T) {
	var errs []wikiutil.IncludeTagError
	code := "</includeonly>"
	notT, trans := wikiutil.ParseIncludeTags(code, func(e wikiutil.IncludeTagError) { errs = append(errs, e) })
	// A stray closing tag is reported, then kept as literal text.
	assert.Equal(t, code, notT)
	assert.Equal(t, code, trans)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, wikiutil.ErrUnopenedTag, errs[0].Kind)
		assert.Equal(t, wikiutil.TagIncludeOnly, errs[0].Tag1)
	}
}

func TestParseIncludeTags_NestedOpenOpen(t *testing.T) {
	var errs []wikiutil.IncludeTagError
	notT, trans := wikiutil.ParseIncludeTags("<includeonly><includeonly>", func(e wikiutil.IncludeTagError) { errs = append(errs, e) })
	assert.Equal(t, "", notT)
	assert.Equal(t, "", trans)
	if assert.Len(t, errs, 2) {
		assert.Equal(t, wikiutil.ErrNestedOpenOpen, errs[0].Kind)
		assert.Equal(t, wikiutil.TagIncludeOnly, errs[0].Tag1)
		assert.Equal(t, wikiutil.ErrUnclosedTag, errs[1].Kind)
		assert.Equal(t, wikiutil.TagIncludeOnly, errs[1].Tag1)
	}
}

func TestParseIncludeTags_OpenCloseMismatch(t *testing.T) {
	var errs []wikiutil.IncludeTagError
	code := "<includeonly><noinclude></includeonly></noinclude>"
	notT, trans := wikiutil.ParseIncludeTags(code, func(e wikiutil.IncludeTagError) { errs = append(errs, e) })
	assert.Equal(t, "", notT)
	assert.Equal(t, "", trans)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, wikiutil.ErrOpenCloseMismatch, errs[0].Kind)
		assert.Equal(t, wikiutil.TagNoInclude, errs[0].Tag1)
		assert.Equal(t, wikiutil.TagIncludeOnly, errs[0].Tag2)
	}
}

func TestParseIncludeTags_NestedOpenAutoclose(t *testing.T) {
	var errs []wikiutil.IncludeTagError
	notT, trans := wikiutil.ParseIncludeTags("<includeonly>X<includeonly/>Y</includeonly>", func(e wikiutil.IncludeTagError) { errs = append(errs, e) })
	assert.Equal(t, "", notT)
	assert.Equal(t, "XY", trans)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, wikiutil.ErrNestedOpenAutoclose, errs[0].Kind)
		assert.Equal(t, wikiutil.TagIncludeOnly, errs[0].Tag1)
	}
}

func TestParseIncludeTags_IncludeonlyAndNoincludeTogether(t *testing.T) {
	var errs []wikiutil.IncludeTagError
	code := "<includeonly><noinclude>X</noinclude></includeonly>"
	notT, trans := wikiutil.ParseIncludeTags(code, func(e wikiutil.IncludeTagError) { errs = append(errs, e) })
	assert.Equal(t, "", notT)
	assert.Equal(t, "", trans)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, wikiutil.ErrIncludeonlyAndNoinclude, errs[0].Kind)
	}
}
