package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/orlodrimbot/mwbot/parser"
)

func TestIsSpaceOrComment(t *testing.T) {
	assert.True(t, parser.IsSpaceOrComment(""))
	assert.True(t, parser.IsSpaceOrComment(" "))
	assert.True(t, parser.IsSpaceOrComment(" \t\r\n"))
	assert.True(t, parser.IsSpaceOrComment("<!---->"))
	assert.True(t, parser.IsSpaceOrComment("<!-- test"))
	assert.True(t, parser.IsSpaceOrComment("<!-- test -->"))
	assert.True(t, parser.IsSpaceOrComment(" <!-- comment -->\n<!-- some other comment --> "))
	assert.False(t, parser.IsSpaceOrComment("a"))
	assert.False(t, parser.IsSpaceOrComment(" a "))
	assert.False(t, parser.IsSpaceOrComment(" <!-- test -->."))
	assert.False(t, parser.IsSpaceOrComment("\x00"))
	assert.True(t, parser.IsSpaceOrComment("<!--\x00-->"))
	assert.False(t, parser.IsSpaceOrComment("<!--\x00-->a"))
}

func TestStripComments(t *testing.T) {
	assert.Equal(t, "", parser.StripComments(""))
	assert.Equal(t, "test", parser.StripComments("test"))
	assert.Equal(t, "", parser.StripComments("<!-- test -->"))
	assert.Equal(t, "ac", parser.StripComments("a<!-- test -->c"))
	assert.Equal(t, "", parser.StripComments("<!-- test"))
	assert.Equal(t, "a", parser.StripComments("a<!-- test"))
	assert.Equal(t, "abc", parser.StripComments("a<!--test-->b<!--test2-->c"))
	assert.Equal(t, "ab-->c", parser.StripComments("a<!---->b-->c"))
	assert.Equal(t, "ac", parser.StripComments("a<!--->b-->c"))
	assert.Equal(t, "a\x00bc", parser.StripComments("a\x00b<!--\x00-->c"))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "<nowiki></nowiki>", parser.Escape(""))
	assert.Equal(t, "<nowiki>abc</nowiki>", parser.Escape("abc"))
	assert.Equal(t, "<nowiki>[[test]]</nowiki>", parser.Escape("[[test]]"))
	assert.Equal(t, "<nowiki>RFC 1234</nowiki>", parser.Escape("RFC 1234"))
	assert.Equal(t, "<nowiki>http://www.example.com/</nowiki>", parser.Escape("http://www.example.com/"))
	assert.Equal(t, "<nowiki>[//www.example.com]</nowiki>", parser.Escape("[//www.example.com]"))
	assert.Equal(t, "<nowiki>''test''</nowiki>", parser.Escape("''test''"))
	assert.Equal(t, "<nowiki>&lt;/nowiki></nowiki>", parser.Escape("</nowiki>"))
	assert.Equal(t, "<nowiki>&amp;amp;</nowiki>", parser.Escape("&amp;"))
}

func TestTitleLevel(t *testing.T) {
	assert.Equal(t, 0, parser.TitleLevel("Content"))
	assert.Equal(t, 1, parser.TitleLevel("=Content="))
	assert.Equal(t, 2, parser.TitleLevel("==Content=="))
	assert.Equal(t, 3, parser.TitleLevel("===Content==="))
	assert.Equal(t, 2, parser.TitleLevel("== Content=="))
	assert.Equal(t, 2, parser.TitleLevel("== Content =="))
	assert.Equal(t, 2, parser.TitleLevel("==Content== "))
	assert.Equal(t, 2, parser.TitleLevel("==  Content   ==    "))
	assert.Equal(t, 0, parser.TitleLevel(" ==Content=="))
	assert.Equal(t, 0, parser.TitleLevel("==Content"))
	assert.Equal(t, 1, parser.TitleLevel("==Content="))
	assert.Equal(t, 0, parser.TitleLevel("Content=="))
	assert.Equal(t, 1, parser.TitleLevel("=Content=="))
	assert.Equal(t, 0, parser.TitleLevel(""))
	assert.Equal(t, 0, parser.TitleLevel("="))
	assert.Equal(t, 0, parser.TitleLevel("=="))
	assert.Equal(t, 1, parser.TitleLevel("= ="))
	assert.Equal(t, 1, parser.TitleLevel("==="))
	assert.Equal(t, 1, parser.TitleLevel("===="))
	assert.Equal(t, 2, parser.TitleLevel("====="))
}

func TestTitleContent(t *testing.T) {
	assert.Equal(t, "Title 1", parser.TitleContent("=Title 1="))
	assert.Equal(t, "Title 2", parser.TitleContent("==Title 2=="))
	assert.Equal(t, "Title 3", parser.TitleContent("===Title 3==="))
	assert.Equal(t, "Title 4", parser.TitleContent("== Title 4=="))
	assert.Equal(t, "Title 5", parser.TitleContent("== Title 5 =="))
	assert.Equal(t, "Title 6", parser.TitleContent("==Title 6== "))
	assert.Equal(t, "Title 7", parser.TitleContent("==  Title 7   ==    "))
	assert.Equal(t, "=Title 8", parser.TitleContent("==Title 8="))
	assert.Equal(t, "Title 9=", parser.TitleContent("=Title 9=="))
	assert.Equal(t, "Title 10 =", parser.TitleContent("= Title 10 =="))
	assert.Equal(t, "", parser.TitleContent("= ="))
	assert.Equal(t, "=", parser.TitleContent("==="))
	assert.Equal(t, "==", parser.TitleContent("===="))
	assert.Equal(t, "=", parser.TitleContent("====="))
}
