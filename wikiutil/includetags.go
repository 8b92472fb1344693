package wikiutil

import "strings"

// IncludeTagName enumerates the tags include-tag parsing recognizes.
type IncludeTagName int

const (
	TagIncludeOnly IncludeTagName = iota
	TagNoInclude
	TagOnlyInclude
	// TagNoWiki and TagPre are only used as raw-text tags: ParseCallback is
	// never invoked with them.
	TagNoWiki
	TagPre
	TagComment

	tagNameCount = int(TagComment) + 1
)

// IncludeTagType is a tag's opening/closing/self-closing shape.
type IncludeTagType int

const (
	TagOpening IncludeTagType = iota
	TagClosing
	TagSelfClosing
)

// IncludeTagErrorKind enumerates the malformed-input conditions
// include-tag parsing can report.
type IncludeTagErrorKind int

const (
	ErrUnclosedComment IncludeTagErrorKind = iota
	ErrUnclosedTag
	ErrUnopenedTag
	ErrNestedOpenOpen
	ErrNestedOpenAutoclose
	ErrOpenCloseMismatch
	ErrIncludeonlyAndNoinclude
)

// IncludeTagError is reported through the optional onError callback of
// ParseIncludeTags; it never aborts parsing.
type IncludeTagError struct {
	Kind IncludeTagErrorKind
	Tag1 IncludeTagName
	Tag2 IncludeTagName
}

type includeTag struct {
	name IncludeTagName
	typ  IncludeTagType
}

func includeTagNameFromString(s string) (IncludeTagName, bool) {
	switch s {
	case "includeonly":
		return TagIncludeOnly, true
	case "noinclude":
		return TagNoInclude, true
	case "onlyinclude":
		return TagOnlyInclude, true
	case "nowiki":
		return TagNoWiki, true
	case "pre":
		return TagPre, true
	}
	return 0, false
}

// findNextIncludeTag scans code from start for the next recognized tag (or
// an opening HTML comment).
func findNextIncludeTag(code string, start int) (tagBegin, tagEnd int, tag includeTag, found bool) {
	position := start
	for {
		idx := strings.IndexByte(code[position:], '<')
		if idx < 0 {
			return 0, 0, includeTag{}, false
		}
		tagBegin = position + idx
		if strings.HasPrefix(code[tagBegin:], "<!--") {
			return tagBegin, tagBegin + 4, includeTag{name: TagComment, typ: TagOpening}, true
		}
		lastTagChar := strings.IndexAny(code[tagBegin+1:], "<>\n")
		if lastTagChar < 0 {
			position = len(code)
			continue
		}
		lastTagChar += tagBegin + 1
		if code[lastTagChar] != '>' {
			position = lastTagChar
			continue
		}
		tagEnd = lastTagChar + 1
		typ := TagOpening
		if code[tagBegin+1] == '/' {
			typ = TagClosing
		} else if code[lastTagChar-1] == '/' {
			typ = TagSelfClosing
		}
		nameStart := tagBegin + 1
		if typ == TagClosing {
			nameStart = tagBegin + 2
		}
		nameEnd := strings.IndexAny(code[nameStart:], " />")
		if nameEnd < 0 {
			nameEnd = len(code) - nameStart
		}
		nameEnd += nameStart
		name, ok := includeTagNameFromString(strings.ToLower(code[nameStart:nameEnd]))
		if ok {
			return tagBegin, tagEnd, includeTag{name: name, typ: typ}, true
		}
		position = tagEnd
	}
}

// enumIncludeTagsCallback receives either a plain-text token (tag == nil) or
// a recognized include/noinclude/onlyinclude tag's verbatim text.
type enumIncludeTagsCallback func(token string, tag *includeTag)

func enumIncludeTags(code string, onToken enumIncludeTagsCallback, onError func(IncludeTagError)) {
	var ignoreNextOpeningTags [tagNameCount]bool
	inRawTextTag := false
	rawTextTagName := TagIncludeOnly
	rawTextTagEnd := 0
	tokenStart := 0

	position := 0
	for {
		tagBegin, tagEnd, tag, found := findNextIncludeTag(code, position)
		if !found && !inRawTextTag {
			break
		}
		if inRawTextTag {
			if !found {
				onError(IncludeTagError{Kind: ErrUnclosedTag, Tag1: rawTextTagName})
				ignoreNextOpeningTags[rawTextTagName] = true
				tagEnd = rawTextTagEnd
				inRawTextTag = false
			} else if tag.name == rawTextTagName && tag.typ == TagClosing {
				inRawTextTag = false
			}
		} else if tag.name == TagIncludeOnly || tag.name == TagNoInclude || tag.name == TagOnlyInclude {
			if tokenStart < tagBegin {
				onToken(code[tokenStart:tagBegin], nil)
			}
			onToken(code[tagBegin:tagEnd], &tag)
			tokenStart = tagEnd
		} else if tag.name == TagComment {
			if end := strings.Index(code[tagEnd:], "-->"); end >= 0 {
				tagEnd += end + 3
			} else {
				onError(IncludeTagError{Kind: ErrUnclosedComment})
				tagEnd = len(code)
			}
		} else if tag.typ == TagOpening && !ignoreNextOpeningTags[tag.name] {
			inRawTextTag = true
			rawTextTagName = tag.name
			rawTextTagEnd = tagEnd
		} else if tag.typ == TagClosing {
			onError(IncludeTagError{Kind: ErrUnopenedTag, Tag1: tag.name})
		}
		position = tagEnd
	}
	if tokenStart < len(code) {
		onToken(code[tokenStart:], nil)
	}
}

// ParseIncludeTags walks code, recognizing only <includeonly>, <noinclude>,
// <onlyinclude>, the raw-text tags <nowiki>/<pre>, and <!-- --> comments in
// a single linear scan. onError receives every malformed-input condition found; it never stops
// parsing. If any <onlyinclude> is present, transcluded is formed from
// those sections only.
func ParseIncludeTags(code string, onError func(IncludeTagError)) (notTranscluded, transcluded string) {
	if onError == nil {
		onError = func(IncludeTagError) {}
	}
	var isTagOpen [tagNameCount]bool
	var openTags []IncludeTagName
	withOnlyInclude := false
	var notB, transB strings.Builder

	enumIncludeTags(code, func(token string, tag *includeTag) {
		addAsText := true
		if tag != nil {
			addAsText = false
			switch tag.typ {
			case TagOpening:
				if isTagOpen[tag.name] {
					onError(IncludeTagError{Kind: ErrNestedOpenOpen, Tag1: tag.name})
				} else {
					isTagOpen[tag.name] = true
					openTags = append(openTags, tag.name)
				}
				if tag.name == TagOnlyInclude && !withOnlyInclude {
					transB.Reset()
					withOnlyInclude = true
				}
			case TagClosing:
				if isTagOpen[tag.name] {
					isTagOpen[tag.name] = false
					if len(openTags) == 0 {
						// Internal inconsistency; safe to ignore.
					} else if openTags[len(openTags)-1] == tag.name {
						openTags = openTags[:len(openTags)-1]
					} else {
						onError(IncludeTagError{Kind: ErrOpenCloseMismatch, Tag1: openTags[len(openTags)-1], Tag2: tag.name})
						filtered := openTags[:0]
						for _, t := range openTags {
							if t != tag.name {
								filtered = append(filtered, t)
							}
						}
						openTags = filtered
					}
				} else {
					onError(IncludeTagError{Kind: ErrUnopenedTag, Tag1: tag.name})
					addAsText = true
				}
			case TagSelfClosing:
				if isTagOpen[tag.name] {
					onError(IncludeTagError{Kind: ErrNestedOpenAutoclose, Tag1: tag.name})
				}
			}
		}
		if addAsText {
			if !isTagOpen[TagIncludeOnly] {
				notB.WriteString(token)
			}
			if !isTagOpen[TagNoInclude] && (!withOnlyInclude || isTagOpen[TagOnlyInclude]) {
				transB.WriteString(token)
			}
			if isTagOpen[TagIncludeOnly] && isTagOpen[TagNoInclude] {
				onError(IncludeTagError{Kind: ErrIncludeonlyAndNoinclude})
			}
		}
	}, onError)

	if len(openTags) > 0 {
		onError(IncludeTagError{Kind: ErrUnclosedTag, Tag1: openTags[len(openTags)-1]})
	}
	return notB.String(), transB.String()
}
