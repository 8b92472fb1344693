package parser

// tagContentKind classifies how a recognized parser-extension tag's content
// is parsed: rawTag keeps the content as one Text node,
// wikicodeTag recurses the parser over it. This is simplified compared to
// MediaWiki itself, which lets each extension tag parse its content in
// arbitrary ways, but it is enough to traverse common tags such as <ref> or
// <gallery>.
type tagContentKind int

const (
	rawTag tagContentKind = iota
	wikicodeTag
)

// parserExtensionTags lists the tag names the parser recognizes as
// structured Tag nodes; anything else is left as plain text.
var parserExtensionTags = map[string]tagContentKind{
	"categorytree":    rawTag,
	"ce":              rawTag,
	"chem":            rawTag,
	"gallery":         wikicodeTag,
	"graph":           rawTag,
	"hiero":           rawTag,
	"imagemap":        wikicodeTag,
	"indicator":       wikicodeTag,
	"inputbox":        wikicodeTag,
	"mapframe":        rawTag,
	"maplink":         wikicodeTag,
	"math":            rawTag,
	"nowiki":          rawTag,
	"poem":            wikicodeTag,
	"pre":             rawTag,
	"ref":             wikicodeTag,
	"references":      wikicodeTag,
	"score":           rawTag,
	"section":         wikicodeTag,
	"source":          rawTag,
	"syntaxhighlight": rawTag,
	"templatedata":    rawTag,
	"templatestyles":  rawTag,
	"timeline":        rawTag,
}

type tagKind int

const (
	openingTag tagKind = iota
	closingTag
	selfClosingTag
)

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func toLowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// parseTagNameAndType recognizes a "<name ...>", "</name>" or "<name .../>"
// opening at s[pos], where name is one of parserExtensionTags. It returns the
// position just past '>' and ok=false if s[pos] is not such a tag.
func parseTagNameAndType(s string, pos int) (newPos int, name string, kind tagKind, ok bool) {
	p := pos
	if p > len(s)-2 || s[p] != '<' {
		return 0, "", 0, false
	}
	p++
	kind = openingTag
	if s[p] == '/' {
		kind = closingTag
		p++
	}
	start := p
	for p < len(s) && isAlnum(s[p]) {
		p++
	}
	var buf []byte
	for i := start; i < p; i++ {
		buf = append(buf, toLowerByte(s[i]))
	}
	tagName := string(buf)
	if _, known := parserExtensionTags[tagName]; !known {
		return 0, "", 0, false
	}
	if p >= len(s) || (s[p] != ' ' && s[p] != '/' && s[p] != '>') {
		return 0, "", 0, false
	}
	for p < len(s) && s[p] != '<' && s[p] != '>' {
		p++
	}
	if p >= len(s) || s[p] != '>' {
		return 0, "", 0, false
	}
	if kind == openingTag && s[p-1] == '/' {
		kind = selfClosingTag
	}
	return p + 1, tagName, kind, true
}

type byteRange struct {
	begin, end int
}

func (r byteRange) empty() bool { return r.begin == r.end }

// closingTagFinder finds, for a given tag name and a non-decreasing sequence
// of start positions, the first closing tag at or after start, doing a
// single amortized-linear scan over the source.
type closingTagFinder struct {
	src             string
	parsingPosition int
	closingTags     map[string][]byteRange
}

func newClosingTagFinder(src string) *closingTagFinder {
	return &closingTagFinder{src: src, closingTags: map[string][]byteRange{}}
}

func (f *closingTagFinder) findClosingTag(tagName string, start int) byteRange {
	queue := f.closingTags[tagName]
	for len(queue) > 0 && queue[0].begin < start {
		queue = queue[1:]
	}
	p := f.parsingPosition
	if start > p {
		p = start
	}
	for len(queue) == 0 {
		idx := indexByteFrom(f.src, '<', p)
		if idx < 0 {
			p = len(f.src)
			break
		}
		p = idx
		tagBegin := p
		if newPos, name, kind, ok := parseTagNameAndType(f.src, p); ok {
			p = newPos
			if kind == closingTag {
				f.closingTags[name] = append(f.closingTags[name], byteRange{tagBegin, p})
				if name == tagName {
					queue = f.closingTags[name]
				}
			}
		} else {
			p++
		}
	}
	var result byteRange
	if len(queue) > 0 {
		result = queue[0]
		queue = queue[1:]
	}
	f.closingTags[tagName] = queue
	f.parsingPosition = p
	return result
}

func indexByteFrom(s string, c byte, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
