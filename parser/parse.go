package parser

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// codeParser lexes and reduces one span [pos, end) of a shared source
// string into a List. Tag content classified as wikicodeTag is parsed by a nested
// codeParser over the same src (never a copied substring), so that warning
// positions stay absolute and the shared closingTagFinder's non-decreasing
// start-position contract holds.
type codeParser struct {
	src   string
	pos   int
	end   int
	warnings *warningsBuffer
	tags     *closingTagFinder
	stack    *parserStack

	totalDepth int
}

func newCodeParser(src string, pos, end int, warnings *warningsBuffer, tags *closingTagFinder, maxDepth int) *codeParser {
	return &codeParser{src: src, pos: pos, end: end, warnings: warnings, tags: tags, stack: newParserStack(maxDepth)}
}

// Parse decodes wikicode into its node tree. Under
// Strict, any repair performed while parsing is reported as a single
// ParseError; under Lenient, the parser always succeeds and repairs
// silently.
func Parse(code string, level ErrorLevel) (*List, errors.E) {
	var enabled warningKind
	if level == Strict {
		enabled = allWarnings
	}
	wb := newWarningsBuffer(code, enabled)
	tf := newClosingTagFinder(code)
	cp := newCodeParser(code, 0, len(code), wb, tf, DefaultMaxDepth)
	result := cp.parseAll()
	if level == Strict && !wb.empty() {
		return nil, newParseError(wb.String())
	}
	return result, nil
}

func (p *codeParser) parseAll() *List {
	codeStart := p.pos
	for p.parseToken() {
		p.reduce()
	}
	p.reparseLinksIfNeeded(0)
	if p.stack.maxDepthReached {
		p.warnings.add(maxDepthReached, codeStart, "Maximum parser depth reached")
	}
	depth := 0
	index := 0
	list := p.constructList(&index, &depth, false)
	p.totalDepth = depth
	return list
}

// == Lexer ==

func (p *codeParser) parseComment() {
	commentEnd := -1
	for i := p.pos + 4; i <= p.end-3; i++ {
		if p.src[i] == '-' && p.src[i+1] == '-' && p.src[i+2] == '>' {
			commentEnd = i + 3
			break
		}
	}
	if commentEnd == -1 {
		p.warnings.add(missingCommentClosure, p.pos, "Unclosed comment")
		commentEnd = p.end
	}
	p.stack.pushNode(&Comment{Raw: p.src[p.pos:commentEnd]}, 1)
	p.pos = commentEnd
}

func (p *codeParser) parseTag() bool {
	tagEnd, tagName, kind, ok := parseTagNameAndType(p.src, p.pos)
	if !ok {
		return false
	}
	if kind == closingTag {
		p.warnings.add(missingTagOpening, p.pos, "Closing tag "+p.src[p.pos:tagEnd]+" without opening tag")
		return false
	}

	tag := &Tag{Name: tagName, Opening: p.src[p.pos:tagEnd]}
	innerDepth := 0

	if kind == openingTag {
		closing := p.tags.findClosingTag(tagName, tagEnd)
		if !closing.empty() && closing.end <= p.end {
			tag.Closing = p.src[closing.begin:closing.end]
		} else {
			p.warnings.add(missingTagClosure, p.pos, "Unclosed "+tag.Opening+" tag")
			if tagName != "pre" {
				return false
			}
			closing = byteRange{p.end, p.end}
		}
		switch parserExtensionTags[tagName] {
		case rawTag:
			content := p.src[tagEnd:closing.begin]
			tag.RawContent = true
			if content == "" {
				tag.Content = NewList()
				innerDepth = 1
			} else {
				tag.Content = NewList(NewText(content))
				innerDepth = 2
			}
		case wikicodeTag:
			// Reusing the same closingTagFinder for the tag content keeps
			// overall parsing amortized-linear: start values it sees stay
			// non-decreasing because this level's next findClosingTag call
			// (for the next tag) only happens once this subparse returns.
			sub := newCodeParser(p.src, tagEnd, closing.begin, p.warnings, p.tags, p.stack.maxDepth)
			tag.Content = sub.parseAll()
			innerDepth = sub.totalDepth
		}
		p.pos = closing.end
	} else {
		p.pos = tagEnd
	}

	p.stack.pushNode(tag, innerDepth+1)
	return true
}

func (p *codeParser) parseToken() bool {
	if p.pos >= p.end {
		return false
	}
	tokenBegin := p.pos
	switch p.src[tokenBegin] {
	case '<':
		if p.pos+3 < p.end && p.src[tokenBegin+1] == '!' && p.src[tokenBegin+2] == '-' && p.src[tokenBegin+3] == '-' {
			p.parseComment()
			return true
		} else if p.parseTag() {
			return true
		}
	case '[':
		if p.pos+1 < p.end && p.src[tokenBegin+1] == '[' {
			if p.pos+2 < p.end && p.src[tokenBegin+2] == '[' && !(p.pos+3 < p.end && p.src[tokenBegin+3] == '[') {
				p.pos += 3
				p.stack.pushToken(tokLinkBrokenBegin, tokenBegin, p.pos)
			} else {
				p.pos += 2
				p.stack.pushToken(tokLinkBegin, tokenBegin, p.pos)
			}
			return true
		}
	case '{':
		if p.pos+1 < p.end && p.src[tokenBegin+1] == '{' {
			p.pos += 2
			for p.pos < p.end && p.src[p.pos] == '{' {
				p.pos++
			}
			p.stack.pushToken(tokTemplateBegin, tokenBegin, p.pos)
			return true
		}
	case ']':
		if p.pos+1 < p.end && p.src[tokenBegin+1] == ']' {
			p.pos += 2
			p.stack.pushToken(tokLinkEnd, tokenBegin, p.pos)
			return true
		}
	case '}':
		if p.pos+1 < p.end && p.src[tokenBegin+1] == '}' {
			p.pos += 2
			for p.pos < p.end && p.src[p.pos] == '}' {
				p.pos++
			}
			p.stack.pushToken(tokTemplateEnd, tokenBegin, p.pos)
			return true
		}
	case '|':
		p.pos++
		p.stack.pushToken(tokPipe, tokenBegin, p.pos)
		return true
	}

	// At least one char (the one at tokenBegin) is certainly plain text;
	// consume a run of further plain-text chars too. This need not produce
	// the longest possible run between other tokens (e.g. "abc{def}" lexes
	// as ["abc", "{def", "}"]), since constructList concatenates adjacent
	// plain-text tokens back together.
scan:
	for p.pos++; p.pos < p.end; p.pos++ {
		switch p.src[p.pos] {
		case '<', '[', '{', ']', '}', '|':
			break scan
		}
	}
	p.stack.pushToken(tokPlainText, tokenBegin, p.pos)
	return true
}

// == Construction of nodes ==

// fieldsAppender is satisfied by *Link and *Template via FieldsHolder.
type fieldsAppender interface {
	appendField(l *List)
}

func (f *FieldsHolder) appendField(l *List) { f.Fields = append(f.Fields, l) }

// constructList builds a List out of stack elements starting at *index,
// stopping at stack end or (if stopOnPipe) at the first top-level '|'. It
// advances *index to the stopping point and raises *depth to at least the
// List's own construction depth. Elements it passes over are left
// unmodified; the caller is responsible for popping them once it knows the
// whole span it used.
func (p *codeParser) constructList(index *int, depth *int, stopOnPipe bool) *List {
	list := NewList()
	brokenLinkDepth := 0
	for *index < p.stack.size() {
		el := p.stack.at(*index)
		if el.isNode {
			if el.depth+1 > *depth {
				*depth = el.depth + 1
			}
			list.Append(el.node)
			*index++
			continue
		}
		if stopOnPipe && brokenLinkDepth == 0 && el.tok == tokPipe {
			break
		}
		if el.tok != tokPlainText {
			switch el.tok {
			case tokLinkBegin:
				p.warnings.add(missingLinkClosure, el.begin, "Unclosed link")
			case tokLinkBrokenBegin:
				p.warnings.add(badLinkOpening, el.begin, "Bad link opening")
				brokenLinkDepth++
			case tokLinkEnd:
				if brokenLinkDepth > 0 {
					brokenLinkDepth--
				} else {
					p.warnings.add(missingLinkOpening, el.begin, "Link closure without opening")
				}
			case tokTemplateBegin, tokTemplateBeginLeftover:
				message := "Unclosed template or variable"
				switch el.end - el.begin {
				case 1:
					message = "Extra brace at template or variable opening"
				case 2, 4:
					message = "Unclosed template"
				case 3:
					message = "Unclosed variable"
				}
				p.warnings.add(missingTemplateOpening, el.begin, message)
			case tokTemplateEnd:
				message := "Template or variable closure without opening"
				switch el.end - el.begin {
				case 1:
					message = "Extra brace at template or variable closure"
				case 2, 4:
					message = "Template closure without opening"
				case 3:
					message = "Variable closure without opening"
				}
				p.warnings.add(missingTemplateClosure, el.begin, message)
			}
		}
		list.Append(NewText(p.src[el.begin:el.end]))
		*index++
	}
	if list.Len() == 0 {
		if *depth < 1 {
			*depth = 1
		}
	} else if *depth < 2 {
		*depth = 2
	}
	return list
}

func (p *codeParser) constructNodeWithFields(index *int, depth *int, node fieldsAppender) {
	for {
		field := p.constructList(index, depth, true)
		node.appendField(field)
		if *index >= p.stack.size() {
			break
		}
		*index++
	}
}

func (p *codeParser) reduceLink() {
	openingIndex := p.stack.getLastLinkOpening(false)
	if openingIndex == -1 {
		return
	}
	opening := p.stack.at(openingIndex)
	if opening.tok == tokLinkBrokenBegin {
		p.stack.dropLinkBrokenOpening()
		return
	}
	p.stack.pop() // the TOKEN_LINK_END that triggered this reduction.

	link := &Link{}
	depth := 0
	index := openingIndex + 1
	p.constructNodeWithFields(&index, &depth, link)

	if p.warnings.enabled&linkWithLineBreak != 0 && len(link.Fields) > 0 {
		for _, node := range link.Fields[0].Children {
			if t, ok := node.(*Text); ok && strings.Contains(t.Value, "\n") {
				p.warnings.add(linkWithLineBreak, opening.begin, "Link whose target contains a line break")
				break
			}
		}
	}
	link.computeTarget()

	p.stack.popMany(openingIndex)
	p.stack.pushNode(link, depth+1)
}

func (p *codeParser) reduceTemplateOrVariable() {
	for {
		openingIndex := p.stack.getLastTemplateOpening(false)
		if openingIndex == -1 {
			return
		}
		closure := p.stack.pop()
		oldOpening := p.stack.at(openingIndex)
		opening := stackElement{tok: tokTemplateBegin, begin: oldOpening.begin, end: oldOpening.end}

		var newNode Node
		depth := 0
		if opening.end-opening.begin >= 3 && closure.end-closure.begin >= 3 {
			index := openingIndex + 1
			nameNode := p.constructList(&index, &depth, true)
			variable := &Variable{NameNode: nameNode}
			if index < p.stack.size() {
				index++
				variable.DefaultValue = p.constructList(&index, &depth, false)
			}
			opening.end -= 3
			closure.begin += 3
			newNode = variable
		} else {
			tmpl := &Template{}
			index := openingIndex + 1
			p.constructNodeWithFields(&index, &depth, tmpl)
			tmpl.computeName()
			opening.end -= 2
			closure.begin += 2
			newNode = tmpl
		}

		p.stack.popMany(openingIndex)
		if opening.end > opening.begin {
			if opening.end-opening.begin < 2 {
				opening.tok = tokTemplateBeginLeftover
			}
			p.stack.pushElement(opening)
		}
		p.stack.pushNode(newNode, depth+1)
		canReduce := closure.end-closure.begin >= 2
		if closure.end > closure.begin {
			p.stack.pushElement(closure)
		}
		if !canReduce {
			return
		}
	}
}

func (p *codeParser) reduce() {
	top := p.stack.back()
	if top.isNode {
		return
	}
	switch top.tok {
	case tokLinkEnd:
		p.reduceLink()
	case tokTemplateEnd:
		p.reduceTemplateOrVariable()
	}
}

// reparseLinksIfNeeded implements the parser's two-pass fallback: templates
// and variables should behave as if parsed before links, ignoring any
// unmatched "{{" left from that first pass. Rather than always parsing
// twice, the single-pass loop above only falls back to a second pass here,
// and only across the span where both an unmatched "[[" and an unmatched
// "{{" remain after it.
func (p *codeParser) reparseLinksIfNeeded(beginIndex int) {
	if !(p.stack.getLastTemplateOpening(true) >= beginIndex && p.stack.getLastLinkOpening(true) >= beginIndex) {
		return
	}
	var tail []stackElement
	for p.stack.size() > beginIndex {
		tail = append(tail, p.stack.pop())
	}
	for i := len(tail) - 1; i >= 0; i-- {
		el := tail[i]
		if !el.isNode && el.tok == tokTemplateBegin {
			el.tok = tokTemplateBeginLeftover
		}
		p.stack.pushElement(el)
		if back := p.stack.back(); !back.isNode && back.tok == tokLinkEnd {
			p.reduceLink()
		}
	}
}
