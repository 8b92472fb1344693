package parser

import (
	"sort"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
)

// ErrorLevel selects how malformed wikicode is reported: Lenient repairs
// as much as possible silently, Strict returns a ParseError describing
// every repair made.
type ErrorLevel int

const (
	Lenient ErrorLevel = iota
	Strict
)

// warningKind is a set of independent bit flags: each bit can be
// independently enabled, though Parse only ever requests allWarnings under
// Strict.
type warningKind int

const (
	missingLinkClosure     warningKind = 1 << iota
	missingLinkOpening
	badLinkOpening
	linkWithLineBreak
	missingTemplateClosure
	missingTemplateOpening
	missingTagClosure
	missingTagOpening
	missingCommentClosure
	maxDepthReached
)

const allWarnings = -1

type warning struct {
	position int
	message  string
}

// warningsBuffer accumulates repair diagnostics during a parse and, under
// Strict, renders them as "<line>:<column>:<message> '<context>'" per line,
// sorted by source position.
type warningsBuffer struct {
	src     string
	enabled warningKind
	entries []warning
}

func newWarningsBuffer(src string, enabled warningKind) *warningsBuffer {
	return &warningsBuffer{src: src, enabled: enabled}
}

func (b *warningsBuffer) add(kind warningKind, position int, message string) {
	if b.enabled&kind == 0 {
		return
	}
	b.entries = append(b.entries, warning{position: position, message: message})
}

func (b *warningsBuffer) empty() bool { return len(b.entries) == 0 }

func (b *warningsBuffer) String() string {
	entries := append([]warning(nil), b.entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].position < entries[j].position })

	var text strings.Builder
	line, column := 1, 1
	p := 0
	for _, w := range entries {
		for ; p < w.position; p++ {
			column++
			if b.src[p] == '\n' {
				line++
				column = 1
			}
		}
		if text.Len() > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(strconv.Itoa(line))
		text.WriteByte(':')
		text.WriteString(strconv.Itoa(column))
		text.WriteByte(':')
		text.WriteString(w.message)
		text.WriteString(" '")
		for context := p; context < len(b.src); context++ {
			if context >= p+20 && b.src[context]&0xC0 != 0x80 {
				text.WriteString("...")
				break
			}
			if b.src[context] == '\n' {
				text.WriteByte(' ')
			} else {
				text.WriteByte(b.src[context])
			}
		}
		text.WriteByte('\'')
	}
	return text.String()
}

// ParseError is returned by Parse under Strict when the input required any
// repair; it is always wrapped with errs.Parse.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

func newParseError(message string) errors.E {
	return errors.WrapWith(&ParseError{Message: message}, errs.Parse)
}
