package jsonvalue

import (
	"strings"
	"unicode/utf8"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
)

// parser is a small hand-written recursive-descent JSON decoder. It exists
// (instead of encoding/json + map[string]any) because Value needs ordered
// object iteration and verbatim number text, neither of which
// encoding/json's dynamic decoding preserves.
type parser struct {
	s   string
	pos int
}

func (p *parser) errf(format string, args ...interface{}) errors.E {
	return errors.WrapWith(errors.Errorf(format, args...), errs.Parse)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.s) {
		return 0, false
	}
	return p.s[p.pos], true
}

func (p *parser) parseValue() (Value, errors.E) {
	c, ok := p.peek()
	if !ok {
		return Null, p.errf("unexpected end of JSON input")
	}
	switch {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return Null, err
		}
		return NewString(s), nil
	case c == 't':
		return p.parseLiteral("true", NewBool(true))
	case c == 'f':
		return p.parseLiteral("false", NewBool(false))
	case c == 'n':
		return p.parseLiteral("null", Null)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return Null, p.errf("unexpected character %q at offset %d", c, p.pos)
	}
}

func (p *parser) parseLiteral(lit string, val Value) (Value, errors.E) {
	if p.pos+len(lit) > len(p.s) || p.s[p.pos:p.pos+len(lit)] != lit {
		return Null, p.errf("invalid literal at offset %d", p.pos)
	}
	p.pos += len(lit)
	return val, nil
}

func (p *parser) parseNumber() (Value, errors.E) {
	start := p.pos
	if b, ok := p.peek(); ok && b == '-' {
		p.pos++
	}
	for {
		b, ok := p.peek()
		if !ok || !(b >= '0' && b <= '9') {
			break
		}
		p.pos++
	}
	if b, ok := p.peek(); ok && b == '.' {
		p.pos++
		for {
			b, ok := p.peek()
			if !ok || !(b >= '0' && b <= '9') {
				break
			}
			p.pos++
		}
	}
	if b, ok := p.peek(); ok && (b == 'e' || b == 'E') {
		p.pos++
		if b, ok := p.peek(); ok && (b == '+' || b == '-') {
			p.pos++
		}
		for {
			b, ok := p.peek()
			if !ok || !(b >= '0' && b <= '9') {
				break
			}
			p.pos++
		}
	}
	if p.pos == start {
		return Null, p.errf("invalid number at offset %d", start)
	}
	return NewNumberString(p.s[start:p.pos]), nil
}

func (p *parser) parseString() (string, errors.E) {
	if b, ok := p.peek(); !ok || b != '"' {
		return "", p.errf("expected string at offset %d", p.pos)
	}
	p.pos++
	var b strings.Builder
	for {
		c, ok := p.peek()
		if !ok {
			return "", p.errf("unterminated string")
		}
		if c == '"' {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' {
			p.pos++
			esc, ok := p.peek()
			if !ok {
				return "", p.errf("unterminated escape sequence")
			}
			switch esc {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case '/':
				b.WriteByte('/')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				r, err := p.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				b.WriteRune(r)
				continue
			default:
				return "", p.errf("invalid escape sequence at offset %d", p.pos)
			}
			p.pos++
			continue
		}
		// Copy raw UTF-8 bytes through unchanged.
		_, size := utf8.DecodeRuneInString(p.s[p.pos:])
		b.WriteString(p.s[p.pos : p.pos+size])
		p.pos += size
	}
}

func (p *parser) parseUnicodeEscape() (rune, errors.E) {
	// p.pos is at 'u'.
	if p.pos+5 > len(p.s) {
		return 0, p.errf("truncated \\u escape")
	}
	hi, err := parseHex4(p.s[p.pos+1 : p.pos+5])
	if err != nil {
		return 0, p.errf("invalid \\u escape at offset %d", p.pos)
	}
	p.pos += 5
	if hi >= 0xD800 && hi <= 0xDBFF && p.pos+6 <= len(p.s) && p.s[p.pos] == '\\' && p.s[p.pos+1] == 'u' {
		lo, err := parseHex4(p.s[p.pos+2 : p.pos+6])
		if err == nil && lo >= 0xDC00 && lo <= 0xDFFF {
			p.pos += 6
			r := rune(0x10000 + (hi-0xD800)*0x400 + (lo - 0xDC00))
			return r, nil
		}
	}
	return rune(hi), nil
}

func parseHex4(s string) (int32, errors.E) {
	var v int32
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= c - '0'
		case c >= 'a' && c <= 'f':
			v |= c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v |= c - 'A' + 10
		default:
			return 0, errors.WrapWith(errors.New("invalid hex digit"), errs.Parse)
		}
	}
	return v, nil
}

func (p *parser) parseArray() (Value, errors.E) {
	p.pos++ // consume '['
	items := []Value{}
	p.skipSpace()
	if b, ok := p.peek(); ok && b == ']' {
		p.pos++
		return Value{typ: TypeArray, arr: items}, nil
	}
	for {
		p.skipSpace()
		item, err := p.parseValue()
		if err != nil {
			return Null, err
		}
		items = append(items, item)
		p.skipSpace()
		b, ok := p.peek()
		if !ok {
			return Null, p.errf("unterminated array")
		}
		if b == ',' {
			p.pos++
			continue
		}
		if b == ']' {
			p.pos++
			return Value{typ: TypeArray, arr: items}, nil
		}
		return Null, p.errf("expected ',' or ']' at offset %d", p.pos)
	}
}

func (p *parser) parseObject() (Value, errors.E) {
	p.pos++ // consume '{'
	obj := newObject()
	p.skipSpace()
	if b, ok := p.peek(); ok && b == '}' {
		p.pos++
		return Value{typ: TypeObject, obj: obj}, nil
	}
	for {
		p.skipSpace()
		key, err := p.parseString()
		if err != nil {
			return Null, err
		}
		p.skipSpace()
		if b, ok := p.peek(); !ok || b != ':' {
			return Null, p.errf("expected ':' at offset %d", p.pos)
		}
		p.pos++
		p.skipSpace()
		val, err := p.parseValue()
		if err != nil {
			return Null, err
		}
		if _, exists := obj.values[key]; !exists {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = val
		p.skipSpace()
		b, ok := p.peek()
		if !ok {
			return Null, p.errf("unterminated object")
		}
		if b == ',' {
			p.pos++
			continue
		}
		if b == '}' {
			p.pos++
			return Value{typ: TypeObject, obj: obj}, nil
		}
		return Null, p.errf("expected ',' or '}' at offset %d", p.pos)
	}
}
