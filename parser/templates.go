package parser

import "strings"

// UnnamedParam is an arbitrary string that can never be a valid parameter
// name, used as the sentinel "this field had no name" marker.
const UnnamedParam = "=0"

// FindParamNone is returned by ParsedFields.IndexOf for an absent parameter.
const FindParamNone = -1

// Value-normalization options for GetParsedFields.
const (
	TrimValue                  = 1 << iota // strip leading/trailing whitespace from the value
	TrimAndCollapseSpaceInValue            // also merge consecutive internal whitespace
	StripCommentsInValue                   // drop <!-- ... --> from the value
)

// TemplateField is one parsed {{...|param=value|...}} field.
type TemplateField struct {
	Param string
	Value string
	Index int // 1-based position among this template's fields
}

// ParsedFields indexes a Template's fields by (possibly implicit,
// "1"/"2"/...) parameter name.
type ParsedFields struct {
	ordered []TemplateField
	byName  map[string]*TemplateField
}

func newParsedFields(ordered []TemplateField) *ParsedFields {
	pf := &ParsedFields{ordered: ordered, byName: make(map[string]*TemplateField, len(ordered))}
	for i := range pf.ordered {
		pf.byName[pf.ordered[i].Param] = &pf.ordered[i]
	}
	return pf
}

// Get returns the value of param, or "" if it is not set.
func (pf *ParsedFields) Get(param string) string {
	if f, ok := pf.byName[param]; ok {
		return f.Value
	}
	return ""
}

// GetWithDefault returns the value of param, or defaultValue if it is not set.
func (pf *ParsedFields) GetWithDefault(param, defaultValue string) string {
	if f, ok := pf.byName[param]; ok {
		return f.Value
	}
	return defaultValue
}

// IndexOf returns the 1-based field index of param, or FindParamNone.
func (pf *ParsedFields) IndexOf(param string) int {
	if f, ok := pf.byName[param]; ok {
		return f.Index
	}
	return FindParamNone
}

// Contains reports whether param is set, including to an empty value.
func (pf *ParsedFields) Contains(param string) bool {
	_, ok := pf.byName[param]
	return ok
}

// Fields returns every field in template order. For duplicate parameter
// names, ParsedFields' by-name lookups keep only the last occurrence, but
// Fields itself returns all of them.
func (pf *ParsedFields) Fields() []TemplateField { return pf.ordered }

// GetParsedFields splits every field but the first (the name) into
// param/value pairs. Unnamed fields are numbered positionally starting at
// "1", independently of any explicit numeric parameter names used alongside
// them, matching MediaWiki's own template expansion.
func (t *Template) GetParsedFields(valueOptions int) *ParsedFields {
	size := 0
	if len(t.Fields) > 0 {
		size = len(t.Fields) - 1
	}
	ordered := make([]TemplateField, size)
	unnamed := 0
	for i := 0; i < size; i++ {
		field := &ordered[i]
		field.Index = i + 1
		field.Param, field.Value = t.splitParamValue(field.Index, true, valueOptions)
		if field.Param == UnnamedParam {
			unnamed++
			field.Param = strconvItoa(unnamed)
		}
	}
	return newParsedFields(ordered)
}

// SetFieldName renames field i, keeping its value and the whitespace
// surrounding the old parameter name where possible.
func (t *Template) SetFieldName(i int, name string) *List {
	oldParam, value := t.splitParamValue(i, false, 0)
	if oldParam == UnnamedParam {
		oldParam = ""
	}
	left, right := trimmedBorders(oldParam)
	if left == right {
		left, right = 0, 0
	}
	newText := oldParam[:left] + name + oldParam[right:] + "=" + value
	return t.SetField(i, NewList(NewText(newText)))
}

// SetFieldValue replaces field i's value, keeping its parameter name (if
// any) and the whitespace immediately surrounding the old value.
func (t *Template) SetFieldValue(i int, value string) *List {
	param, oldValue := t.splitParamValue(i, false, 0)
	left, right := trimmedBorders(oldValue)
	if left == right {
		left = 0
		if oldValue != "" && oldValue[0] == ' ' {
			left = 1
		}
		right = left
	}
	var b strings.Builder
	if param != UnnamedParam {
		b.WriteString(param)
		b.WriteByte('=')
	}
	b.WriteString(oldValue[:left])
	b.WriteString(value)
	b.WriteString(oldValue[right:])
	return t.SetField(i, NewList(NewText(b.String())))
}

// splitParamValue splits field i at its top-level, text-only '=' (if any).
// normalize applies name normalization to the parameter name; valueOptions
// is a mask of TrimValue / TrimAndCollapseSpaceInValue / StripCommentsInValue.
func (t *Template) splitParamValue(fieldIndex int, normalize bool, valueOptions int) (param, value string) {
	var paramBuf, valueBuf strings.Builder
	beforeEqual := true
	paramSet := false
	for _, node := range t.Fields[fieldIndex].Children {
		if beforeEqual {
			if text, ok := node.(*Text); ok {
				if eq := strings.IndexByte(text.Value, '='); eq >= 0 {
					// A "\n==" / "==\n" pattern is a heading inside the value, not
					// a parameter separator.
					isHeading := eq > 0 && text.Value[eq-1] == '\n' && eq < len(text.Value)-1 && text.Value[eq+1] == '='
					if !isHeading {
						beforeEqual = false
						paramBuf.WriteString(text.Value[:eq])
						param = paramBuf.String()
						paramSet = true
						valueBuf.WriteString(text.Value[eq+1:])
						continue
					}
				}
			}
		}
		if beforeEqual {
			paramBuf.WriteString(String(node))
		} else {
			valueBuf.WriteString(String(node))
		}
	}
	if !paramSet {
		param = UnnamedParam
		value = paramBuf.String()
	} else {
		if normalize {
			param = trimAndCollapseSpace(StripComments(param))
		}
		value = valueBuf.String()
	}
	if valueOptions&StripCommentsInValue != 0 {
		value = StripComments(value)
	}
	if valueOptions&TrimAndCollapseSpaceInValue != 0 {
		value = trimAndCollapseSpace(value)
	} else if valueOptions&TrimValue != 0 {
		value = strings.TrimSpace(value)
	}
	return param, value
}

func strconvItoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// trimmedBorders returns the [left, right) byte offsets of s with leading
// and trailing ASCII whitespace stripped.
func trimmedBorders(s string) (left, right int) {
	left, right = 0, len(s)
	for left < right && isASCIISpace(s[left]) {
		left++
	}
	for right > left && isASCIISpace(s[right-1]) {
		right--
	}
	return left, right
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// textOrCommentOnly returns l's text concatenated across Text children, and
// ok=false as soon as any non-Text, non-Comment child is found (Comment
// children are skipped, as in Link/Template target and name computation).
func textOrCommentOnly(l *List) (string, bool) {
	var b strings.Builder
	for _, n := range l.Children {
		switch v := n.(type) {
		case *Text:
			b.WriteString(v.Value)
		case *Comment:
			// Skipped: comments never contribute to a computed target/name.
		default:
			return "", false
		}
	}
	return b.String(), true
}

// computeTarget recomputes l's Target/Anchor from its first field, applying
// only when that field is text and comments.
// Namespace/interwiki resolution is out of scope here (wikiutil's title
// parser owns that); this only splits off the "#anchor" suffix.
func (l *Link) computeTarget() {
	l.target, l.anchor, l.targetIsText = "", "", false
	if len(l.Fields) == 0 {
		return
	}
	raw, ok := textOrCommentOnly(l.Fields[0])
	if !ok {
		return
	}
	target, anchor := splitAnchor(raw)
	if strings.Contains(target, "|") {
		return
	}
	l.target, l.anchor, l.targetIsText = target, anchor, true
}

func splitAnchor(raw string) (target, anchor string) {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i], raw[i:]
	}
	return raw, ""
}

// computeName recomputes t.Name from its first field, stripping one leading
// subst:/safesubst: wrapper. When the remaining text is empty up to a '#'
// (a parser function call such as "{{#if:...}}"), the '#'-prefixed part is
// kept verbatim as the name instead of being treated as an anchor.
func (t *Template) computeName() {
	t.name, t.nameIsText = "", false
	if len(t.Fields) == 0 {
		return
	}
	raw, ok := textOrCommentOnly(t.Fields[0])
	if !ok {
		return
	}
	raw = stripSubst(raw)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		if strings.TrimSpace(raw[:i]) == "" {
			t.name, t.nameIsText = raw[i:], true
			return
		}
		raw = raw[:i]
	}
	t.name, t.nameIsText = strings.TrimSpace(raw), true
}

func stripSubst(s string) string {
	trimmed := strings.TrimLeft(s, " \t\n\r")
	lower := strings.ToLower(trimmed)
	for _, prefix := range [...]string{"safesubst:", "subst:"} {
		if strings.HasPrefix(lower, prefix) {
			return trimmed[len(prefix):]
		}
	}
	return s
}

// IndexTemplatesByName walks root and returns every Template node keyed by
// its computed name, preserving document order within each name's slice.
func IndexTemplatesByName(root Node) map[string][]*Template {
	index := make(map[string][]*Template)
	ForEach(root, NTTemplate, PrefixDFS, func(n Node) bool {
		tmpl := n.(*Template)
		if name, ok := tmpl.Name(); ok && name != "" {
			index[name] = append(index[name], tmpl)
		}
		return true
	})
	return index
}
