// Package parser implements the wikicode lexer, its mutable tree, and tree
// traversal.
//
// For any byte string s, Parse(s, Lenient).String() == s: every node keeps
// enough of its original text that reconstruction is exact.
package parser

// NodeType tags the variant stored in a Node.
type NodeType int

const (
	NTList NodeType = iota
	NTText
	NTComment
	NTTag
	NTLink
	NTTemplate
	NTVariable
)

func (t NodeType) String() string {
	switch t {
	case NTList:
		return "List"
	case NTText:
		return "Text"
	case NTComment:
		return "Comment"
	case NTTag:
		return "Tag"
	case NTLink:
		return "Link"
	case NTTemplate:
		return "Template"
	case NTVariable:
		return "Variable"
	default:
		return "Unknown"
	}
}

// Node is the common interface of every element of a parsed wikicode tree.
// A Node owns its descendants: moving a subtree into another tree detaches
// it from its former parent, and Copy performs an explicit deep copy.
type Node interface {
	Type() NodeType
	// WriteTo appends this node's verbatim string representation to buf.
	WriteTo(buf *stringBuilder)
	// Copy returns a deep, independent copy of the node.
	Copy() Node
	// depth returns the construction-time nesting depth used by the
	// max-depth degrade-to-text rule.
	depth() int
}

// String returns n's exact wikicode text representation.
func String(n Node) string {
	var b stringBuilder
	n.WriteTo(&b)
	return b.String()
}

// stringBuilder is a tiny indirection so WriteTo implementations do not
// import strings.Builder directly in every file.
type stringBuilder struct {
	data []byte
}

func (b *stringBuilder) WriteString(s string) { b.data = append(b.data, s...) }
func (b *stringBuilder) WriteByte(c byte)      { b.data = append(b.data, c) }
func (b *stringBuilder) String() string        { return string(b.data) }

// List is an ordered sequence of children. The root of any parsed tree is
// always a List; a List never contains two adjacent Text children and never
// contains an empty Text child.
type List struct {
	Children []Node
	d        int
}

func NewList(children ...Node) *List {
	l := &List{Children: children}
	l.recomputeDepth()
	return l
}

func (l *List) Type() NodeType { return NTList }

func (l *List) WriteTo(buf *stringBuilder) {
	for _, c := range l.Children {
		c.WriteTo(buf)
	}
}

func (l *List) Copy() Node {
	children := make([]Node, len(l.Children))
	for i, c := range l.Children {
		children[i] = c.Copy()
	}
	return NewList(children...)
}

func (l *List) depth() int { return l.d }

func (l *List) recomputeDepth() {
	max := 0
	for _, c := range l.Children {
		if d := c.depth(); d > max {
			max = d
		}
	}
	l.d = max + 1
}

// Len returns the number of direct children.
func (l *List) Len() int { return len(l.Children) }

// Append adds a node at the end of the list, merging into a trailing Text
// node when both are Text (no adjacent Text children survive).
func (l *List) Append(n Node) {
	l.Insert(len(l.Children), n)
}

// Insert adds n at position i (0 <= i <= Len()), preserving the no-adjacent-
// Text and no-empty-Text invariants.
func (l *List) Insert(i int, n Node) {
	if t, ok := n.(*Text); ok && t.Value == "" {
		return
	}
	if t, ok := n.(*Text); ok {
		if i > 0 {
			if prev, ok := l.Children[i-1].(*Text); ok {
				prev.Value += t.Value
				l.recomputeDepth()
				return
			}
		}
		if i < len(l.Children) {
			if next, ok := l.Children[i].(*Text); ok {
				next.Value = t.Value + next.Value
				l.recomputeDepth()
				return
			}
		}
	}
	l.Children = append(l.Children, nil)
	copy(l.Children[i+1:], l.Children[i:])
	l.Children[i] = n
	l.recomputeDepth()
}

// RemoveAt removes and returns the child at position i.
func (l *List) RemoveAt(i int) Node {
	n := l.Children[i]
	l.Children = append(l.Children[:i], l.Children[i+1:]...)
	l.recomputeDepth()
	return n
}

// SetAt replaces the child at position i and returns the previous value.
func (l *List) SetAt(i int, n Node) Node {
	prev := l.Children[i]
	l.Children[i] = n
	l.recomputeDepth()
	return prev
}

// Text is an arbitrary string without any wikicode element interpreted by
// the parser. It is never empty within a well-formed tree.
type Text struct {
	Value string
}

func NewText(s string) *Text { return &Text{Value: s} }

func (t *Text) Type() NodeType          { return NTText }
func (t *Text) WriteTo(buf *stringBuilder) { buf.WriteString(t.Value) }
func (t *Text) Copy() Node              { return &Text{Value: t.Value} }
func (t *Text) depth() int              { return 1 }

// Comment is a substring starting with "<!--" and usually ending with
// "-->"; an unclosed comment extends to end of input.
type Comment struct {
	Raw string
}

func (c *Comment) Type() NodeType          { return NTComment }
func (c *Comment) WriteTo(buf *stringBuilder) { buf.WriteString(c.Raw) }
func (c *Comment) Copy() Node              { return &Comment{Raw: c.Raw} }
func (c *Comment) depth() int              { return 1 }

// Tag is a recognized MediaWiki parser-extension tag. Content is nil for
// self-closing tags and for tags with no closing tag
// (except <pre>, the only tag allowed to extend to end of input without a
// closing tag).
type Tag struct {
	Name       string // lower-cased
	Opening    string // verbatim opening tag text, e.g. "<ref name='x'>"
	Closing    string // verbatim closing tag text, or "" if none
	Content    *List  // nil if self-closing / no closing tag found
	RawContent bool   // true if Content holds a single raw Text node (RAW tag)
}

func (t *Tag) Type() NodeType { return NTTag }

func (t *Tag) WriteTo(buf *stringBuilder) {
	buf.WriteString(t.Opening)
	if t.Content != nil {
		t.Content.WriteTo(buf)
	}
	buf.WriteString(t.Closing)
}

func (t *Tag) Copy() Node {
	cp := &Tag{Name: t.Name, Opening: t.Opening, Closing: t.Closing, RawContent: t.RawContent}
	if t.Content != nil {
		cp.Content = t.Content.Copy().(*List)
	}
	return cp
}

func (t *Tag) depth() int {
	if t.Content == nil {
		return 1
	}
	return t.Content.depth() + 1
}

// FieldsHolder is the base shared by Link and Template: one or more Lists
// separated by '|'.
type FieldsHolder struct {
	Fields []*List
}

func (f *FieldsHolder) Len() int         { return len(f.Fields) }
func (f *FieldsHolder) Field(i int) *List { return f.Fields[i] }

func (f *FieldsHolder) depth() int {
	max := 0
	for _, field := range f.Fields {
		if d := field.depth(); d > max {
			max = d
		}
	}
	return max + 1
}

func (f *FieldsHolder) copyFields() []*List {
	out := make([]*List, len(f.Fields))
	for i, field := range f.Fields {
		out[i] = field.Copy().(*List)
	}
	return out
}

// SetField replaces field i, returning the previous value.
func (f *FieldsHolder) SetField(i int, l *List) *List {
	prev := f.Fields[i]
	f.Fields[i] = l
	return prev
}

// AddField inserts a field at position i.
func (f *FieldsHolder) AddField(i int, l *List) {
	f.Fields = append(f.Fields, nil)
	copy(f.Fields[i+1:], f.Fields[i:])
	f.Fields[i] = l
}

// RemoveField removes and returns field i.
func (f *FieldsHolder) RemoveField(i int) *List {
	l := f.Fields[i]
	f.Fields = append(f.Fields[:i], f.Fields[i+1:]...)
	return l
}

// Link is wikicode written as [[...]].
type Link struct {
	FieldsHolder
	target       string
	anchor       string
	targetIsText bool // whether target/anchor were computed (first field is text+comments only)
}

func (l *Link) Type() NodeType { return NTLink }

func (l *Link) WriteTo(buf *stringBuilder) {
	buf.WriteString("[[")
	for i, f := range l.Fields {
		if i > 0 {
			buf.WriteByte('|')
		}
		f.WriteTo(buf)
	}
	buf.WriteString("]]")
}

func (l *Link) Copy() Node {
	return &Link{FieldsHolder: FieldsHolder{Fields: l.copyFields()}, target: l.target, anchor: l.anchor, targetIsText: l.targetIsText}
}

// Target returns the prenormalized link target and true, or ("", false)
// when the first field contains more than text and comments.
func (l *Link) Target() (string, bool) { return l.target, l.targetIsText }

// Anchor returns the link's anchor as written (comments removed, spaces and
// underscores kept), either "" or starting with "#".
func (l *Link) Anchor() string { return l.anchor }

// Template is wikicode written as {{...}}.
type Template struct {
	FieldsHolder
	name       string
	nameIsText bool
}

func (t *Template) Type() NodeType { return NTTemplate }

func (t *Template) WriteTo(buf *stringBuilder) {
	buf.WriteString("{{")
	for i, f := range t.Fields {
		if i > 0 {
			buf.WriteByte('|')
		}
		f.WriteTo(buf)
	}
	buf.WriteString("}}")
}

func (t *Template) Copy() Node {
	return &Template{FieldsHolder: FieldsHolder{Fields: t.copyFields()}, name: t.name, nameIsText: t.nameIsText}
}

// Name returns the template's prenormalized name, stripping one leading
// subst:/safesubst: wrapper and anything after '#' unless the remaining
// title is empty, in which case the '#...' prefix is kept verbatim.
func (t *Template) Name() (string, bool) { return t.name, t.nameIsText }

// Variable is wikicode written as {{{...}}}.
type Variable struct {
	NameNode     *List
	DefaultValue *List // nil if the variable has no default
}

func (v *Variable) Type() NodeType { return NTVariable }

func (v *Variable) WriteTo(buf *stringBuilder) {
	buf.WriteString("{{{")
	v.NameNode.WriteTo(buf)
	if v.DefaultValue != nil {
		buf.WriteByte('|')
		v.DefaultValue.WriteTo(buf)
	}
	buf.WriteString("}}}")
}

func (v *Variable) Copy() Node {
	cp := &Variable{NameNode: v.NameNode.Copy().(*List)}
	if v.DefaultValue != nil {
		cp.DefaultValue = v.DefaultValue.Copy().(*List)
	}
	return cp
}

func (v *Variable) depth() int {
	max := v.NameNode.depth()
	if v.DefaultValue != nil {
		if d := v.DefaultValue.depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Depth returns the recursive construction depth of n: the depth returned
// by the parser equals the recursive depth of the constructed tree.
func Depth(n Node) int { return n.depth() }
