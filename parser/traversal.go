package parser

// TraversalOrder selects prefix or postfix node ordering for Walk/ForEach.
type TraversalOrder int

const (
	PrefixDFS TraversalOrder = iota
	PostfixDFS
)

// AnyType matches every node in ForEach, since NodeType never takes negative
// values for a real node.
const AnyType NodeType = -1

type pathEntry struct {
	node  Node
	index int
}

// Cursor describes a node's ancestor chain during a Walk.
type Cursor struct {
	path []pathEntry
}

// Depth returns how many ancestors are recorded (0 at the root).
func (c *Cursor) Depth() int { return len(c.path) }

// Ancestor returns the node `level` levels up (1 = parent), or nil if level
// exceeds the recorded depth.
func (c *Cursor) Ancestor(level int) Node {
	i := len(c.path) - level
	if i < 0 || i >= len(c.path) {
		return nil
	}
	return c.path[i].node
}

// IndexInAncestor returns the index of the path entry `level` levels up
// within ITS parent (field index for Link/Template, 0/1 for Variable,
// child index for List), or -1 if level exceeds the recorded depth.
func (c *Cursor) IndexInAncestor(level int) int {
	i := len(c.path) - level
	if i < 0 || i >= len(c.path) {
		return -1
	}
	return c.path[i].index
}

// Parent is a shorthand for Ancestor(1).
func (c *Cursor) Parent() Node { return c.Ancestor(1) }

// IndexInParent is a shorthand for IndexInAncestor(1).
func (c *Cursor) IndexInParent() int { return c.IndexInAncestor(1) }

// Walk visits every node of the tree rooted at n, depth-first, in the given
// order. visit returning false stops the walk early (Walk then also
// returns false).
func Walk(n Node, order TraversalOrder, visit func(n Node, cur *Cursor) bool) bool {
	cur := &Cursor{}
	return walk(n, order, cur, visit)
}

func walk(n Node, order TraversalOrder, cur *Cursor, visit func(Node, *Cursor) bool) bool {
	if order == PrefixDFS {
		if !visit(n, cur) {
			return false
		}
	}
	if !walkChildren(n, order, cur, visit) {
		return false
	}
	if order == PostfixDFS {
		if !visit(n, cur) {
			return false
		}
	}
	return true
}

func walkChildren(n Node, order TraversalOrder, cur *Cursor, visit func(Node, *Cursor) bool) bool {
	descend := func(child Node, index int) bool {
		cur.path = append(cur.path, pathEntry{node: n, index: index})
		ok := walk(child, order, cur, visit)
		cur.path = cur.path[:len(cur.path)-1]
		return ok
	}
	switch v := n.(type) {
	case *List:
		for i, c := range v.Children {
			if !descend(c, i) {
				return false
			}
		}
	case *Tag:
		if v.Content != nil {
			if !descend(v.Content, 0) {
				return false
			}
		}
	case *Link:
		for i, f := range v.Fields {
			if !descend(f, i) {
				return false
			}
		}
	case *Template:
		for i, f := range v.Fields {
			if !descend(f, i) {
				return false
			}
		}
	case *Variable:
		if !descend(v.NameNode, 0) {
			return false
		}
		if v.DefaultValue != nil {
			if !descend(v.DefaultValue, 1) {
				return false
			}
		}
	}
	return true
}

// ForEach walks root in order, calling visit for every node whose type
// matches t (or every node if t is AnyType), stopping early if visit
// returns false.
func ForEach(root Node, t NodeType, order TraversalOrder, visit func(Node) bool) {
	Walk(root, order, func(n Node, _ *Cursor) bool {
		if t == AnyType || n.Type() == t {
			return visit(n)
		}
		return true
	})
}
