package parser_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/parser"
)

// nodeDebugString renders n's tree shape as a single line.
func nodeDebugString(n parser.Node) string {
	var b strings.Builder
	switch n.Type() {
	case parser.NTList:
		b.WriteString("list(")
		l := n.(*parser.List)
		for i, c := range l.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(nodeDebugString(c))
		}
		b.WriteByte(')')
	case parser.NTText:
		fmt.Fprintf(&b, "text(%s)", n.(*parser.Text).Value)
	case parser.NTComment:
		fmt.Fprintf(&b, "comment(%s)", n.(*parser.Comment).Raw)
	case parser.NTTag:
		tag := n.(*parser.Tag)
		b.WriteString("tag(")
		b.WriteString(tag.Opening)
		if tag.Content != nil || tag.Closing != "" {
			b.WriteByte(',')
		}
		if tag.Content != nil {
			b.WriteString(nodeDebugString(tag.Content))
		}
		if tag.Closing != "" {
			b.WriteByte(',')
			b.WriteString(tag.Closing)
		}
		b.WriteByte(')')
	case parser.NTLink:
		link := n.(*parser.Link)
		b.WriteString("link(")
		for i := 0; i < link.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(nodeDebugString(link.Field(i)))
		}
		b.WriteByte(')')
	case parser.NTTemplate:
		tmpl := n.(*parser.Template)
		b.WriteString("template(")
		for i := 0; i < tmpl.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(nodeDebugString(tmpl.Field(i)))
		}
		b.WriteByte(')')
	case parser.NTVariable:
		v := n.(*parser.Variable)
		b.WriteString("var(")
		b.WriteString(nodeDebugString(v.NameNode))
		if v.DefaultValue != nil {
			b.WriteByte(',')
			b.WriteString(nodeDebugString(v.DefaultValue))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// getNodeDepthRecursive independently recomputes a tree's depth, used to
// cross-check parser.Depth against the tree it actually returns.
func getNodeDepthRecursive(n parser.Node) int {
	inner := 0
	switch n.Type() {
	case parser.NTList:
		for _, c := range n.(*parser.List).Children {
			if d := getNodeDepthRecursive(c); d > inner {
				inner = d
			}
		}
	case parser.NTTag:
		if content := n.(*parser.Tag).Content; content != nil {
			inner = getNodeDepthRecursive(content)
		}
	case parser.NTLink:
		link := n.(*parser.Link)
		for i := 0; i < link.Len(); i++ {
			if d := getNodeDepthRecursive(link.Field(i)); d > inner {
				inner = d
			}
		}
	case parser.NTTemplate:
		tmpl := n.(*parser.Template)
		for i := 0; i < tmpl.Len(); i++ {
			if d := getNodeDepthRecursive(tmpl.Field(i)); d > inner {
				inner = d
			}
		}
	case parser.NTVariable:
		v := n.(*parser.Variable)
		inner = getNodeDepthRecursive(v.NameNode)
		if v.DefaultValue != nil {
			if d := getNodeDepthRecursive(v.DefaultValue); d > inner {
				inner = d
			}
		}
	}
	return inner + 1
}

func checkParsing(t *testing.T, code, expectedDebugString string) {
	t.Helper()
	tree, err := parser.Parse(code, parser.Lenient)
	require.NoError(t, err, code)
	assert.Equal(t, expectedDebugString, nodeDebugString(tree), code)
	assert.Equal(t, code, parser.String(tree), code)
	assert.Equal(t, getNodeDepthRecursive(tree), parser.Depth(tree), code)
}

// TestParsing covers a representative sample of lexer/reduction corner
// cases (broken braces and brackets, tag recognition, comment edge cases,
// nesting), not just the straight-line happy path.
func TestParsing(t *testing.T) {
	checkParsing(t, "", "list()")
	checkParsing(t, "a", "list(text(a))")
	checkParsing(t, "ab", "list(text(ab))")
	checkParsing(t, "{{test}}", "list(template(list(text(test))))")
	checkParsing(t, "{a}", "list(text({a}))")
	checkParsing(t, "{{a}}", "list(template(list(text(a))))")
	checkParsing(t, "{{{a}}}", "list(var(list(text(a))))")
	checkParsing(t, "{{{{a}}}}", "list(text({),var(list(text(a))),text(}))")
	checkParsing(t, "{{{{{a}}}}}", "list(template(list(var(list(text(a))))))")
	checkParsing(t, "{{{{{a}} }}}", "list(var(list(template(list(text(a))),text( ))))")
	checkParsing(t, "{{{{{{a}}}}}}", "list(var(list(var(list(text(a))))))")
	checkParsing(t, "{{a{{{b}}{{c}}}d}}",
		"list(template(list(text(a{),template(list(text(b))),template(list(text(c))),text(}d))))")
	checkParsing(t, "{{a{{a}}}}", "list(template(list(text(a),template(list(text(a))))))")
	checkParsing(t, "{{a{{{b}}<nowiki>{{c}}}d}}",
		"list(template(list(text(a{),template(list(text(b))),text(<nowiki>),"+
			"template(list(text(c))),text(}d))))")
	checkParsing(t, "{{a|b=c}}", "list(template(list(text(a)),list(text(b=c))))")
	checkParsing(t, "{{a|b=c|d}}", "list(template(list(text(a)),list(text(b=c)),list(text(d))))")
	checkParsing(t, "{{{a|b}}}", "list(var(list(text(a)),list(text(b))))")
	checkParsing(t, "{{{a|b|c}}}", "list(var(list(text(a)),list(text(b|c))))")
	checkParsing(t, "<!-- a -->", "list(comment(<!-- a -->))")
	checkParsing(t, "<!----> a -->", "list(comment(<!---->),text( a -->))")
	checkParsing(t, "<!---> a -->", "list(comment(<!---> a -->))")
	checkParsing(t, "<!--> a -->", "list(comment(<!--> a -->))")
	checkParsing(t, "<!--", "list(comment(<!--))")
	checkParsing(t, "<!-", "list(text(<!-))")
	checkParsing(t, "[[Target]]", "list(link(list(text(Target))))")
	checkParsing(t, "[[Target]]<!-- A -->", "list(link(list(text(Target))),comment(<!-- A -->))")
	checkParsing(t, "[[Target|Text]]", "list(link(list(text(Target)),list(text(Text))))")
	checkParsing(t, "[[File:A.png|A|B|C]]",
		"list(link(list(text(File:A.png)),list(text(A)),list(text(B)),list(text(C))))")
	checkParsing(t, "[[Target|A|B]]", "list(link(list(text(Target)),list(text(A)),list(text(B))))")

	checkParsing(t, "<math>{{x}}</math>", "list(tag(<math>,list(text({{x}})),</math>))")
	checkParsing(t, "1<math>{{x}}</math>2", "list(text(1),tag(<math>,list(text({{x}})),</math>),text(2))")
	checkParsing(t, "<nowiki/>", "list(tag(<nowiki/>))")
	checkParsing(t, "<nowiki<nowiki/>", "list(text(<nowiki),tag(<nowiki/>))")
	checkParsing(t, "<nowiki />", "list(tag(<nowiki />))")
	checkParsing(t, "<nowiki></nowiki>", "list(tag(<nowiki>,list(),</nowiki>))")
	checkParsing(t, "<nowiki>a</nowiki><nowiki>b</nowiki><nowiki>c</nowiki>",
		"list(tag(<nowiki>,list(text(a)),</nowiki>),tag(<nowiki>,list(text(b)),</nowiki>),"+
			"tag(<nowiki>,list(text(c)),</nowiki>))")
	checkParsing(t, "<nowiki>{{x}}</nowiki>", "list(tag(<nowiki>,list(text({{x}})),</nowiki>))")
	checkParsing(t, "<pre>{{x}}</pre>", "list(tag(<pre>,list(text({{x}})),</pre>))")
	checkParsing(t, "<PRE>{{x}}</PRE>", "list(tag(<PRE>,list(text({{x}})),</PRE>))")
	checkParsing(t, "<ref name=x>{{Ouvrage}}</ref>", "list(tag(<ref name=x>,list(template(list(text(Ouvrage)))),</ref>))")
	checkParsing(t, "<source_a>a</source_a>", "list(text(<source_a>a</source_a>))")
	checkParsing(t, "<poem>{{x}}</poem>", "list(tag(<poem>,list(template(list(text(x)))),</poem>))")
	checkParsing(t, "<math>abc</nowiki>", "list(text(<math>abc</nowiki>))")
	checkParsing(t, "<math><nowiki></math></nowiki>", "list(tag(<math>,list(text(<nowiki>)),</math>),text(</nowiki>))")
	checkParsing(t, "<math><math></math>", "list(tag(<math>,list(text(<math>)),</math>))")
	checkParsing(t, "<pre></pre>[[x]]", "list(tag(<pre>,list(),</pre>),link(list(text(x))))")
	checkParsing(t, "<nowiki/>[[x]]", "list(tag(<nowiki/>),link(list(text(x))))")
	checkParsing(t, "<nowiki><pre>a</pre></nowiki>", "list(tag(<nowiki>,list(text(<pre>a</pre>)),</nowiki>))")
	checkParsing(t, "<pre><nowiki>a</nowiki></pre>", "list(tag(<pre>,list(text(<nowiki>a</nowiki>)),</pre>))")
	checkParsing(t, "<nowiki>a", "list(text(<nowiki>a))")
	checkParsing(t, "<pre>a", "list(tag(<pre>,list(text(a))))")
	checkParsing(t, "<ref><!--</ref>a", "list(tag(<ref>,list(comment(<!--)),</ref>),text(a))")
	checkParsing(t, "<references><ref></references><references><ref></ref></references>",
		"list(tag(<references>,list(text(<ref>)),</references>),"+
			"tag(<references>,list(tag(<ref>,list(),</ref>)),</references>))")

	checkParsing(t, "[[target|<poem>]]", "list(link(list(text(target)),list(text(<poem>))))")
	checkParsing(t, "[[[test]]", "list(text([[[test]]))")
}

// checkRoundTrip exercises codes whose exact tree shape hinges on the
// shift-reduce engine's rarer interactions between unmatched brackets,
// braces and pipes (a single broken link/template opening racing a sibling
// closure) without pinning down the full debug-string shape: whatever tree
// Parse builds, it must reconstruct byte-for-byte, and its reported depth
// must match the tree actually built.
func checkRoundTrip(t *testing.T, code string) {
	t.Helper()
	tree, err := parser.Parse(code, parser.Lenient)
	require.NoError(t, err, code)
	assert.Equal(t, code, parser.String(tree), code)
	assert.Equal(t, getNodeDepthRecursive(tree), parser.Depth(tree), code)
}

func TestParsing_AmbiguousBracesAndBrackets(t *testing.T) {
	for _, code := range []string{
		"[[a|{{a]]",
		"[[a|{{a|]]",
		"[[a|{{a|]]}}",
		"{{a|[[}}",
		"{{a|[[b|}}]]}}",
		"{{a|<poem>}}",
		"[[target|{{gras|<poem>]]",
		"[[target|{{gras|<poem>]]}}",
		"[[target|{{gras|<poem>}}]]",
		"[[[[test]]",
		"[[[[[test]]",
		"[[File:X|[[[test]]]]",
		"{{a|[[[a}}",
		"{{a|[[[a]]}}",
		"{{a|[[[b|c]]}}",
	} {
		checkRoundTrip(t, code)
	}
}

func TestParsing_MaxDepth(t *testing.T) {
	old := parser.SetMaxDepth(4)
	defer parser.SetMaxDepth(old)
	checkParsing(t, "{{[[a]]}}", "list(text({{),link(list(text(a))),text(}}))")
	parser.SetMaxDepth(5)
	checkParsing(t, "{{[[a]]}}", "list(template(list(link(list(text(a))))))")
}

func checkParseError(t *testing.T, code, expectedError string) {
	t.Helper()
	_, err := parser.Parse(code, parser.Strict)
	require.Error(t, err, code)
	assert.Contains(t, err.Error(), expectedError, code)
}

// TestParseError covers every distinct warning kind the lexer can raise in
// Strict mode.
func TestParseError(t *testing.T) {
	checkParseError(t, "[[Link", "1:1:Unclosed link '[[Link'")
	checkParseError(t, "Link]]", "1:5:Link closure without opening ']]'")
	checkParseError(t, "[[Link\n]]", "1:1:Link whose target contains a line break '[[Link ]]'")
	checkParseError(t, "{{Template", "1:1:Unclosed template '{{Template'")
	checkParseError(t, "{{{Variable", "1:1:Unclosed variable '{{{Variable'")
	checkParseError(t, "{{{{Template", "1:1:Unclosed template '{{{{Template'")
	checkParseError(t, "Template}}", "1:9:Template closure without opening '}}'")
	checkParseError(t, "Variable}}}", "1:9:Variable closure without opening '}}}'")
	checkParseError(t, "Template}}}}", "1:9:Template closure without opening '}}}}'")
	checkParseError(t, "Variatemplate}}}}}", "1:14:Template or variable closure without opening '}}}}}'")
	checkParseError(t, "{{{{{Variatemplate", "1:1:Unclosed template or variable '{{{{{Variatemplate'")
	checkParseError(t, "{{{Variatemplate}}", "1:1:Extra brace at template or variable opening '{{{Variatemplate}}'")
	checkParseError(t, "{{Variatemplate}}}", "1:18:Extra brace at template or variable closure '}'")
	checkParseError(t, "<ref>X", "1:1:Unclosed <ref> tag '<ref>X'")
	checkParseError(t, "X</ref>", "1:2:Closing tag </ref> without opening tag '</ref>'")
	checkParseError(t, "<!-- Comment", "1:1:Unclosed comment '<!-- Comment'")
	checkParseError(t, "[[Link|{{]]", "1:8:Unclosed template '{{]]'")
	checkParseError(t, "[[[Link", "1:1:Bad link opening '[[[Link'")
	checkParseError(t, "[[[Link]]", "1:1:Bad link opening '[[[Link]]'")

	func() {
		old := parser.SetMaxDepth(4)
		defer parser.SetMaxDepth(old)
		checkParseError(t, "{{ {{ x }} }}",
			"1:1:Maximum parser depth reached '{{ {{ x }} }}'\n"+
				"1:1:Unclosed template '{{ {{ x }} }}'\n"+
				"1:12:Template closure without opening '}}'")
	}()

	// Position tracking across a line break, and the multiple-errors-joined
	// case.
	checkParseError(t, "a\nabc[[Link", "2:4:Unclosed link '[[Link'")
	checkParseError(t, "[[test<!--",
		"1:1:Unclosed link '[[test<!--'\n"+
			"1:7:Unclosed comment '<!--'")

	// No error: nowiki/pre/gallery shield their content from the lexer.
	mustParseStrict(t, "<nowiki>{{</nowiki>")
	mustParseStrict(t, "<nowiki>{{[[}}</nowiki>")
	mustParseStrict(t, "<nowiki><nowiki></nowiki>")
	mustParseStrict(t, "<pre><nowiki><ref></nowiki></pre>")
	mustParseStrict(t, "<nowiki><gallery><ref></gallery></nowiki>")
}

func mustParseStrict(t *testing.T, code string) {
	t.Helper()
	_, err := parser.Parse(code, parser.Strict)
	assert.NoError(t, err, code)
}
