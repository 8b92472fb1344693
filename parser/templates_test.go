package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/parser"
)

func parseSingle(t *testing.T, code string, typ parser.NodeType) parser.Node {
	t.Helper()
	tree, err := parser.Parse(code, parser.Lenient)
	require.NoError(t, err)
	require.Equal(t, 1, tree.Len(), code)
	n := tree.Children[0]
	require.Equal(t, typ, n.Type(), code)
	return n
}

func parseTemplate(t *testing.T, code string) *parser.Template {
	return parseSingle(t, code, parser.NTTemplate).(*parser.Template)
}

func parseLink(t *testing.T, code string) *parser.Link {
	return parseSingle(t, code, parser.NTLink).(*parser.Link)
}

func TestFieldsHolder_AddRemoveSetField(t *testing.T) {
	tmpl := parseTemplate(t, "{{Test}}")
	tmpl.AddField(tmpl.Len(), parser.NewList(parser.NewText("1")))
	tmpl.AddField(tmpl.Len(), parser.NewList(parser.NewText("2")))
	tmpl.AddField(3, parser.NewList(parser.NewText("3")))
	tmpl.AddField(4, parser.NewList(parser.NewText("4")))
	tmpl.AddField(0, parser.NewList(parser.NewText("5")))
	tmpl.AddField(0, parser.NewList(parser.NewText("6")))
	assert.Equal(t, "{{6|5|Test|1|2|3|4}}", parser.String(tmpl))

	tmpl = parseTemplate(t, "{{Test|a|b|c|d|e}}")
	tmpl.RemoveField(5)
	assert.Equal(t, "{{Test|a|b|c|d}}", parser.String(tmpl))
	tmpl.RemoveField(0)
	assert.Equal(t, "{{a|b|c|d}}", parser.String(tmpl))
	tmpl.RemoveField(3)
	assert.Equal(t, "{{a|b|c}}", parser.String(tmpl))
	tmpl.RemoveField(1)
	assert.Equal(t, "{{a|c}}", parser.String(tmpl))

	tmpl = parseTemplate(t, "{{Test|[[a]]}}")
	tmpl.SetField(0, parser.NewList(parser.NewText("x")))
	tmpl.SetField(1, parser.NewList(parser.NewText("y")))
	assert.Equal(t, "{{x|y}}", parser.String(tmpl))
}

func TestLinkFieldsOperations(t *testing.T) {
	link := parseLink(t, "[[Link]]")
	link.AddField(link.Len(), parser.NewList(parser.NewText("x")))
	link.AddField(1, parser.NewList(parser.NewText("y")))
	link.AddField(1, parser.NewList(parser.NewText("z")))
	link.RemoveField(2)
	assert.Equal(t, "[[Link|z|x]]", parser.String(link))
}

func TestLinkTarget(t *testing.T) {
	check := func(code, expectedTarget, expectedAnchor string, hasTarget bool) {
		link := parseLink(t, code)
		target, ok := link.Target()
		assert.Equal(t, hasTarget, ok, code)
		assert.Equal(t, expectedTarget, target, code)
		assert.Equal(t, expectedAnchor, link.Anchor(), code)
	}
	check("[[Abc]]", "Abc", "", true)
	check("[[:Abc]]", ":Abc", "", true)
	check("[[Abc#Def]]", "Abc", "#Def", true)
	check("[[#Def]]", "", "#Def", true)
	check("[[ abc <!-- test -->_ xyz  #  Def  _  <!-- test -->ghi]]", " abc _ xyz  ", "#  Def  _  ghi", true)
	// A second field is not a link (a "|" was found), or the first field
	// contains a non-text/comment node: target is unavailable both ways.
	check("[[Abc#Def{{Test}}]]", "", "", false)
}

func TestTemplateName(t *testing.T) {
	check := func(code, expectedName string, hasName bool) {
		tmpl := parseTemplate(t, code)
		name, ok := tmpl.Name()
		assert.Equal(t, hasName, ok, code)
		assert.Equal(t, expectedName, name, code)
	}
	check("{{Test}}", "Test", true)
	check("{{Test # anchor}}", "Test", true)
	check("{{Test%40}}", "Test%40", true)
	check("{{:Test}}", ":Test", true)
	// Comments are dropped outright (not kept as separators) and underscores
	// are not folded to spaces here, unlike full title normalization.
	check("{{ _ x <!-- comment -->__ y _ \n}}", "_ x __ y _", true)
	check("{{#if:1}}", "#if:1", true)
	check("{{subst:Test}}", "Test", true)
	check("{{safesubst:Test}}", "Test", true)
	check("{{ subst: Test}}", "Test", true)
}

func TestTemplateGetParsedFields(t *testing.T) {
	check := func(code, expected string) {
		tmpl := parseTemplate(t, code)
		pf := tmpl.GetParsedFields(parser.TrimValue)
		var got string
		for _, f := range pf.Fields() {
			if got != "" {
				got += ","
			}
			got += f.Param + "=>" + f.Value
		}
		assert.Equal(t, expected, got, code)
	}
	check("{{Test|red|green|blue}}", "1=>red,2=>green,3=>blue")
	check("{{Test|color1=red|color2=green|color3=blue}}", "color1=>red,color2=>green,color3=>blue")
	check("{{Test|color1=red|green|2=blue=orange}}", "color1=>red,1=>green,2=>blue=orange")

	tmpl := parseTemplate(t, "{{Test|color1=red|color2=blue}}")
	pf := tmpl.GetParsedFields(0)
	assert.True(t, pf.Contains("color1"))
	assert.True(t, pf.Contains("color2"))
	assert.False(t, pf.Contains("color3"))
	assert.Equal(t, "red", pf.Get("color1"))
	assert.Equal(t, "blue", pf.Get("color2"))
	assert.Equal(t, "", pf.Get("color3"))
	assert.Equal(t, "red", pf.GetWithDefault("color1", "other"))
	assert.Equal(t, "other", pf.GetWithDefault("color3", "other"))
	assert.Equal(t, 1, pf.IndexOf("color1"))
	assert.Equal(t, 2, pf.IndexOf("color2"))
	assert.Equal(t, parser.FindParamNone, pf.IndexOf("color3"))
}

func TestTemplateSetFieldNameAndValue(t *testing.T) {
	tmpl := parseTemplate(t, "{{Test|x=1|\n y z = 2 |=3| = 4|5| 6 }}")
	tmpl.SetFieldName(1, "a")
	tmpl.SetFieldName(2, "b")
	tmpl.SetFieldName(3, "c")
	tmpl.SetFieldName(4, "d")
	tmpl.SetFieldName(5, "e")
	tmpl.SetFieldName(6, "f")
	assert.Equal(t, "{{Test|a=1|\n b = 2 |c=3|d = 4|e=5|f= 6 }}", parser.String(tmpl))
}

func TestIndexTemplatesByName(t *testing.T) {
	tree, err := parser.Parse("{{stub}}\n{{Infobox|param1={{underline|value2}}}}\n{{stub|2}}", parser.Lenient)
	require.NoError(t, err)
	index := parser.IndexTemplatesByName(tree)
	require.Len(t, index["stub"], 2)
	assert.Equal(t, "{{stub}}", parser.String(index["stub"][0]))
	assert.Equal(t, "{{stub|2}}", parser.String(index["stub"][1]))
	require.Len(t, index["Infobox"], 1)
	require.Len(t, index["underline"], 1)
}
