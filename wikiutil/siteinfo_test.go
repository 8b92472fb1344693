package wikiutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

const apiSiteInfoJSON = `{
  "namespaces": {
    "-1": {"id": -1, "case": "first-letter", "*": "Spécial"},
    "0": {"id": 0, "case": "first-letter", "*": ""},
    "1": {"id": 1, "case": "first-letter", "*": "Discussion"},
    "6": {"id": 6, "case": "first-letter", "*": "Fichier", "canonical": "File"},
    "10": {"id": 10, "case": "first-letter", "*": "Modèle", "canonical": "Template"},
    "14": {"id": 14, "case": "first-letter", "*": "Catégorie", "canonical": "Category"}
  },
  "namespacealiases": [
    {"id": 6, "*": "Image"}
  ],
  "interwikimap": [
    {"prefix": "en", "language": "English"},
    {"prefix": "wikt", "language": ""}
  ],
  "magicwords": [
    {"name": "redirect", "aliases": ["#REDIRECT", "#REDIRECTION"]},
    {"name": "something_else", "aliases": ["#OTHER"]}
  ]
}`

func buildTestSiteInfo(t *testing.T) *wikiutil.SiteInfo {
	t.Helper()
	v, err := jsonvalue.Parse(apiSiteInfoJSON)
	require.NoError(t, err)
	site, err := wikiutil.SiteInfoFromAPIResponse(v)
	require.NoError(t, err)
	return site
}

func TestSiteInfoFromAPIResponse(t *testing.T) {
	site := buildTestSiteInfo(t)
	assert.Equal(t, "Modèle", site.Namespaces()[wikiutil.NSTemplate].Name)
	assert.Equal(t, "Catégorie", site.Namespaces()[wikiutil.NSCategory].Name)
	assert.Equal(t, wikiutil.NSFile, site.Aliases()["image"])
	assert.Equal(t, wikiutil.NSFile, site.Aliases()["fichier"])
	assert.Equal(t, wikiutil.NSFile, site.Aliases()["file"])
	assert.Equal(t, "English", site.Interwikis()["en"].Language)
	assert.Contains(t, site.RedirectAliases(), "#redirect")
	assert.Contains(t, site.RedirectAliases(), "#redirection")
	assert.NotContains(t, site.RedirectAliases(), "#other")
}

func TestSiteInfoJSONRoundTrip(t *testing.T) {
	site := buildTestSiteInfo(t)
	value := site.ToJSONValue()
	rebuilt, err := wikiutil.SiteInfoFromJSONValue(value)
	require.NoError(t, err)
	assert.Equal(t, site.Namespaces(), rebuilt.Namespaces())
	assert.Equal(t, site.Aliases(), rebuilt.Aliases())
	assert.ElementsMatch(t, site.RedirectAliases(), rebuilt.RedirectAliases())
}

func TestSiteInfoFromJSONValue_RequiresVersion(t *testing.T) {
	_, err := wikiutil.SiteInfoFromJSONValue(jsonvalue.NewObject())
	assert.Error(t, err)
}

func TestStubSiteInfo(t *testing.T) {
	site := wikiutil.StubSiteInfo()
	_, ok := site.Namespaces()[wikiutil.NSMain]
	assert.True(t, ok)
}

func TestIsTalkNamespace(t *testing.T) {
	assert.False(t, wikiutil.IsTalkNamespace(wikiutil.NSMain))
	assert.True(t, wikiutil.IsTalkNamespace(wikiutil.NSTalk))
	assert.True(t, wikiutil.IsTalkNamespace(wikiutil.NSTemplateTalk))
	assert.False(t, wikiutil.IsTalkNamespace(wikiutil.NSSpecial))
}
