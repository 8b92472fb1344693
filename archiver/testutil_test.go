package archiver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/transport"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// frenchSiteInfo builds the handful of namespaces the archiver's title
// parsing actually touches (Modèle/Template, and the Discussion talk
// namespace used by checkArchiveName's tests), in the shape SiteInfo's own
// JSON round trip expects.
func frenchSiteInfo() *wikiutil.SiteInfo {
	addNS := func(namespaces jsonvalue.Value, name string, num wikiutil.NamespaceNumber) {
		ns := jsonvalue.NewObject()
		ns.Set("number", jsonvalue.NewInt(int64(num)))
		ns.Set("casemode", jsonvalue.NewInt(int64(wikiutil.FirstLetter)))
		namespaces.Set(name, ns)
	}
	namespaces := jsonvalue.NewObject()
	addNS(namespaces, "", wikiutil.NSMain)
	addNS(namespaces, "Discussion", wikiutil.NSTalk)
	addNS(namespaces, "Utilisateur", wikiutil.NSUser)
	addNS(namespaces, "Discussion utilisateur", wikiutil.NSUserTalk)
	addNS(namespaces, "Modèle", wikiutil.NSTemplate)
	addNS(namespaces, "Discussion modèle", wikiutil.NSTemplateTalk)

	aliases := jsonvalue.NewObject()
	aliases.Set("template", jsonvalue.NewInt(int64(wikiutil.NSTemplate)))
	aliases.Set("user", jsonvalue.NewInt(int64(wikiutil.NSUser)))

	root := jsonvalue.NewObject()
	root.Set("siteinfo_version", jsonvalue.NewInt(1))
	root.Set("namespaces", namespaces)
	root.Set("aliases", aliases)
	root.Set("interwikis", jsonvalue.NewObject())

	info, err := wikiutil.SiteInfoFromJSONValue(root)
	if err != nil {
		panic(err)
	}
	return info
}

// newTestWiki returns a Wiki that never talks over the network, bound to
// frenchSiteInfo, suitable for exercising pure parsing/decision logic.
func newTestWiki(t *testing.T, opts ...mw.Option) *mw.Wiki {
	t.Helper()
	client, err := transport.NewClient()
	require.NoError(t, err)
	wiki, err := mw.NewWiki(client, "https://fr.wikipedia.org/w/api.php", opts...)
	require.NoError(t, err)
	wiki.SetSiteInfo(frenchSiteInfo())
	return wiki
}
