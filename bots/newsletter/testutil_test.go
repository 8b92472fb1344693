package newsletter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/mw/mwtest"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

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

	root := jsonvalue.NewObject()
	root.Set("siteinfo_version", jsonvalue.NewInt(1))
	root.Set("namespaces", namespaces)
	root.Set("aliases", jsonvalue.NewObject())
	root.Set("interwikis", jsonvalue.NewObject())

	info, err := wikiutil.SiteInfoFromJSONValue(root)
	if err != nil {
		panic(err)
	}
	return info
}

func newTestWiki(t *testing.T, now wikidate.Date) (*mw.Wiki, *mwtest.FakeWiki) {
	t.Helper()
	clock := wikidate.NewFrozen(now)
	wiki, fake, closeFn, err := mwtest.NewWiki(mw.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(closeFn)
	wiki.SetSiteInfo(frenchSiteInfo())
	return wiki, fake
}
