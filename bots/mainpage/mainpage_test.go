package mainpage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/bots/mainpage"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

func TestGetPictureOfTheDayPage(t *testing.T) {
	day, err := wikidate.ParseYMDHMS(2020, 6, 10, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Wikipédia:Image du jour/10 juin 2020", mainpage.GetPictureOfTheDayPage(day))
}

func TestGetAnniversariesPage(t *testing.T) {
	tenth, err := wikidate.ParseYMDHMS(2020, 6, 10, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Wikipédia:Éphéméride/10 juin", mainpage.GetAnniversariesPage(tenth))

	first, err := wikidate.ParseYMDHMS(2020, 6, 1, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Wikipédia:Éphéméride/1er juin", mainpage.GetAnniversariesPage(first))
}

func writeState(t *testing.T, path, updateTimestamp, featuredArticlesDay string) {
	t.Helper()
	content := `{"update_timestamp":"` + updateTimestamp + `","featured_articles_day":"` + featuredArticlesDay + `",` +
		`"featured_articles":[],"targets_to_update":[],"reported_errors":""}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRun_RefreshesAnniversariesOnDayChange(t *testing.T) {
	now, err := wikidate.ParseYMDHMS(2020, 6, 10, 12, 0, 0)
	require.NoError(t, err)
	wiki, fake, clock := newTestWiki(t, now)

	yesterday, err := wikidate.ParseYMDHMS(2020, 6, 9, 6, 0, 0)
	require.NoError(t, err)
	clock.Set(yesterday)
	fake.SetPageContent("Wikipédia:Éphéméride/10 juin", "Le 10 juin dans l'histoire.")
	fake.SetPageContent("Wikipédia:Accueil principal/Éphéméride (copie sans modèles)",
		"Texte avant.\n"+
			"<!-- Section générée par bot, début -->\n"+
			"ancien contenu\n"+
			"<!-- Section générée par bot, fin -->\n"+
			"Texte après.\n")
	clock.Set(now)

	displayedDay, err := wikidate.ParseYMDHMS(2020, 6, 10, 0, 0, 0)
	require.NoError(t, err)
	statePath := filepath.Join(t.TempDir(), "state.json")
	writeState(t, statePath, yesterday.ToISO8601(), displayedDay.ToISO8601())

	updater := mainpage.New(zerolog.Nop(), wiki, nil, statePath)
	require.NoError(t, updater.Run(context.Background()))

	content, ok := fake.PageContent("Wikipédia:Accueil principal/Éphéméride (copie sans modèles)")
	require.True(t, ok)
	assert.Contains(t, content, "Le 10 juin dans l'histoire.")
	assert.Contains(t, content, "Texte avant.")
	assert.Contains(t, content, "Texte après.")
	assert.NotContains(t, content, "ancien contenu")
}
