package newsletter_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/bots/newsletter"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

func TestGetSubscribers(t *testing.T) {
	now, err := wikidate.ParseYMDHMS(2020, 6, 10, 12, 0, 0)
	require.NoError(t, err)
	wiki, fake := newTestWiki(t, now)
	fake.SetPageContent("Wikipédia:RAW/Abonnements", ""+
		"* [[Discussion utilisateur:Foo]] #target:Discussion utilisateur:Foo\n"+
		"* #target:Wikipédia:Le Bistro {{Abonnement Bistro}}\n"+
		"* not a subscription line\n")

	subs, err := newsletter.GetSubscribers(context.Background(), wiki, "Wikipédia:RAW/Abonnements")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "Discussion utilisateur:Foo", subs[0].Page)
	assert.True(t, subs[0].DeleteOldMessages)
	assert.Equal(t, newsletter.BistroSubscriber, subs[1].Page)
	assert.False(t, subs[1].DeleteOldMessages)
}

func TestCanBeCurrentIssueTitle(t *testing.T) {
	now, err := wikidate.ParseYMDHMS(2020, 6, 10, 12, 0, 0)
	require.NoError(t, err)
	clock := wikidate.NewFrozen(now)

	ok, _ := newsletter.CanBeCurrentIssueTitle(clock, "Wikipédia:RAW/", "Wikipédia:RAW/2020-06-08")
	assert.True(t, ok)

	ok, reason := newsletter.CanBeCurrentIssueTitle(clock, "Wikipédia:RAW/", "Wikipédia:RAW/2020-01-01")
	assert.False(t, ok)
	assert.Equal(t, "too old", reason)

	ok, _ = newsletter.CanBeCurrentIssueTitle(clock, "Wikipédia:RAW/", "Wikipédia:Autre page")
	assert.False(t, ok)
}

func TestIsStandardNewsletterSection(t *testing.T) {
	message := "== [[Wikipédia:RAW/2020-06-01|RAW 2020-06-01]] ==\n" +
		"{{RAW/PdD|2020-06-01}} ~~~~\n"
	assert.True(t, newsletter.IsStandardNewsletterSection(message))

	modified := "== [[Wikipédia:RAW/2020-06-01|RAW 2020-06-01]] ==\n" +
		"{{RAW/PdD|2020-06-01}} ~~~~\n" +
		"Merci pour cette infolettre !\n"
	assert.False(t, newsletter.IsStandardNewsletterSection(modified))
}

func TestGetIssueFromSection(t *testing.T) {
	section := "== [[Wikipédia:RAW/2020-06-01|RAW 2020-06-01]] ==\ncontent\n"
	assert.Equal(t, "Wikipédia:RAW/2020-06-01", newsletter.GetIssueFromSection("Wikipédia:RAW/", section))
	assert.Equal(t, "", newsletter.GetIssueFromSection("Wikipédia:RAW/", "== Unrelated section ==\n"))
}

func TestPrepareMessage(t *testing.T) {
	title, nowikiTitle, content := newsletter.PrepareMessage("Wikipédia:RAW/2020-06-01")
	assert.Equal(t, "[[Wikipédia:RAW/2020-06-01|RAW 2020-06-01]]", title)
	assert.Equal(t, "RAW 2020-06-01", nowikiTitle)
	assert.Equal(t, "{{RAW/Distribution|2020-06-01}}", content)
}

func TestRun_ForcedIssuePostsToSubscriber(t *testing.T) {
	now, err := wikidate.ParseYMDHMS(2020, 6, 10, 12, 0, 0)
	require.NoError(t, err)
	wiki, fake := newTestWiki(t, now)

	issue := "Wikipédia:RAW/2020-06-08"
	fake.SetPageContent(issue, "{{RAW/En-tête|numéro=42}}\n"+
		"Un contenu suffisamment long pour dépasser la taille minimale requise pour qu'un numéro soit considéré comme publiable par le robot de distribution automatique, "+
		"qui exige que la page fasse une taille conséquente avant d'être distribuée aux abonnés de l'infolettre chaque semaine.\n")
	fake.SetPageContent("Wikipédia:RAW/Abonnements", "* [[Discussion utilisateur:Foo]] #target:Discussion utilisateur:Foo\n")
	fake.SetPageContent("Discussion utilisateur:Foo", "Bonjour !\n")

	d := newsletter.New(zerolog.Nop(), wiki, nil, "", newsletter.Config{
		SubpagesPrefix:     "Wikipédia:RAW/",
		SubscriptionPage:   "Wikipédia:RAW/Abonnements",
		EnableTwitter:      false,
		TweetProposalsPage: "Wikipédia:RAW/Propositions de tweets",
	})
	require.NoError(t, d.Run(context.Background(), issue, "", "", false, false))

	content, ok := fake.PageContent("Discussion utilisateur:Foo")
	require.True(t, ok)
	assert.Contains(t, content, "RAW 2020-06-08")
	assert.Contains(t, content, "{{RAW/Distribution|2020-06-08}}")
}
