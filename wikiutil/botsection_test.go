package wikiutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

func TestReadBotSection_NoMarkers(t *testing.T) {
	assert.Equal(t, "", wikiutil.ReadBotSection("Some prose with no markers."))
}

func TestReadBotSection_RoundTrip(t *testing.T) {
	code := "Intro.\n\n" + wikiutil.BotSectionBegin + "\nLine 1\nLine 2\n" + wikiutil.BotSectionEnd + "\n\nOutro."
	assert.Equal(t, "Line 1\nLine 2", wikiutil.ReadBotSection(code))
}

func TestReplaceBotSection_CreatesSectionWhenAbsent(t *testing.T) {
	got := wikiutil.ReplaceBotSection("Intro.", "New content")
	assert.Equal(t, "Intro.\n\n"+wikiutil.BotSectionBegin+"\nNew content\n"+wikiutil.BotSectionEnd, got)
}

func TestReplaceBotSection_CreatesSectionOnEmptyPage(t *testing.T) {
	got := wikiutil.ReplaceBotSection("", "New content")
	assert.Equal(t, wikiutil.BotSectionBegin+"\nNew content\n"+wikiutil.BotSectionEnd, got)
}

func TestReplaceBotSection_ReplacesExistingSection(t *testing.T) {
	code := "Intro.\n\n" + wikiutil.BotSectionBegin + "\nOld\n" + wikiutil.BotSectionEnd + "\n\nOutro."
	got := wikiutil.ReplaceBotSection(code, "New content")
	assert.Equal(t, "Intro.\n\n"+wikiutil.BotSectionBegin+"\nNew content\n"+wikiutil.BotSectionEnd+"\n\nOutro.", got)
	assert.Equal(t, "New content", wikiutil.ReadBotSection(got))
}
