package draftmain_test

import (
	"context"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/bots/draftmain"
	"gitlab.com/orlodrimbot/mwbot/rcreplica"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

type fakeReader struct {
	events []rcreplica.LogEvent
}

func (f *fakeReader) EnumRecentChanges(context.Context, rcreplica.EnumOptions, func(rcreplica.RecentChange) error) (string, errors.E) {
	return "", nil
}

func (f *fakeReader) GetRecentlyUpdatedPages(context.Context, wikidate.Date, wikidate.Date, string) (mapset.Set[string], errors.E) {
	return mapset.NewSet[string](), nil
}

func (f *fakeReader) GetRecentLogEvents(ctx context.Context, logType string, start, end wikidate.Date, continueToken string) ([]rcreplica.LogEvent, string, errors.E) {
	return f.events, "next-token", nil
}

func (f *fakeReader) Close() error { return nil }

func TestUpdate_NewlyPublishedDraftIsListed(t *testing.T) {
	now, err := wikidate.ParseYMDHMS(2020, 6, 10, 12, 0, 0)
	require.NoError(t, err)
	wiki, fake := newFrozenTestWiki(t, now)

	reader := &fakeReader{events: []rcreplica.LogEvent{
		{
			LogType:   "move",
			Title:     "Brouillon:Exemple",
			NewTitle:  "Exemple",
			User:      "Foo",
			Timestamp: now,
			Params:    map[string]any{},
		},
	}}

	tr := draftmain.New(zerolog.Nop(), wiki, reader, "", 30)
	require.NoError(t, tr.Update(context.Background(), false))

	content, ok := fake.PageContent(draftmain.ListTitle)
	require.True(t, ok)
	assert.Contains(t, content, "Foo")
	assert.Contains(t, content, "Exemple")
	assert.Contains(t, content, "Brouillon:Exemple")
}

func TestUpdate_NoEventsIsNoop(t *testing.T) {
	now, err := wikidate.ParseYMDHMS(2020, 6, 10, 12, 0, 0)
	require.NoError(t, err)
	wiki, fake := newFrozenTestWiki(t, now)

	tr := draftmain.New(zerolog.Nop(), wiki, &fakeReader{}, "", 30)
	require.NoError(t, tr.Update(context.Background(), false))

	_, ok := fake.PageContent(draftmain.ListTitle)
	assert.False(t, ok)
}

func TestUpdate_MoveOutOfMainWithSuppressedRedirectIsDropped(t *testing.T) {
	now, err := wikidate.ParseYMDHMS(2020, 6, 10, 12, 0, 0)
	require.NoError(t, err)
	wiki, fake := newFrozenTestWiki(t, now)

	reader := &fakeReader{events: []rcreplica.LogEvent{
		{
			LogType:   "move",
			Title:     "Brouillon:Exemple",
			NewTitle:  "Exemple",
			User:      "Foo",
			Timestamp: now,
			Params:    map[string]any{},
		},
		{
			LogType:   "move",
			Title:     "Exemple",
			NewTitle:  "Utilisateur:Foo/Exemple",
			User:      "Foo",
			Timestamp: now.Add(wikidate.DateDiff(60)),
			Params:    map[string]any{"suppressredirect": true},
		},
	}}

	tr := draftmain.New(zerolog.Nop(), wiki, reader, "", 30)
	require.NoError(t, tr.Update(context.Background(), false))

	_, ok := fake.PageContent(draftmain.ListTitle)
	assert.False(t, ok)
}
