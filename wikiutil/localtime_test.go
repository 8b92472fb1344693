package wikiutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

func TestFrWikiLocalTime_Winter(t *testing.T) {
	utc, err := wikidate.ParseYMDHMS(2020, 1, 15, 10, 0, 0)
	require.NoError(t, err)
	local := wikiutil.FrWikiLocalTime(utc)
	assert.Equal(t, 11, local.Time().Hour())
}

func TestFrWikiLocalTime_Summer(t *testing.T) {
	utc, err := wikidate.ParseYMDHMS(2020, 7, 15, 10, 0, 0)
	require.NoError(t, err)
	local := wikiutil.FrWikiLocalTime(utc)
	assert.Equal(t, 12, local.Time().Hour())
}

func TestFrWikiLocalTime_MarchBeforeTransition(t *testing.T) {
	// The last Sunday of March 2020 is the 29th; before 01:00 UTC that day
	// the offset is still winter time (+1h).
	utc, err := wikidate.ParseYMDHMS(2020, 3, 29, 0, 30, 0)
	require.NoError(t, err)
	local := wikiutil.FrWikiLocalTime(utc)
	assert.Equal(t, 1, local.Time().Hour())
}

func TestFrWikiLocalTime_MarchAfterTransition(t *testing.T) {
	utc, err := wikidate.ParseYMDHMS(2020, 3, 29, 2, 0, 0)
	require.NoError(t, err)
	local := wikiutil.FrWikiLocalTime(utc)
	assert.Equal(t, 4, local.Time().Hour())
}

func TestFrWikiLocalTime_OctoberAfterTransition(t *testing.T) {
	// The last Sunday of October 2020 is the 25th; from 01:00 UTC that day
	// the offset reverts to winter time (+1h).
	utc, err := wikidate.ParseYMDHMS(2020, 10, 25, 2, 0, 0)
	require.NoError(t, err)
	local := wikiutil.FrWikiLocalTime(utc)
	assert.Equal(t, 3, local.Time().Hour())
}
