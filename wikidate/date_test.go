package wikidate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

func mustDate(t *testing.T, year, month, day, hour, minute, second int) wikidate.Date {
	t.Helper()
	d, err := wikidate.ParseYMDHMS(year, month, day, hour, minute, second)
	require.NoError(t, err)
	return d
}

func TestNullDate(t *testing.T) {
	assert.True(t, wikidate.NullDate.IsNull())
	assert.Equal(t, int64(0), wikidate.NullDate.Unix())
	assert.True(t, wikidate.NullDate.Time().IsZero())
	assert.Equal(t, "<null date>", wikidate.NullDate.String())
	assert.Equal(t, "", wikidate.NullDate.ToISO8601())
}

func TestNullDateComparesLessThanEverything(t *testing.T) {
	d := mustDate(t, 2020, 1, 1, 0, 0, 0)
	assert.True(t, wikidate.NullDate.Before(d))
	assert.True(t, d.After(wikidate.NullDate))
	assert.Equal(t, 0, wikidate.NullDate.Compare(wikidate.Date{}))
	assert.True(t, wikidate.NullDate.Equal(wikidate.Date{}))
}

func TestParseYMDHMSRejectsOutOfRange(t *testing.T) {
	_, err := wikidate.ParseYMDHMS(0, 1, 1, 0, 0, 0)
	assert.Error(t, err)

	_, err = wikidate.ParseYMDHMS(10000, 1, 1, 0, 0, 0)
	assert.Error(t, err)

	// February 30th does not exist; time.Date would silently roll it over
	// to March, which ParseYMDHMS rejects instead.
	_, err = wikidate.ParseYMDHMS(2021, 2, 30, 0, 0, 0)
	assert.Error(t, err)
}

func TestAddAndSub(t *testing.T) {
	d := mustDate(t, 2020, 1, 1, 0, 0, 0)
	later := d.Add(wikidate.DateDiff(3661))
	want := mustDate(t, 2020, 1, 1, 1, 1, 1)
	assert.True(t, later.Equal(want))
	assert.Equal(t, wikidate.DateDiff(3661), later.Sub(d))
	assert.Equal(t, wikidate.DateDiff(-3661), d.Sub(later))
}

func TestAddToNullDateYieldsNull(t *testing.T) {
	assert.True(t, wikidate.NullDate.Add(wikidate.DateDiff(100)).IsNull())
}

func TestSubWithNullOperandIsZero(t *testing.T) {
	d := mustDate(t, 2020, 1, 1, 0, 0, 0)
	assert.Equal(t, wikidate.DateDiff(0), d.Sub(wikidate.NullDate))
	assert.Equal(t, wikidate.DateDiff(0), wikidate.NullDate.Sub(d))
}

func TestDateDiffDaysTruncatesTowardsZero(t *testing.T) {
	assert.Equal(t, int64(2), wikidate.DateDiff(2*86400+3600).Days())
	assert.Equal(t, int64(-2), wikidate.DateDiff(-2*86400-3600).Days())
	assert.Equal(t, int64(0), wikidate.DateDiff(3600).Days())
}

func TestFromDays(t *testing.T) {
	assert.Equal(t, wikidate.DateDiff(3*86400), wikidate.FromDays(3))
	assert.Equal(t, int64(3), wikidate.FromDays(3).Days())
}

func TestISO8601RoundTrip(t *testing.T) {
	d := mustDate(t, 2023, 11, 5, 13, 45, 9)
	s := d.ToISO8601()
	assert.Equal(t, "2023-11-05T13:45:09Z", s)

	parsed, err := wikidate.FromISO8601(s)
	require.NoError(t, err)
	assert.True(t, d.Equal(parsed))
}

func TestISO8601NullDateRoundTrip(t *testing.T) {
	assert.Equal(t, "", wikidate.NullDate.ToISO8601())

	parsed, err := wikidate.FromISO8601("")
	require.NoError(t, err)
	assert.True(t, parsed.IsNull())
}

func TestFromISO8601Invalid(t *testing.T) {
	_, err := wikidate.FromISO8601("not-a-date")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	d := mustDate(t, 2022, 6, 15, 8, 30, 0)
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2022-06-15T08:30:00Z"`, string(data))

	var parsed wikidate.Date
	require.NoError(t, parsed.UnmarshalJSON(data))
	assert.True(t, d.Equal(parsed))
}

func TestJSONRoundTripNullDate(t *testing.T) {
	data, err := wikidate.NullDate.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var parsed wikidate.Date
	require.NoError(t, parsed.UnmarshalJSON(data))
	assert.True(t, parsed.IsNull())
}

func TestFormatDayCount(t *testing.T) {
	assert.Equal(t, "5", wikidate.FormatDayCount(wikidate.FromDays(5)))
}

func TestRealClockAdvancesWithTime(t *testing.T) {
	var clock wikidate.RealClock
	before := clock.Now()
	after := clock.Now()
	assert.True(t, !after.Before(before))
}

func TestFrozenClock(t *testing.T) {
	at := mustDate(t, 2020, 1, 1, 0, 0, 0)
	clock := wikidate.NewFrozen(at)
	assert.True(t, clock.Now().Equal(at))

	clock.Advance(wikidate.FromDays(1))
	assert.True(t, clock.Now().Equal(at.Add(wikidate.FromDays(1))))

	later := mustDate(t, 2025, 5, 5, 5, 5, 5)
	clock.Set(later)
	assert.True(t, clock.Now().Equal(later))
}
