package wikiutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

func TestExtractFirstSignatureDate(t *testing.T) {
	clock := wikidate.NewFrozen(mustDate(t, 2020, 6, 15))

	d := wikiutil.ExtractFirstSignatureDate("Some text 1 janvier 2020 à 12:34 (CET) more text", clock)
	assert.False(t, d.IsNull())
	want, err := wikidate.ParseYMDHMS(2020, 1, 1, 11, 34, 0) // CET is UTC+1
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, d.UTCDate.Equal(want), "got %v want %v", d.UTCDate, want)
	assert.Equal(t, wikidate.DateDiff(3600), d.LocalTimeDiff)

	// CEST is UTC+2.
	d2 := wikiutil.ExtractFirstSignatureDate("15 juillet 2019 à 10:00 (CEST)", clock)
	want2, err := wikidate.ParseYMDHMS(2019, 7, 15, 8, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, d2.UTCDate.Equal(want2))

	// No signature-shaped text at all.
	assert.True(t, wikiutil.ExtractFirstSignatureDate("No date here.", clock).IsNull())

	// A date in the future relative to the clock (beyond the small
	// clock-skew tolerance) is rejected.
	future := wikiutil.ExtractFirstSignatureDate("1 janvier 2030 à 12:00", clock)
	assert.True(t, future.IsNull())
}

func TestExtractMaxSignatureDate(t *testing.T) {
	clock := wikidate.NewFrozen(mustDate(t, 2020, 6, 15))
	text := "1 janvier 2019 à 10:00 puis 2 mars 2020 à 9:00 puis 5 février 2019 à 8:00"
	d := wikiutil.ExtractMaxSignatureDate(text, clock)
	assert.False(t, d.IsNull())
	want, err := wikidate.ParseYMDHMS(2020, 3, 2, 9, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, d.UTCDate.Equal(want), "got %v want %v", d.UTCDate, want)
}

func TestSignatureDateLocalDate(t *testing.T) {
	clock := wikidate.NewFrozen(mustDate(t, 2020, 6, 15))
	d := wikiutil.ExtractFirstSignatureDate("1 janvier 2020 à 12:34 (CET)", clock)
	assert.Equal(t, "2020-01-01T12:34:00Z", d.LocalDate().ToISO8601())
	assert.Equal(t, "2020-01-01T11:34:00Z", d.UTCDate.ToISO8601())
}
