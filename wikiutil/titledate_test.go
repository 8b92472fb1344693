package wikiutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

func TestExtractThreadTitle(t *testing.T) {
	assert.Equal(t, "== 2 mars 2020 ==", wikiutil.ExtractThreadTitle("== 2 mars 2020 ==\nBody text\nMore text"))
	assert.Equal(t, "== No newline ==", wikiutil.ExtractThreadTitle("== No newline =="))
	assert.Equal(t, "", wikiutil.ExtractThreadTitle("\nBody"))
}

func TestComputeDateInTitle(t *testing.T) {
	clock := wikidate.NewFrozen(mustDate(t, 2005, 1, 1))
	check := func(code string, useEndOfPeriod bool, year, month, day int) {
		t.Helper()
		d := wikiutil.ComputeDateInTitle(code, useEndOfPeriod, clock)
		want, err := wikidate.ParseYMDHMS(year, month, day, 0, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		assert.True(t, d.Equal(want), "ComputeDateInTitle(%q, %v) = %v, want %v", code, useEndOfPeriod, d, want)
	}

	check("== 2 mars 2000 ==", false, 2000, 3, 2)
	check("== 2 mars 2000 ==", true, 2000, 3, 2)
	check("== mars 2000 ==", false, 2000, 3, 1)
	check("== mars 2000 ==", true, 2000, 3, 31)
	check("== 2000 ==", false, 2000, 1, 1)
	check("== 2000 ==", true, 2000, 12, 31)

	// Day+month with no year resolves to whichever of the current/preceding
	// year lands closest to the clock's "now" (2005-01-01 here): "2
	// novembre" is 60 days in the past in 2004 vs. 305 days in the future in
	// 2005, so it resolves to 2004; "2 mars" is 60 days ahead in 2005 vs.
	// over a year back in 2004, so it resolves to 2005.
	check("== 2 novembre ==", false, 2004, 11, 2)
	check("== 2 novembre ==", true, 2004, 11, 2)
	check("== 2 mars ==", false, 2005, 3, 2)

	assert.True(t, wikiutil.ComputeDateInTitle("== Unrelated archive ==", false, clock).IsNull())
	assert.True(t, wikiutil.ComputeDateInTitle("", false, clock).IsNull())
}

func mustDate(t *testing.T, year, month, day int) wikidate.Date {
	t.Helper()
	d, err := wikidate.ParseYMDHMS(year, month, day, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
