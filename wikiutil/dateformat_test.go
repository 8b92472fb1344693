package wikiutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

func TestMonthName(t *testing.T) {
	name, ok := wikiutil.MonthName(1)
	assert.True(t, ok)
	assert.Equal(t, "janvier", name)
	name, ok = wikiutil.MonthName(12)
	assert.True(t, ok)
	assert.Equal(t, "décembre", name)
	_, ok = wikiutil.MonthName(0)
	assert.False(t, ok)
	_, ok = wikiutil.MonthName(13)
	assert.False(t, ok)
}

func TestFormatDate(t *testing.T) {
	d := mustDate(t, 2020, 10, 15)
	assert.Equal(t, "15 octobre 2020", wikiutil.FormatDate(d, wikiutil.DateFormatLong, wikiutil.DatePrecisionDay))
	assert.Equal(t, "15/10/20", wikiutil.FormatDate(d, wikiutil.DateFormatShort, wikiutil.DatePrecisionDay))

	first := mustDate(t, 2020, 10, 1)
	assert.Equal(t, "1 octobre 2020", wikiutil.FormatDate(first, wikiutil.DateFormatLong, wikiutil.DatePrecisionDay))
	assert.Equal(t, "1er octobre 2020", wikiutil.FormatDate(first, wikiutil.DateFormatLong1st, wikiutil.DatePrecisionDay))
	assert.Equal(t, "{{1er}} octobre 2020", wikiutil.FormatDate(first, wikiutil.DateFormatLong1stTemplate, wikiutil.DatePrecisionDay))
	// The "1st of the month" suffix only applies on the 1st.
	assert.Equal(t, "15 octobre 2020", wikiutil.FormatDate(d, wikiutil.DateFormatLong1st, wikiutil.DatePrecisionDay))

	withTime := mustDateTime(t, 2020, 10, 15, 9, 5, 3)
	assert.Equal(t, "15 octobre 2020 à 09:05", wikiutil.FormatDate(withTime, wikiutil.DateFormatLong, wikiutil.DatePrecisionMinute))
	assert.Equal(t, "15 octobre 2020 à 09:05:03", wikiutil.FormatDate(withTime, wikiutil.DateFormatLong, wikiutil.DatePrecisionSecond))

	assert.Equal(t, "", wikiutil.FormatDate(wikidate.NullDate, wikiutil.DateFormatLong, wikiutil.DatePrecisionDay))
}

func mustDateTime(t *testing.T, year, month, day, hour, minute, second int) wikidate.Date {
	t.Helper()
	d, err := wikidate.ParseYMDHMS(year, month, day, hour, minute, second)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
