package wikiutil

import "gitlab.com/orlodrimbot/mwbot/wikidate"

// FrWikiLocalTime converts a UTC instant to French wiki local time
// (Europe/Paris civil time). It implements the DST transition rule directly
// (last Sunday of March at 01:00 UTC to last Sunday of October at 01:00 UTC)
// rather than depending on a system tzdata install.
func FrWikiLocalTime(utc wikidate.Date) wikidate.Date {
	t := utc.Time()
	summerTime := false
	switch t.Month() {
	case 3:
		lastDayOfMarch := daysInMonth(3, t.Year())
		firstDayOfSummerTime := lastDayOfMarch - weekdayOf(t.Year(), 3, lastDayOfMarch)
		summerTime = t.Day() > firstDayOfSummerTime || (t.Day() == firstDayOfSummerTime && t.Hour() >= 1)
	case 10:
		lastDayOfOctober := daysInMonth(10, t.Year())
		firstDayOfWinterTime := lastDayOfOctober - weekdayOf(t.Year(), 10, lastDayOfOctober)
		summerTime = t.Day() < firstDayOfWinterTime || (t.Day() == firstDayOfWinterTime && t.Hour() == 0)
	case 4, 5, 6, 7, 8, 9:
		summerTime = true
	}
	offset := int64(3600)
	if summerTime {
		offset = 7200
	}
	return utc.Add(wikidate.DateDiff(offset))
}

// weekdayOf returns the day of week (0=Sunday) of year-month-day.
func weekdayOf(year, month, day int) int {
	d, err := wikidate.ParseYMDHMS(year, month, day, 0, 0, 0)
	if err != nil {
		return 0
	}
	return int(d.Time().Weekday())
}
