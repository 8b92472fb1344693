package wikiutil

import (
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

// ExtractThreadTitle returns just the heading line of a thread's wikicode:
// everything up to (not including) its first newline.
func ExtractThreadTitle(code string) string {
	if i := strings.IndexByte(code, '\n'); i >= 0 {
		return code[:i]
	}
	return code
}

var (
	dayMonthYearRe = regexp.MustCompile(`(?i)(\d{1,2})\s+([\p{L}]+)\s+(\d{3,4})`)
	monthYearRe    = regexp.MustCompile(`(?i)^([\p{L}]+)\s+(\d{3,4})$`)
	dayMonthRe     = regexp.MustCompile(`(?i)^(\d{1,2})\s+([\p{L}]+)$`)
	yearOnlyRe     = regexp.MustCompile(`^(\d{3,4})$`)
)

// ComputeDateInTitle extracts the date a thread's heading refers to, trying
// progressively less precise French formats ("2 mars 2000", "mars 2000",
// "2 mars", "2000"). useEndOfPeriod selects the last instant of an imprecise period (month or
// year) instead of its first; it has no effect once the day is known. For a
// day-month pair with no year, the year is whichever of the current or
// preceding year lands closest to clock.Now(). Returns wikidate.NullDate if
// no recognizable date is found.
func ComputeDateInTitle(code string, useEndOfPeriod bool, clock wikidate.Clock) wikidate.Date {
	title := TitleContent(ExtractThreadTitle(code))

	if m := dayMonthYearRe.FindStringSubmatch(title); m != nil {
		if d, ok := dateFromDMY(m[1], m[2], m[3]); ok {
			return d
		}
	}
	if m := yearOnlyRe.FindStringSubmatch(title); m != nil {
		year, err := strconv.Atoi(m[1])
		if err == nil {
			month, day := 1, 1
			if useEndOfPeriod {
				month, day = 12, 31
			}
			if d, err := wikidate.ParseYMDHMS(year, month, day, 0, 0, 0); err == nil {
				return d
			}
		}
	}
	if m := monthYearRe.FindStringSubmatch(title); m != nil {
		if month, ok := monthsByName[strings.ToLower(m[1])]; ok {
			if year, err := strconv.Atoi(m[2]); err == nil {
				day := 1
				if useEndOfPeriod {
					day = daysInMonth(month, year)
				}
				if d, err := wikidate.ParseYMDHMS(year, month, day, 0, 0, 0); err == nil {
					return d
				}
			}
		}
	}
	if m := dayMonthRe.FindStringSubmatch(title); m != nil {
		if month, ok := monthsByName[strings.ToLower(m[2])]; ok {
			if day, err := strconv.Atoi(m[1]); err == nil {
				if d, ok := nearestYearDate(month, day, clock.Now()); ok {
					return d
				}
			}
		}
	}
	return wikidate.NullDate
}

func dateFromDMY(dayStr, monthStr, yearStr string) (wikidate.Date, bool) {
	month, ok := monthsByName[strings.ToLower(monthStr)]
	if !ok {
		return wikidate.NullDate, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return wikidate.NullDate, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return wikidate.NullDate, false
	}
	if day < 1 || day > daysInMonth(month, year) {
		return wikidate.NullDate, false
	}
	d, err := wikidate.ParseYMDHMS(year, month, day, 0, 0, 0)
	if err != nil {
		return wikidate.NullDate, false
	}
	return d, true
}

// nearestYearDate resolves a year-less day/month pair to whichever of the
// current year or the preceding one puts the result closest to now, so "2
// novembre" read on 2005-01-01 resolves to 2004-11-02 (60 days in the past)
// rather than 2005-11-02 (305 days in the future), while "2 mars" read the
// same day resolves to 2005-03-02 (60 days ahead, closer than 2004-03-02).
func nearestYearDate(month, day int, now wikidate.Date) (wikidate.Date, bool) {
	currentYear := now.Time().Year()
	var best wikidate.Date
	var bestDiff int64
	found := false
	for _, year := range [2]int{currentYear, currentYear - 1} {
		if day < 1 || day > daysInMonth(month, year) {
			continue
		}
		d, err := wikidate.ParseYMDHMS(year, month, day, 0, 0, 0)
		if err != nil {
			continue
		}
		diff := d.Unix() - now.Unix()
		if diff < 0 {
			diff = -diff
		}
		if !found || diff < bestDiff {
			best, bestDiff, found = d, diff, true
		}
	}
	return best, found
}
