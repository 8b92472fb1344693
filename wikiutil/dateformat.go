package wikiutil

import (
	"fmt"
	"strings"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

// DateFormat selects how FormatDate renders the day.
type DateFormat int

const (
	// DateFormatLong renders e.g. "1 octobre 2000".
	DateFormatLong DateFormat = iota
	// DateFormatLong1st renders the first of the month as "1er octobre 2000".
	DateFormatLong1st
	// DateFormatLong1stTemplate renders the first of the month as
	// "{{1er}} octobre 2000", for wikitext that wraps the ordinal suffix in
	// a template so it can be swapped for other date conventions.
	DateFormatLong1stTemplate
	// DateFormatShort renders e.g. "01/10/00" (two-digit year).
	DateFormatShort
)

// DatePrecision selects how much of the time-of-day FormatDate appends.
type DatePrecision int

const (
	// DatePrecisionDay appends nothing past the day.
	DatePrecisionDay DatePrecision = iota
	// DatePrecisionMinute appends " à HH:MM".
	DatePrecisionMinute
	// DatePrecisionSecond appends " à HH:MM:SS".
	DatePrecisionSecond
)

var frenchMonths = [12]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// MonthName returns the French name of month (1-12).
func MonthName(month int) (string, bool) {
	if month < 1 || month > 12 {
		return "", false
	}
	return frenchMonths[month-1], true
}

// FormatDate renders date in French. Only French is currently supported.
// Returns "" for a null date.
func FormatDate(date wikidate.Date, format DateFormat, precision DatePrecision) string {
	if date.IsNull() {
		return ""
	}
	t := date.Time()

	var dayPart string
	if format == DateFormatShort {
		dayPart = fmt.Sprintf("%02d/%02d/%02d", t.Day(), int(t.Month()), t.Year()%100)
	} else {
		dayPrefix, daySuffix := "", ""
		if t.Day() == 1 {
			switch format {
			case DateFormatLong1st:
				daySuffix = "er"
			case DateFormatLong1stTemplate:
				dayPrefix, daySuffix = "{{", "er}}"
			}
		}
		month := int(t.Month())
		if month < 1 {
			month = 1
		} else if month > 12 {
			month = 12
		}
		dayPart = fmt.Sprintf("%s%d%s %s %d", dayPrefix, t.Day(), daySuffix, frenchMonths[month-1], t.Year())
	}

	var b strings.Builder
	b.WriteString(dayPart)
	switch precision {
	case DatePrecisionMinute:
		fmt.Fprintf(&b, " à %02d:%02d", t.Hour(), t.Minute())
	case DatePrecisionSecond:
		fmt.Fprintf(&b, " à %02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return b.String()
}
