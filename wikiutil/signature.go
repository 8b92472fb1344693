package wikiutil

import (
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

// SignatureDate is a date extracted from a wiki signature: the UTC instant
// plus the local/UTC offset the signature was originally expressed in.
type SignatureDate struct {
	UTCDate      wikidate.Date
	LocalTimeDiff wikidate.DateDiff
}

// IsNull reports whether d denotes "no date found".
func (d SignatureDate) IsNull() bool { return d.UTCDate.IsNull() }

// LocalDate returns the date as it reads in the original wikitext.
func (d SignatureDate) LocalDate() wikidate.Date { return d.UTCDate.Add(d.LocalTimeDiff) }

var monthsByName = map[string]int{
	"janvier": 1, "février": 2, "fevrier": 2, "mars": 3, "avril": 4, "mai": 5,
	"juin": 6, "juillet": 7, "août": 8, "aout": 8, "septembre": 9,
	"octobre": 10, "novembre": 11, "décembre": 12, "decembre": 12,
}

// signatureRe matches a French wiki signature date: "1 janvier 2020 à
// 12:34" optionally followed by "(CET)"/"(CEST)".
var signatureRe = regexp.MustCompile(
	`(?i)(\d{1,2})\s*(?:1er)?\s*([\p{L}]+)\s+(\d{3,4})\s+à\s+(\d{1,2})\s*:\s*(\d{2})(?:\s*\((CET|CEST)\))?`)

// ExtractFirstSignatureDate returns the first signature-shaped date in
// text, ignoring matches in the future (beyond a small clock-skew
// tolerance).
func ExtractFirstSignatureDate(text string, clock wikidate.Clock) SignatureDate {
	for _, m := range signatureRe.FindAllStringSubmatch(text, -1) {
		if d, ok := signatureDateFromMatch(m, clock); ok {
			return d
		}
	}
	return SignatureDate{}
}

// ExtractMaxSignatureDate returns the highest (most recent, non-future)
// signature-shaped date in text.
func ExtractMaxSignatureDate(text string, clock wikidate.Clock) SignatureDate {
	var best SignatureDate
	for _, m := range signatureRe.FindAllStringSubmatch(text, -1) {
		if d, ok := signatureDateFromMatch(m, clock); ok && d.UTCDate.After(best.UTCDate) {
			best = d
		}
	}
	return best
}

func signatureDateFromMatch(m []string, clock wikidate.Clock) (SignatureDate, bool) {
	day, _ := strconv.Atoi(m[1])
	month, ok := monthsByName[strings.ToLower(m[2])]
	if !ok || day < 1 || day > 31 {
		return SignatureDate{}, false
	}
	year, _ := strconv.Atoi(m[3])
	if year < 2000 {
		return SignatureDate{}, false
	}
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || day > daysInMonth(month, year) {
		return SignatureDate{}, false
	}
	var offset wikidate.DateDiff
	switch strings.ToUpper(m[6]) {
	case "CET":
		offset = wikidate.DateDiff(3600)
	case "CEST":
		offset = wikidate.DateDiff(3600 * 2)
	}
	local, err := wikidate.ParseYMDHMS(year, month, day, hour, minute, 0)
	if err != nil {
		return SignatureDate{}, false
	}
	utc := local.Add(-offset)
	// Reject dates too far in the future: timezone misreads plus a little
	// clock tolerance.
	if utc.After(clock.Now().Add(wikidate.DateDiff(3600*2 + 300))) {
		return SignatureDate{}, false
	}
	return SignatureDate{UTCDate: utc, LocalTimeDiff: offset}, true
}

func daysInMonth(month, year int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	default:
		return 0
	}
}
