// Package wikidate implements the Date/DateDiff value types shared by every
// layer of mwbot.
//
// Date has 1-second resolution and is always UTC. The null Date is the
// sentinel less than all others. A Clock indirection replaces a hidden
// global "now": production code uses RealClock, tests use a Frozen clock.
package wikidate

import (
	"strconv"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
)

// Date is a UTC timestamp with 1-second resolution. The zero value is the
// null date, which compares less than every other Date.
type Date struct {
	// unix holds seconds since the Unix epoch; it is 0 for null, which
	// valid=false marks.
	unix  int64
	valid bool
}

// DateDiff is a signed count of seconds between two Dates.
type DateDiff int64

// NullDate is the sentinel date that compares less than all others.
var NullDate = Date{}

// FromTime builds a Date truncated to 1-second resolution from a time.Time,
// converting to UTC first.
func FromTime(t time.Time) Date {
	return Date{unix: t.UTC().Unix(), valid: true}
}

// FromUnix builds a Date from a Unix timestamp in seconds.
func FromUnix(sec int64) Date {
	return Date{unix: sec, valid: true}
}

// IsNull reports whether d is the null date.
func (d Date) IsNull() bool {
	return !d.valid
}

// Time returns the equivalent time.Time in UTC. The null date maps to the
// zero time.Time.
func (d Date) Time() time.Time {
	if !d.valid {
		return time.Time{}
	}
	return time.Unix(d.unix, 0).UTC()
}

// Unix returns seconds since the Unix epoch. The null date returns 0.
func (d Date) Unix() int64 {
	if !d.valid {
		return 0
	}
	return d.unix
}

// Compare returns -1, 0, or 1 as d is less than, equal to, or greater than
// other. The null date is less than every non-null date and equal only to
// itself.
func (d Date) Compare(other Date) int {
	if !d.valid && !other.valid {
		return 0
	}
	if !d.valid {
		return -1
	}
	if !other.valid {
		return 1
	}
	switch {
	case d.unix < other.unix:
		return -1
	case d.unix > other.unix:
		return 1
	default:
		return 0
	}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// Equal reports whether d and other denote the same instant.
func (d Date) Equal(other Date) bool { return d.Compare(other) == 0 }

// Add returns d shifted by diff seconds. Adding to the null date yields the
// null date.
func (d Date) Add(diff DateDiff) Date {
	if !d.valid {
		return d
	}
	return Date{unix: d.unix + int64(diff), valid: true}
}

// Sub returns the signed number of seconds between d and other (d - other).
func (d Date) Sub(other Date) DateDiff {
	if !d.valid || !other.valid {
		return 0
	}
	return DateDiff(d.unix - other.unix)
}

// Seconds returns diff as a plain count of seconds.
func (diff DateDiff) Seconds() int64 { return int64(diff) }

// Days returns diff truncated towards zero to whole days, the day-precision
// helper the archiver's maxAgeInDays arithmetic needs.
func (diff DateDiff) Days() int64 { return int64(diff) / secondsPerDay }

// FromDays builds a DateDiff representing exactly n days.
func FromDays(n int64) DateDiff { return DateDiff(n * secondsPerDay) }

const secondsPerDay = 24 * 60 * 60

const iso8601Layout = "2006-01-02T15:04:05Z"

// ToISO8601 formats d as "YYYY-MM-DDThh:mm:ssZ". The null date serializes
// to the empty string; FromISO8601 accepts that back.
func (d Date) ToISO8601() string {
	if !d.valid {
		return ""
	}
	return d.Time().Format(iso8601Layout)
}

// FromISO8601 parses the ISO-8601 layout ToISO8601 produces, or the empty
// string as the null date.
func FromISO8601(s string) (Date, errors.E) {
	if s == "" {
		return NullDate, nil
	}
	t, err := time.Parse(iso8601Layout, s)
	if err != nil {
		return NullDate, errors.WrapWith(errors.Wrap(err, "invalid ISO-8601 date: "+s), errs.Parse)
	}
	return FromTime(t), nil
}

// MarshalJSON implements json.Marshaler, emitting the ISO-8601 string (or
// null for the null date, matching how MediaWiki timestamps are absent for
// unset fields rather than present-but-invalid).
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.valid {
		return []byte("null"), nil
	}
	return []byte(`"` + d.ToISO8601() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = NullDate
		return nil
	}
	parsed, err := FromISO8601(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) String() string {
	if !d.valid {
		return "<null date>"
	}
	return d.ToISO8601()
}

// ParseYMDHMS builds a Date from explicit components, validating that the
// year is in range (1-9999) and that the day exists in the given month.
func ParseYMDHMS(year, month, day, hour, minute, second int) (Date, errors.E) {
	if year < 1 || year > 9999 {
		return NullDate, errors.WrapWith(errors.Errorf("year out of range: %d", year), errs.Parse)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return NullDate, errors.WrapWith(errors.Errorf("invalid date: %04d-%02d-%02d", year, month, day), errs.Parse)
	}
	return FromTime(t), nil
}

// FormatDayCount is a small helper used by edit summaries ("archiving
// threads older than N days").
func FormatDayCount(diff DateDiff) string {
	return strconv.FormatInt(diff.Days(), 10)
}
