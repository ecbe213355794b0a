package date

import (
	"errors"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// RFC2822Layout is the strict layout a compliant Date header must follow
const RFC2822Layout = "Mon, _2 Jan 2006 15:04:05 -0700"

const (
	minTZHours = -12
	maxTZHours = 14
	minYear    = 1971
)

// ErrEmptyDate is returned when a date header value is missing
var ErrEmptyDate = errors.New("date cannot be empty")

// offsetPattern matches a numeric zone token such as +0100 or -0530
var offsetPattern = regexp.MustCompile(`^[+-]\d{4}$`)

// fallbackLayouts covers the non-compliant shapes seen in real Date headers
var fallbackLayouts = []string{
	"Mon, _2 Jan 2006 15:04:05",
	"Mon, _2 Jan 2006 15:04",
	"_2 Jan 2006 15:04:05 -0700",
	"_2 Jan 2006 15:04:05",
	"Mon, _2 Jan 06 15:04:05 -0700",
	"Mon, _2 Jan 2006 15:04:05 MST",
	time.ANSIC,
	time.UnixDate,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Date is a parsed header date together with its compliance flags
type Date struct {
	raw     string
	t       time.Time
	rfc2822 bool
	parsed  bool
	// tzHours comes from the zone token when the value carries one, so an
	// offset the parsers reject or drop is still reported
	tzHours *int
}

// Parse parses a header date. Only an empty string is an error; every other
// input yields a Date, falling back to progressively looser parsers.
func Parse(s string) (*Date, error) {
	if s == "" {
		return nil, ErrEmptyDate
	}

	// Folded headers only carry the date on their first line
	value := s
	if i := strings.IndexAny(value, "\r\n"); i >= 0 {
		value = value[:i]
	}
	value = strings.TrimSpace(value)

	d := &Date{raw: s, tzHours: zoneHours(value)}

	if t, err := time.Parse(RFC2822Layout, value); err == nil {
		d.t, d.rfc2822, d.parsed = t, true, true
		return d, nil
	}

	if t, ok := parseLoose(value); ok {
		d.t, d.parsed = t, true
		return d, nil
	}

	// Trailing comments and zone names often defeat the parsers, so retry
	// on the leading "Mon, 2 Jan 2006 15:04:05" part only
	if fields := strings.Fields(value); len(fields) > 5 {
		if t, ok := parseLoose(strings.Join(fields[:5], " ")); ok {
			d.t, d.parsed = t, true
			return d, nil
		}
	}

	return d, nil
}

// zoneHours returns the hours of the first numeric zone token of value
func zoneHours(value string) *int {
	for _, field := range strings.Fields(value) {
		if !offsetPattern.MatchString(field) {
			continue
		}
		n, err := strconv.Atoi(field[1:3])
		if err != nil {
			return nil
		}
		if field[0] == '-' {
			n = -n
		}
		return &n
	}
	return nil
}

func parseLoose(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t, true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseIn(value, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Raw returns the header value the date was built from
func (d *Date) Raw() string {
	return d.raw
}

// Time returns the parsed timestamp; the zero time when nothing could be parsed
func (d *Date) Time() time.Time {
	return d.t
}

// Parsed reports whether any parser accepted the value
func (d *Date) Parsed() bool {
	return d.parsed
}

// IsRFC2822 reports whether the value matched the strict RFC 2822 layout
func (d *Date) IsRFC2822() bool {
	return d.rfc2822
}

// TZHours returns the timezone offset in whole hours
func (d *Date) TZHours() int {
	if d.tzHours != nil {
		return *d.tzHours
	}
	_, offset := d.t.Zone()
	return offset / 3600
}

// TZValid reports whether the offset lies in the range used by real
// timezones. An unparsed date has no trustworthy offset.
func (d *Date) TZValid() bool {
	if !d.parsed {
		return false
	}
	h := d.TZHours()
	return h >= minTZHours && h <= maxTZHours
}

// Valid reports a compliant date: strict RFC 2822, a real timezone and not before 1971
func (d *Date) Valid() bool {
	return d.parsed && d.rfc2822 && d.TZValid() && d.t.Year() >= minYear
}

// Equal compares two dates by instant and offset
func (d *Date) Equal(o *Date) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.t.Format(time.RFC3339) == o.t.Format(time.RFC3339)
}

func (d *Date) String() string {
	return d.t.Format(time.RFC3339)
}

// ToMap returns the serialization form of the date
func (d *Date) ToMap() map[string]any {
	return map[string]any{
		"is_RFC_2822": d.rfc2822,
		"is_tz_valid": d.TZValid(),
		"is_valid":    d.Valid(),
		"date":        d.t.Format(time.RFC3339),
		"posix":       d.t.Unix(),
		"year":        d.t.Year(),
		"month":       int(d.t.Month()),
		"day":         d.t.Day(),
		"hour":        d.t.Hour(),
		"minute":      d.t.Minute(),
		"second":      d.t.Second(),
	}
}
