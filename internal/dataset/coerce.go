package dataset

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the canonical rendering for timestamps in analysis output.
const TimeLayout = "2006-01-02T15:04:05"

var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "null": {},
	"NULL": {}, "None": {}, "#N/A": {}, "<NA>": {},
}

// IsMissing reports whether a trimmed raw value is a missing marker.
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}

// NumberFormat selects the decimal and thousands separators used when
// coercing text to numbers. The zero value means '.' decimals with optional
// comma grouping ("1,234.5").
type NumberFormat struct {
	Decimal   rune
	Thousands rune
}

var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseNumber coerces s using the default number format.
func ParseNumber(s string) (float64, bool) {
	return NumberFormat{}.Parse(s)
}

// Parse coerces s to a finite float64.
func (nf NumberFormat) Parse(s string) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	if raw == "" {
		return 0, false
	}
	if strings.HasSuffix(raw, "%") {
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	}
	dec, thou := nf.Decimal, nf.Thousands
	if dec == 0 || dec == '.' {
		if thou == 0 && groupedNumber.MatchString(raw) {
			raw = strings.ReplaceAll(raw, ",", "")
		}
		dec = '.'
	}
	if thou != 0 && thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		if strings.ContainsRune(raw, '.') && thou != '.' {
			return 0, false
		}
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	TimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"02/01/2006",
	"02.01.2006",
	"2006-01",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseTime parses common date and datetime renderings. The result keeps the
// wall clock of the input and is expressed in UTC.
func ParseTime(s string) (time.Time, bool) {
	raw := strings.TrimSpace(s)
	if len(raw) < 6 {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
		}
	}
	return time.Time{}, false
}

// FormatTime renders t as YYYY-MM-DDTHH:MM:SS.
func FormatTime(t time.Time) string { return t.Format(TimeLayout) }

// ParseBool accepts true/false in any letter case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
