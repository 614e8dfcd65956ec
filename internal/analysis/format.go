package analysis

import (
	"math"
	"strconv"
	"strings"
)

// Commas renders n with thousands separators.
func Commas(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatG6 renders v with six significant digits and grouped thousands.
func FormatG6(v float64) string { return FormatG(v, 6) }

// FormatG renders v with the given significant digits and grouped
// thousands, switching to exponent notation for very large or small
// magnitudes.
func FormatG(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v, 'g', digits, 64)
	if strings.ContainsAny(s, "e") {
		return s
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	n, err := strconv.Atoi(intPart)
	if err != nil {
		return s
	}
	out := Commas(n)
	if intPart == "-0" {
		out = "-0"
	}
	if hasFrac {
		out += "." + frac
	}
	return out
}
