package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// Risk levels of a privacy scan.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// PIIMatches counts pattern hits in the sampled values.
type PIIMatches struct {
	Email int `json:"email"`
	Phone int `json:"phone"`
}

// PIIFinding flags one column that may hold personal data.
type PIIFinding struct {
	Column        string     `json:"column"`
	Signals       []string   `json:"signals"`
	SampleMatches PIIMatches `json:"sample_matches"`
	Score         int        `json:"score"`
}

// Privacy is the result of a PII scan.
type Privacy struct {
	Risk     string       `json:"risk"`
	Findings []PIIFinding `json:"findings"`
}

// PIIOptions bound the scan.
type PIIOptions struct {
	MaxColumns  int
	SampleRows  int
	MaxFindings int
}

// DefaultPIIOptions scans 40 columns over the first 200 rows.
func DefaultPIIOptions() PIIOptions {
	return PIIOptions{MaxColumns: 40, SampleRows: 200, MaxFindings: 12}
}

var (
	emailPattern = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[\s\-]?)?(?:\(?\d{3}\)?[\s\-]?)\d{3}[\s\-]?\d{4}\b`)
)

const (
	highRiskScore   = 8
	mediumRiskScore = 3
)

// nameSignals are checked against the lower-cased column name.
var nameSignals = []struct {
	signal   string
	keywords []string
}{
	{"email_keyword", []string{"email"}},
	{"phone_keyword", []string{"phone", "mobile"}},
	{"address_keyword", []string{"address"}},
	{"name_keyword", []string{"name"}},
}

// ScanPII checks column names and sampled values for email and phone data.
// Score per column is 2 per name signal, 3 for any email match and 2 for any
// phone match; the summed score sets the overall risk.
func ScanPII(t *dataset.Table, opt PIIOptions) Privacy {
	sample := t.Head(opt.SampleRows)
	findings := []PIIFinding{}
	total := 0
	for _, name := range firstN(t.Columns(), opt.MaxColumns) {
		lower := strings.ToLower(name)
		signals := []string{}
		for _, s := range nameSignals {
			for _, kw := range s.keywords {
				if strings.Contains(lower, kw) {
					signals = append(signals, s.signal)
					break
				}
			}
		}
		nameHits := len(signals)

		var m PIIMatches
		c, _ := sample.Column(name)
		for _, v := range c.Values() {
			if emailPattern.MatchString(v) {
				m.Email++
			}
			if phonePattern.MatchString(v) {
				m.Phone++
			}
		}
		if nameHits == 0 && m.Email == 0 && m.Phone == 0 {
			continue
		}
		score := 2 * nameHits
		if m.Email > 0 {
			signals = append(signals, "email_pattern")
			score += 3
		}
		if m.Phone > 0 {
			signals = append(signals, "phone_pattern")
			score += 2
		}
		total += score
		findings = append(findings, PIIFinding{Column: name, Signals: signals, SampleMatches: m, Score: score})
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Score > findings[j].Score })

	risk := RiskLow
	switch {
	case total >= highRiskScore:
		risk = RiskHigh
	case total >= mediumRiskScore:
		risk = RiskMedium
	}
	return Privacy{Risk: risk, Findings: firstN(findings, opt.MaxFindings)}
}
