package analysis

import (
	"regexp"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// DictionaryEntry documents one column.
type DictionaryEntry struct {
	Column      string     `json:"column"`
	Type        ColumnType `json:"type"`
	MissingPct  float64    `json:"missing_pct"`
	Unique      int        `json:"unique"`
	UniqueRatio float64    `json:"unique_ratio"`
	Examples    []string   `json:"examples"`
	Notes       []string   `json:"notes"`
}

const (
	maxDictionaryCols  = 60
	maxExamples        = 4
	idUniqueRatio      = 0.9
	highMissingPctNote = 30.0
)

var identifierName = regexp.MustCompile(`(?i)(^id$|_id$|^id_|uuid|guid|identifier)`)

// BuildDataDictionary describes up to 60 columns in table order.
func BuildDataDictionary(t *dataset.Table, types Types, p *Profile) []DictionaryEntry {
	rows := t.Len()
	out := []DictionaryEntry{}
	for _, name := range firstN(t.Columns(), maxDictionaryCols) {
		c, _ := t.Column(name)
		typ := types[name]
		nonNull := c.NonNull()
		unique := c.Distinct()
		if typ == TypeNumeric {
			unique = distinctFloats(c.ValidFloats())
		}
		e := DictionaryEntry{
			Column:      name,
			Type:        typ,
			Unique:      unique,
			UniqueRatio: round(float64(unique)/float64(max(nonNull, 1)), 4),
			Examples:    examples(c, maxExamples),
			Notes:       []string{},
		}
		if rows > 0 {
			e.MissingPct = round(float64(c.Missing())/float64(rows)*100, 2)
		}
		if e.MissingPct >= highMissingPctNote {
			e.Notes = append(e.Notes, "High missing rate (≥30%).")
		}
		if (typ == TypeCategorical || typ == TypeText) && nonNull > 0 && e.UniqueRatio >= idUniqueRatio {
			e.Notes = append(e.Notes, "Mostly unique values; likely an identifier.")
		}
		if identifierName.MatchString(name) {
			e.Notes = append(e.Notes, "Name looks like an identifier.")
		}
		if typ == TypeNumeric && unique <= 1 {
			e.Notes = append(e.Notes, "Constant numeric column.")
		}
		out = append(out, e)
	}
	return out
}

// examples returns up to n distinct non-missing values in row order.
func examples(c *dataset.Column, n int) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, cell := range c.Cells {
		if cell.Null {
			continue
		}
		if _, ok := seen[cell.Raw]; ok {
			continue
		}
		seen[cell.Raw] = struct{}{}
		out = append(out, cell.Raw)
		if len(out) >= n {
			break
		}
	}
	return out
}
