package workspace

import (
	"time"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// Dataset holds metadata for an imported dataset. Delimiter, Decimal and
// Thousands record the parse settings used at import; empty means the
// loader's default.
type Dataset struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SourceFile string     `json:"source_file"`
	Sheet      string     `json:"sheet,omitempty"`
	MaxRows    int        `json:"max_rows,omitempty"`
	Delimiter  string     `json:"delimiter,omitempty"`
	Decimal    string     `json:"decimal,omitempty"`
	Thousands  string     `json:"thousands,omitempty"`
	Rows       int        `json:"rows"`
	Cols       int        `json:"cols"`
	Columns    []string   `json:"columns"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	AnalyzedAt *time.Time `json:"analyzed_at,omitempty"`
	RunID      string     `json:"run_id,omitempty"`
}

// LoadOptions rebuilds the options the dataset was imported with.
func (d *Dataset) LoadOptions() dataset.LoadOptions {
	return dataset.LoadOptions{
		Sheet:     d.Sheet,
		MaxRows:   d.MaxRows,
		Delimiter: firstRune(d.Delimiter),
		Numbers:   dataset.NumberFormat{Decimal: firstRune(d.Decimal), Thousands: firstRune(d.Thousands)},
	}
}

func (d *Dataset) setLoadOptions(opt dataset.LoadOptions) {
	d.Sheet, d.MaxRows = opt.Sheet, opt.MaxRows
	d.Delimiter = runeString(opt.Delimiter)
	d.Decimal = runeString(opt.Numbers.Decimal)
	d.Thousands = runeString(opt.Numbers.Thousands)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func runeString(r rune) string {
	if r == 0 {
		return ""
	}
	return string(r)
}
