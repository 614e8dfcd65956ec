package query

import (
	"time"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// Options bound question answering and pivots.
type Options struct {
	// SampleRows is the number of rows sent to the generative fallback.
	SampleRows int
	// FallbackTimeout bounds the generative fallback call.
	FallbackTimeout time.Duration
	// ContextTokens caps the estimated size of the fallback context.
	ContextTokens int
	// PivotTopN is used when a pivot request leaves top_n unset.
	PivotTopN int
}

// DefaultOptions mirrors the dashboard defaults.
func DefaultOptions() Options {
	return Options{
		SampleRows:      20,
		FallbackTimeout: 25 * time.Second,
		ContextTokens:   6000,
		PivotTopN:       12,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleRows <= 0 {
		o.SampleRows = d.SampleRows
	}
	if o.FallbackTimeout <= 0 {
		o.FallbackTimeout = d.FallbackTimeout
	}
	if o.ContextTokens <= 0 {
		o.ContextTokens = d.ContextTokens
	}
	if o.PivotTopN <= 0 {
		o.PivotTopN = d.PivotTopN
	}
	return o
}

// Snapshot pairs a table with its analysis. The table is never modified.
type Snapshot struct {
	Table    *dataset.Table
	Analysis *analysis.Analysis
}

// NewSnapshot wraps t and a stored analysis; a nil analysis is computed
// with the default options.
func NewSnapshot(t *dataset.Table, a *analysis.Analysis) *Snapshot {
	if a == nil {
		a = analysis.Analyze(t, analysis.DefaultOptions())
	}
	if a.Types == nil {
		a.Types = analysis.InferTypes(t)
	}
	if a.Profile == nil {
		a.Profile = analysis.BuildProfile(t, a.Types, analysis.DefaultOptions())
	}
	return &Snapshot{Table: t, Analysis: a}
}

func (s *Snapshot) types() analysis.Types { return s.Analysis.Types }

func (s *Snapshot) profile() *analysis.Profile { return s.Analysis.Profile }

func (s *Snapshot) columnsOfType(ct analysis.ColumnType) []string {
	return analysis.ColumnsOfType(s.Table, s.types(), ct)
}
