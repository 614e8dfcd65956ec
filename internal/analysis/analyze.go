package analysis

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// Analysis is the persisted analysis payload.
type Analysis struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Types       Types            `json:"types"`
	Profile     *Profile         `json:"profile"`
	ChartSpecs  []ChartSpec      `json:"chart_specs"`
	Charts      []Chart          `json:"charts"`
	Anomalies   []Anomaly        `json:"anomalies"`
	Insights    []Insight        `json:"insights"`
	Preview     []map[string]any `json:"preview"`
	Overview    Overview         `json:"overview"`
}

// Analyze runs the full pipeline over t: type inference, profiling, chart
// suggestions and their data, anomalies, insights, preview and overview.
func Analyze(t *dataset.Table, opt Options) *Analysis {
	opt = opt.withDefaults()
	start := time.Now()

	types := InferTypes(t)
	profile := BuildProfile(t, types, opt)
	specs := SuggestCharts(t, types, profile, opt)
	anomalies := DetectAnomalies(t, types, profile, opt)

	charts := make([]Chart, 0, len(specs))
	for _, s := range specs {
		charts = append(charts, MaterializeChart(t, s, opt))
	}

	a := &Analysis{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Types:       types,
		Profile:     profile,
		ChartSpecs:  specs,
		Charts:      charts,
		Anomalies:   anomalies,
		Insights:    SummarizeInsights(profile, specs, anomalies),
		Preview:     PreviewRows(t, types, opt.PreviewRows),
	}
	a.Overview = BuildOverview(t, types, profile)

	log.Debug().
		Int("rows", t.Len()).
		Int("cols", t.Width()).
		Int("charts", len(charts)).
		Int("anomalies", len(anomalies)).
		Dur("took", time.Since(start)).
		Msg("analysis complete")
	return a
}

// Spikes returns the indexes of spike anomalies in a.Anomalies.
func (a *Analysis) Spikes() []int {
	var out []int
	for i, an := range a.Anomalies {
		if an.Type == AnomalySpike {
			out = append(out, i)
		}
	}
	return out
}
