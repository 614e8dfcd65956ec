package query

import (
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// runesPerToken approximates model tokenizers for prompt sizing; no specific
// tokenizer is followed.
const runesPerToken = 4

// estimateTokens sizes s in tokens. Non-empty text costs at least one.
func estimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return max(1, n/runesPerToken)
}

func tokensOf(v any) int { return estimateTokens(compactJSON(v)) }

// clipCell keeps the first tokens' worth of runes of s.
func clipCell(s string, tokens int) string {
	limit := tokens * runesPerToken
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// contextSize is the estimated token cost of a DatasetContext by section.
type contextSize struct {
	Summary   int
	Sample    int
	Anomalies int
	Retrieved int
	Total     int
}

func measureContext(dc *DatasetContext) contextSize {
	return contextSize{
		Summary:   tokensOf(dc.ColumnSummary),
		Sample:    tokensOf(dc.SampleRows),
		Anomalies: tokensOf(dc.Anomalies),
		Retrieved: tokensOf(dc.Retrieved),
		Total:     tokensOf(dc),
	}
}

func (z contextSize) MarshalZerologObject(e *zerolog.Event) {
	e.Int("summary", z.Summary).
		Int("sample", z.Sample).
		Int("anomalies", z.Anomalies).
		Int("retrieved", z.Retrieved).
		Int("total", z.Total)
}

// trimContext shrinks dc toward budget tokens: sample rows are halved down to
// minSampleRows, then column summaries are cut to the retrieved columns.
// The context may still exceed a budget smaller than its fixed parts.
func trimContext(dc *DatasetContext, budget int) contextSize {
	for tokensOf(dc) > budget && len(dc.SampleRows) > minSampleRows {
		dc.SampleRows = dc.SampleRows[:max(minSampleRows, len(dc.SampleRows)/2)]
	}
	if tokensOf(dc) > budget && len(dc.SelectedColumns) > 0 {
		kept := map[string]ColumnSummary{}
		for _, c := range dc.SelectedColumns {
			if sum, ok := dc.ColumnSummary[c]; ok {
				kept[c] = sum
			}
		}
		dc.ColumnSummary = kept
	}
	size := measureContext(dc)
	log.Debug().
		Object("tokens", size).
		Int("budget", budget).
		Bool("over_budget", size.Total > budget).
		Msg("fallback context built")
	return size
}
