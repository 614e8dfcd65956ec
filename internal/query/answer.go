package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
)

const previewAnswerRows = 25

// Fallback answers questions the deterministic engine cannot, typically by
// asking a generative model. Implementations must honour ctx.
type Fallback interface {
	Answer(ctx context.Context, question string, dc *DatasetContext) (*Answer, error)
}

// AnswerQuestion tries the deterministic engine, then fb (bounded by
// opt.FallbackTimeout; failures and empty answers are swallowed), then
// built-in heuristics. It always returns an answer.
func AnswerQuestion(ctx context.Context, s *Snapshot, question string, fb Fallback, opt Options) *Answer {
	opt = opt.withDefaults()
	if a := TryCompute(s, question); a != nil {
		return a
	}
	q := strings.TrimSpace(question)
	if fb != nil {
		if a := askFallback(ctx, s, q, fb, opt); a != nil {
			return a
		}
	}
	a := heuristicAnswer(s, strings.ToLower(q))
	a.Origin = OriginHeuristic
	cite := Citations{Computed: false, Source: OriginHeuristic, Question: q, ColumnsUsed: []string{}}
	if a.Citations != nil {
		cite.ColumnsUsed = a.Citations.ColumnsUsed
	}
	a.Citations = &cite
	return a
}

func askFallback(ctx context.Context, s *Snapshot, q string, fb Fallback, opt Options) *Answer {
	ctx, cancel := context.WithTimeout(ctx, opt.FallbackTimeout)
	defer cancel()
	a, err := fb.Answer(ctx, q, BuildContext(s, q, opt))
	if err != nil {
		log.Warn().Err(err).Msg("generative fallback failed; using heuristics")
		return nil
	}
	if a == nil || strings.TrimSpace(a.Text) == "" {
		return nil
	}
	a.Origin = OriginGenerated
	return a
}

func heuristicAnswer(s *Snapshot, ql string) *Answer {
	if strings.Contains(ql, "spike") || strings.Contains(ql, "anomal") || strings.Contains(ql, "outlier") {
		anomalies := s.Analysis.Anomalies
		if len(anomalies) == 0 {
			return &Answer{Type: TypeText, Text: "I didn’t detect strong anomalies with the default rules. Try asking about a specific column."}
		}
		top := anomalies[0]
		if top.Type == analysis.AnomalySpike && top.Spike != nil {
			return &Answer{Type: TypeText, Text: fmt.Sprintf(
				"Biggest spike detected in %s around %s (score≈%.2f). "+
					"Common causes: one-off large transactions, reporting changes, or missing/duplicated rows around that date.",
				top.Spike.YCol, top.Spike.X, top.Spike.Score),
				Citations: &Citations{ColumnsUsed: []string{top.Spike.XCol, top.Spike.YCol}}}
		}
		col := ""
		if top.Outlier != nil {
			col = top.Outlier.Col
		}
		return &Answer{Type: TypeText, Text: fmt.Sprintf("Outliers detected in %s beyond IQR bounds.", col),
			Citations: &Citations{ColumnsUsed: []string{col}}}
	}

	if strings.Contains(ql, "preview") || strings.Contains(ql, "show rows") {
		return &Answer{
			Type:      TypeTable,
			Text:      fmt.Sprintf("Here are the first %d rows.", previewAnswerRows),
			Table:     &Table{Columns: s.Table.Columns(), Rows: analysis.PreviewRows(s.Table, s.types(), previewAnswerRows)},
			Citations: &Citations{ColumnsUsed: s.Table.Columns()},
		}
	}

	return &Answer{Type: TypeText, Text: "I can answer questions like:\n" +
		"- 'top 10 customers by revenue'\n" +
		"- 'average order_value'\n" +
		"- 'what caused the spike in March?'\n\n" +
		"Try referencing column names. I see: " + strings.Join(capSlice(s.Table.Columns(), 25), ", ")}
}
