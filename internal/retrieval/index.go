package retrieval

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Kind labels what a record was built from.
type Kind string

const (
	KindColumn      Kind = "column"
	KindAnomaly     Kind = "anomaly"
	KindCorrelation Kind = "correlation"
)

const (
	anomalyBoost     = 0.3
	correlationBoost = 0.2
	maxPerSection    = 20
	maxSelected      = 10
	minTokenLen      = 3

	// DefaultTopK is the number of snippets kept by Search when topK <= 0.
	DefaultTopK = 10
)

// Record is one searchable snippet.
type Record struct {
	Kind  Kind    `json:"kind"`
	Key   string  `json:"key"`
	Text  string  `json:"text"`
	Boost float64 `json:"-"`
	terms map[string]struct{}
}

// ColumnDoc describes a column for indexing. TopValues contribute search
// terms; Summary is carried into the snippet text.
type ColumnDoc struct {
	Name      string
	TopValues []string
	Summary   string
}

// Index is an in-memory lexical index over a dataset's context.
type Index struct {
	Records []Record
}

// Snippet is a retrieved record.
type Snippet struct {
	Kind Kind   `json:"kind"`
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Score reports why a snippet was selected.
type Score struct {
	Score float64 `json:"score"`
	Key   string  `json:"key"`
	Kind  Kind    `json:"kind"`
}

// Result is the outcome of a Search.
type Result struct {
	Snippets        []Snippet `json:"snippets"`
	SelectedColumns []string  `json:"selected_columns"`
	ScoreDebug      []Score   `json:"score_debug"`
}

var splitter = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize lower-cases text, splits on non-alphanumerics and keeps the
// distinct tokens of at least three characters.
func Tokenize(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range splitter.Split(strings.ToLower(text), -1) {
		if len(tok) >= minTokenLen {
			out[tok] = struct{}{}
		}
	}
	return out
}

// OverlapScore is |q ∩ doc| / sqrt(|q|).
func OverlapScore(q, doc map[string]struct{}) float64 {
	if len(q) == 0 || len(doc) == 0 {
		return 0
	}
	n := 0
	for t := range q {
		if _, ok := doc[t]; ok {
			n++
		}
	}
	return float64(n) / math.Sqrt(float64(len(q)))
}

// Build indexes column docs, then up to 20 anomalies and 20 correlations.
// Anomaly and correlation texts are pre-rendered by the caller.
func Build(columns []ColumnDoc, anomalies, correlations []string) *Index {
	idx := &Index{}
	for _, c := range columns {
		terms := c.Name
		for i, v := range c.TopValues {
			if i >= 4 {
				break
			}
			terms += " " + v
		}
		idx.add(Record{Kind: KindColumn, Key: c.Name, Text: fmt.Sprintf("Column: %s | summary: %s", c.Name, c.Summary)}, terms)
	}
	for i, a := range anomalies {
		if i >= maxPerSection {
			break
		}
		idx.add(Record{Kind: KindAnomaly, Key: fmt.Sprintf("anomaly[%d]", i), Text: "Anomaly: " + a, Boost: anomalyBoost}, a)
	}
	for i, c := range correlations {
		if i >= maxPerSection {
			break
		}
		idx.add(Record{Kind: KindCorrelation, Key: fmt.Sprintf("corr[%d]", i), Text: "Correlation: " + c, Boost: correlationBoost}, c)
	}
	return idx
}

func (idx *Index) add(r Record, terms string) {
	r.terms = Tokenize(terms)
	idx.Records = append(idx.Records, r)
}

// Search returns the top-k records sharing at least one token with the
// question, ordered by overlap score plus the record's boost. Equal scores
// keep index order.
func (idx *Index) Search(question string, topK int) Result {
	res := Result{Snippets: []Snippet{}, SelectedColumns: []string{}, ScoreDebug: []Score{}}
	q := Tokenize(strings.TrimSpace(question))
	if idx == nil || len(q) == 0 {
		return res
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	type scored struct {
		rec   Record
		score float64
	}
	var hits []scored
	for _, r := range idx.Records {
		s := OverlapScore(q, r.terms)
		if s > 0 {
			hits = append(hits, scored{rec: r, score: s + r.Boost})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	for _, h := range hits {
		res.Snippets = append(res.Snippets, Snippet{Kind: h.rec.Kind, Key: h.rec.Key, Text: h.rec.Text})
		res.ScoreDebug = append(res.ScoreDebug, Score{Score: h.score, Key: h.rec.Key, Kind: h.rec.Kind})
		if h.rec.Kind == KindColumn && len(res.SelectedColumns) < maxSelected {
			res.SelectedColumns = append(res.SelectedColumns, h.rec.Key)
		}
	}
	return res
}
