package retrieval

import (
	"fmt"
	"math"
	"testing"
)

func TestTokenizeDropsShortTokens(t *testing.T) {
	got := Tokenize("Top 10 customers by Revenue_total!")
	for _, want := range []string{"top", "customers", "revenue", "total"} {
		if _, ok := got[want]; !ok {
			t.Fatalf("missing token %q in %v", want, got)
		}
	}
	for _, drop := range []string{"10", "by"} {
		if _, ok := got[drop]; ok {
			t.Fatalf("short token %q kept", drop)
		}
	}
}

func TestOverlapScore(t *testing.T) {
	q := Tokenize("revenue region total west")
	doc := Tokenize("region revenue")
	if got := OverlapScore(q, doc); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected 2/sqrt(4)=1, got %v", got)
	}
	if OverlapScore(q, nil) != 0 {
		t.Fatalf("empty doc should score 0")
	}
}

func TestSearchRanksAndBoosts(t *testing.T) {
	idx := Build(
		[]ColumnDoc{
			{Name: "revenue", Summary: "{type: numeric}"},
			{Name: "region", TopValues: []string{"north", "south"}, Summary: "{type: categorical}"},
			{Name: "notes"},
		},
		[]string{`{"type":"spike","y_col":"revenue"}`},
		[]string{`{"a":"revenue","b":"units","corr":0.9}`},
	)
	res := idx.Search("why did revenue spike", 10)
	if len(res.Snippets) != 3 {
		t.Fatalf("expected 3 snippets, got %+v", res.Snippets)
	}
	// anomaly matches two tokens plus boost
	if res.Snippets[0].Key != "anomaly[0]" {
		t.Fatalf("expected anomaly first, got %+v", res.Snippets)
	}
	if res.Snippets[1].Key != "corr[0]" || res.Snippets[2].Key != "revenue" {
		t.Fatalf("unexpected order: %+v", res.Snippets)
	}
	if len(res.SelectedColumns) != 1 || res.SelectedColumns[0] != "revenue" {
		t.Fatalf("selected columns: %v", res.SelectedColumns)
	}
	if res.Snippets[2].Text != "Column: revenue | summary: {type: numeric}" {
		t.Fatalf("snippet text: %q", res.Snippets[2].Text)
	}
}

func TestSearchMatchesTopValues(t *testing.T) {
	idx := Build([]ColumnDoc{{Name: "region", TopValues: []string{"north", "south"}}}, nil, nil)
	res := idx.Search("sales in the north", 0)
	if len(res.SelectedColumns) != 1 || res.SelectedColumns[0] != "region" {
		t.Fatalf("expected region via top values, got %+v", res)
	}
}

func TestSearchCapsSectionsAndTopK(t *testing.T) {
	var anomalies []string
	for i := 0; i < 30; i++ {
		anomalies = append(anomalies, fmt.Sprintf("outlier in amount %d", i))
	}
	idx := Build(nil, anomalies, nil)
	if len(idx.Records) != 20 {
		t.Fatalf("expected 20 anomaly records, got %d", len(idx.Records))
	}
	res := idx.Search("amount outlier", 5)
	if len(res.Snippets) != 5 || res.Snippets[0].Key != "anomaly[0]" {
		t.Fatalf("unexpected result: %+v", res.Snippets)
	}
}

func TestSearchEmptyQuestion(t *testing.T) {
	idx := Build([]ColumnDoc{{Name: "revenue"}}, nil, nil)
	res := idx.Search("  a b ", 10)
	if len(res.Snippets) != 0 || res.SelectedColumns == nil {
		t.Fatalf("expected empty non-nil result, got %+v", res)
	}
}
