package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalyzeBatch_GlobDedupAndSave(t *testing.T) {
	home, _ := isolate(t)

	// two files with the same basename in different directories
	d1 := filepath.Join(home, "d1")
	d2 := filepath.Join(home, "d2")
	if err := os.MkdirAll(d1, 0o755); err != nil {
		t.Fatalf("mkdir d1: %v", err)
	}
	if err := os.MkdirAll(d2, 0o755); err != nil {
		t.Fatalf("mkdir d2: %v", err)
	}
	csv := "col1,col2\nA,1\nB,2\nC,3\n"
	p1 := filepath.Join(d1, "metrics.csv")
	p2 := filepath.Join(d2, "metrics.csv")
	if err := os.WriteFile(p1, []byte(csv), 0o644); err != nil {
		t.Fatalf("write p1: %v", err)
	}
	if err := os.WriteFile(p2, []byte(csv), 0o644); err != nil {
		t.Fatalf("write p2: %v", err)
	}

	// the literal path repeats a glob match and must be processed once
	out := runCmd(t, "analyze-batch", filepath.Join(home, "d*", "metrics.csv"), p1, "--save", "--concurrency", "2")

	if got := strings.Count(out, "Processing metrics.csv..."); got != 2 {
		t.Fatalf("expected 2 progress lines, got %d:\n%s", got, out)
	}
	i1 := strings.Index(out, "✓ "+p1+": 3 rows × 2 columns")
	i2 := strings.Index(out, "✓ "+p2+": 3 rows × 2 columns")
	if i1 < 0 || i2 < 0 {
		t.Fatalf("missing summary lines:\n%s", out)
	}
	if i1 > i2 {
		t.Fatalf("summaries not in input order:\n%s", out)
	}
	if got := strings.Count(out, "(saved as "); got != 2 {
		t.Fatalf("expected 2 saved datasets, got %d", got)
	}
	if ids := savedIDs(t, home); len(ids) != 2 {
		t.Fatalf("expected 2 datasets in workspace, got %d", len(ids))
	}
}

func TestAnalyzeBatch_ReportsFailures(t *testing.T) {
	home, good := isolate(t)
	bad := filepath.Join(home, "notes.docx")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatalf("write bad: %v", err)
	}

	out, err := execCmd(t, "analyze-batch", good, bad, "--quiet")
	if err == nil {
		t.Fatalf("expected error for unsupported file")
	}
	if !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "Processing") {
		t.Fatalf("--quiet should suppress progress:\n%s", out)
	}
	if !strings.Contains(out, "✗ "+bad+":") || !strings.Contains(out, "✓ "+good+":") {
		t.Fatalf("expected one success and one failure line:\n%s", out)
	}
}

func TestAnalyzeBatch_NoMatches(t *testing.T) {
	home, _ := isolate(t)
	_, err := execCmd(t, "analyze-batch", filepath.Join(home, "missing", "*.csv"))
	if err == nil || !strings.Contains(err.Error(), "no input files matched") {
		t.Fatalf("expected no-match error, got %v", err)
	}
}

func TestAnalyzeBatch_FailFastStopsScheduling(t *testing.T) {
	home, good := isolate(t)
	bad := filepath.Join(home, "notes.docx")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatalf("write bad: %v", err)
	}

	// notes.docx sorts before sales.csv, so with one worker it fails first
	out, err := execCmd(t, "analyze-batch", good, bad, "--fail-fast", "--concurrency", "1", "--save")
	if err == nil {
		t.Fatalf("expected fail-fast error")
	}
	if !strings.HasPrefix(err.Error(), bad+": ") {
		t.Fatalf("error should name the failing file: %v", err)
	}
	if strings.Contains(out, "Processing sales.csv") {
		t.Fatalf("work continued after the first failure:\n%s", out)
	}
	if ids := savedIDs(t, home); len(ids) != 0 {
		t.Fatalf("expected nothing saved, got %d datasets", len(ids))
	}
}
