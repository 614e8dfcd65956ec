package query

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// MatchColumn resolves free text to a column name. Candidates are ranked:
//  1. a case-insensitive exact match wins outright;
//  2. otherwise the first column, in table order, whose lower-cased name
//     contains the text;
//  3. otherwise the column containing the most of the text's alphanumeric
//     tokens, ties going to the earlier column.
//
// Text sharing no token with any column does not match.
func MatchColumn(text string, columns []string) (string, bool) {
	raw := strings.ToLower(strings.TrimSpace(text))
	if raw == "" {
		return "", false
	}
	for _, c := range columns {
		if strings.ToLower(c) == raw {
			return c, true
		}
	}
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c), raw) {
			return c, true
		}
	}

	var toks []string
	for _, t := range nonAlnum.Split(raw, -1) {
		if t != "" {
			toks = append(toks, t)
		}
	}
	best, bestScore := "", 0
	for _, c := range columns {
		cl := strings.ToLower(c)
		score := 0
		for _, t := range toks {
			if strings.Contains(cl, t) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore > 0
}
