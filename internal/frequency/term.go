// Package frequency maintains per-project term statistics derived from the
// keyword and topic sets of analysis results.
package frequency

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/internal/results"
)

// PainPointCategory tags a term that appears inside one of a result's pain points.
const PainPointCategory = "pain_point"

// Term is one row of a project's frequency table.
type Term struct {
	ProjectID     uuid.UUID `json:"project_id"`
	Term          string    `json:"term"`
	Frequency     int64     `json:"frequency"`
	DocumentCount int64     `json:"document_count"`
	TFIDF         float64   `json:"tf_idf"`
	Category      string    `json:"category"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type tally struct {
	frequency int64
	documents int64
	votes     map[string]int64
}

// Compute derives the full term table of a project from its results. The
// output is ordered by frequency descending, then term ascending, and is
// identical for identical input regardless of result order.
func Compute(projectID uuid.UUID, items []results.Result, now time.Time) []Term {
	tallies := make(map[string]*tally)
	var occurrences int64

	for _, r := range items {
		pains := make([]string, len(r.PainPoints))
		for i, p := range r.PainPoints {
			pains[i] = strings.ToLower(p)
		}

		seen := make(map[string]bool)
		for _, list := range [][]string{r.Keywords, r.Topics} {
			for _, raw := range list {
				term := strings.ToLower(strings.TrimSpace(raw))
				if term == "" {
					continue
				}

				t, ok := tallies[term]
				if !ok {
					t = &tally{votes: make(map[string]int64)}
					tallies[term] = t
				}
				t.frequency++
				occurrences++

				if !seen[term] {
					seen[term] = true
					t.documents++
					t.votes[category(term, pains, r.SentimentLabel)]++
				}
			}
		}
	}

	total := float64(len(items))
	terms := make([]Term, 0, len(tallies))
	for term, t := range tallies {
		terms = append(terms, Term{
			ProjectID:     projectID,
			Term:          term,
			Frequency:     t.frequency,
			DocumentCount: t.documents,
			TFIDF:         float64(t.frequency) / float64(occurrences) * math.Log(total/float64(t.documents)),
			Category:      plurality(t.votes),
			UpdatedAt:     now,
		})
	}

	slices.SortFunc(terms, Compare)
	return terms
}

// Compare orders terms by frequency descending, then term ascending.
func Compare(a, b Term) int {
	if c := cmp.Compare(b.Frequency, a.Frequency); c != 0 {
		return c
	}
	return cmp.Compare(a.Term, b.Term)
}

func category(term string, pains []string, label results.Label) string {
	for _, p := range pains {
		if strings.Contains(p, term) {
			return PainPointCategory
		}
	}
	return string(label)
}

func plurality(votes map[string]int64) string {
	var (
		best  string
		count int64
	)
	for c, n := range votes {
		if n > count || (n == count && c < best) {
			best, count = c, n
		}
	}
	return best
}
