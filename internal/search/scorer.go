// Package search implements fuzzy scoring over the inverted index and
// the query engine that merges fuzzy ranking with exact store lookups.
package search

import (
	"sort"

	"github.com/searchworks/persondex/internal/indexer/index"
	"github.com/searchworks/persondex/internal/indexer/tokenizer"
)

// Query is a per-request, per-field weighted fuzzy query.
type Query struct {
	Text  map[string]string
	Boost map[string]float64
	Limit int
}

// Source tells whether a result came from an exact storage lookup or
// from the fuzzy index ranking. Exact results always rank first.
type Source int

const (
	SourceExact Source = iota
	SourceFuzzy
)

func (s Source) String() string {
	if s == SourceExact {
		return "exact"
	}
	return "fuzzy"
}

// ScoredResult is one ranked hit.
type ScoredResult struct {
	DocID  string
	Score  float64
	Source Source
}

// Scorer computes fuzzy relevance against a built index.
//
// Scoring scheme: for every query field, the query text is tokenized
// with the same tokenizer the index was built with, and each token
// contributes its raw in-field term frequency multiplied by the
// field's boost. Contributions are summed over tokens and fields.
// The scheme is monotonic in term frequency; fields without a boost
// contribute nothing. Ties are broken by document id ascending.
type Scorer struct {
	ix *index.Index
}

// NewScorer wraps a built, published index.
func NewScorer(ix *index.Index) *Scorer {
	return &Scorer{ix: ix}
}

// Score computes the relevance of a single document for the query.
// A document with no matching token in any boosted field scores 0.
func (s *Scorer) Score(docID string, q Query) float64 {
	var score float64
	for field, text := range q.Text {
		boost := q.Boost[field]
		if boost == 0 {
			continue
		}
		for _, token := range tokenizer.Tokenize(text) {
			for _, p := range s.ix.Lookup(field, token) {
				if p.DocID == docID {
					score += float64(p.Frequency) * boost
				}
			}
		}
	}
	return score
}

// TopCandidates ranks every document with a nonzero score and returns
// the best n, ordered by score descending with document id ascending
// as the tie-break. Zero-score documents never appear.
func (s *Scorer) TopCandidates(q Query, n int) []ScoredResult {
	scores := make(map[string]float64)
	for field, text := range q.Text {
		boost := q.Boost[field]
		if boost == 0 {
			continue
		}
		for _, token := range tokenizer.Tokenize(text) {
			for _, p := range s.ix.Lookup(field, token) {
				scores[p.DocID] += float64(p.Frequency) * boost
			}
		}
	}

	ranked := make([]ScoredResult, 0, len(scores))
	for docID, score := range scores {
		ranked = append(ranked, ScoredResult{DocID: docID, Score: score, Source: SourceFuzzy})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DocID < ranked[j].DocID
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
