package search

import (
	"testing"

	"github.com/searchworks/persondex/internal/indexer"
	"github.com/searchworks/persondex/internal/indexer/index"
)

func buildNamesIndex(t *testing.T, docs []index.Document) *index.Index {
	t.Helper()
	ix, err := index.Build(docs, indexer.TextFields, indexer.KeywordFields)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func personDoc(id, given, family string) index.Document {
	return index.Document{
		ID: id,
		Fields: map[string]string{
			indexer.FieldID:         id,
			indexer.FieldGivenName:  given,
			indexer.FieldFamilyName: family,
		},
	}
}

var namesCorpus = []index.Document{
	personDoc("1", "Ana", "Lopez"),
	personDoc("2", "Ana", "Lopes"),
	personDoc("3", "Juan", "Lopez"),
}

func namesQuery(given, family string) Query {
	q := Query{
		Text: map[string]string{},
		Boost: map[string]float64{
			indexer.FieldGivenName:  10.0,
			indexer.FieldFamilyName: 1.0,
		},
	}
	if given != "" {
		q.Text[indexer.FieldGivenName] = given
	}
	if family != "" {
		q.Text[indexer.FieldFamilyName] = family
	}
	return q
}

func TestScore(t *testing.T) {
	s := NewScorer(buildNamesIndex(t, namesCorpus))
	q := namesQuery("Ana", "Lopez")

	cases := map[string]float64{
		"1": 11, // given and family both match
		"2": 10, // given only
		"3": 1,  // family only
	}
	for docID, want := range cases {
		if got := s.Score(docID, q); got != want {
			t.Errorf("Score(%s) = %v, want %v", docID, got, want)
		}
	}
}

func TestTopCandidatesOrdering(t *testing.T) {
	s := NewScorer(buildNamesIndex(t, namesCorpus))
	ranked := s.TopCandidates(namesQuery("Ana", "Lopez"), 10)

	want := []string{"1", "2", "3"}
	if len(ranked) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i].DocID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].DocID, id)
		}
		if ranked[i].Source != SourceFuzzy {
			t.Errorf("ranked[%d].Source = %s, want fuzzy", i, ranked[i].Source)
		}
	}
	if ranked[0].Score <= ranked[1].Score || ranked[1].Score <= ranked[2].Score {
		t.Errorf("scores not strictly descending: %v", ranked)
	}
}

func TestTopCandidatesTieBreak(t *testing.T) {
	docs := []index.Document{
		personDoc("2", "Ana", "Lopez"),
		personDoc("1", "Ana", "Lopez"),
	}
	s := NewScorer(buildNamesIndex(t, docs))
	ranked := s.TopCandidates(namesQuery("Ana", ""), 10)

	if len(ranked) != 2 {
		t.Fatalf("got %d candidates, want 2", len(ranked))
	}
	if ranked[0].DocID != "1" || ranked[1].DocID != "2" {
		t.Errorf("equal scores not ordered by id: [%s %s]", ranked[0].DocID, ranked[1].DocID)
	}
}

func TestTopCandidatesExcludesZeroScores(t *testing.T) {
	s := NewScorer(buildNamesIndex(t, namesCorpus))
	if ranked := s.TopCandidates(namesQuery("Zelda", ""), 10); len(ranked) != 0 {
		t.Errorf("non-matching query returned %d candidates", len(ranked))
	}
}

func TestScoreIgnoresUnboostedFields(t *testing.T) {
	s := NewScorer(buildNamesIndex(t, namesCorpus))
	q := Query{
		Text:  map[string]string{indexer.FieldFamilyName: "Lopez"},
		Boost: map[string]float64{indexer.FieldGivenName: 10.0},
	}
	if got := s.Score("1", q); got != 0 {
		t.Errorf("Score = %v for a field without a boost, want 0", got)
	}
}

func TestTopCandidatesTruncation(t *testing.T) {
	s := NewScorer(buildNamesIndex(t, namesCorpus))
	ranked := s.TopCandidates(namesQuery("Ana", "Lopez"), 1)
	if len(ranked) != 1 || ranked[0].DocID != "1" {
		t.Errorf("TopCandidates(_, 1) = %v, want just doc 1", ranked)
	}
}

func BenchmarkTopCandidates(b *testing.B) {
	ix, err := index.Build(namesCorpus, indexer.TextFields, indexer.KeywordFields)
	if err != nil {
		b.Fatal(err)
	}
	s := NewScorer(ix)
	q := namesQuery("Ana", "Lopez")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.TopCandidates(q, 10)
	}
}
