package search

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/searchworks/persondex/internal/indexer"
	"github.com/searchworks/persondex/internal/store"
	apperrors "github.com/searchworks/persondex/pkg/errors"
)

type fakeStore struct {
	people  []store.Person
	failAll bool
}

var errStoreDown = errors.New("store down")

func (f *fakeStore) CountAll(ctx context.Context) (int64, error) {
	if f.failAll {
		return 0, errStoreDown
	}
	return int64(len(f.people)), nil
}

func (f *fakeStore) FetchAll(ctx context.Context, fn func(store.Person) error) error {
	if f.failAll {
		return errStoreDown
	}
	for _, p := range f.people {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) FetchByExactID(ctx context.Context, id int64) (*store.Person, error) {
	if f.failAll {
		return nil, errStoreDown
	}
	for _, p := range f.people {
		if p.ID == id {
			person := p
			return &person, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FetchByIDPrefix(ctx context.Context, prefix string, limit int) ([]store.Person, error) {
	if f.failAll {
		return nil, errStoreDown
	}
	var out []store.Person
	for _, p := range f.people {
		if strings.HasPrefix(strconv.FormatInt(p.ID, 10), prefix) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FetchByExactGivenAndFamilySubstring(ctx context.Context, given, familySub string, limit int) ([]store.Person, error) {
	if f.failAll {
		return nil, errStoreDown
	}
	var out []store.Person
	for _, p := range f.people {
		if strings.EqualFold(p.GivenName, given) &&
			strings.Contains(strings.ToLower(p.FamilyName), strings.ToLower(familySub)) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

var enginePeople = []store.Person{
	{ID: 1, GivenName: "Ana", FamilyName: "Lopez"},
	{ID: 2, GivenName: "Ana", FamilyName: "Lopes"},
	{ID: 3, GivenName: "Juan", FamilyName: "Lopez"},
}

// newReadyEngine builds the index from people and returns an engine
// backed by the same fake store.
func newReadyEngine(t *testing.T, people []store.Person) (*Engine, *fakeStore) {
	t.Helper()
	st := &fakeStore{people: people}
	mgr := indexer.NewManager(st, "", nil)
	if err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("building index: %v", err)
	}
	return NewEngine(st, mgr, 20, 100), st
}

func resultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func TestSearchRefusedWhileBuilding(t *testing.T) {
	st := &fakeStore{people: enginePeople}
	mgr := indexer.NewManager(st, "", nil)
	e := NewEngine(st, mgr, 20, 100)

	// Even the exact-id path is refused before the index is READY.
	_, err := e.Search(context.Background(), Request{ID: "1"})
	var notReady *apperrors.NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("err = %v, want NotReadyError", err)
	}
	if !errors.Is(err, apperrors.ErrNotReady) {
		t.Error("NotReadyError does not unwrap to ErrNotReady")
	}
}

func TestSearchInvalidLimit(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	for _, limit := range []int{-1, 101} {
		_, err := e.Search(context.Background(), Request{Given: "Ana", Limit: limit})
		if !errors.Is(err, apperrors.ErrInvalidQuery) {
			t.Errorf("limit %d: err = %v, want ErrInvalidQuery", limit, err)
		}
	}
}

func TestSearchByExactID(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	results, err := e.Search(context.Background(), Request{ID: "2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want exactly 1", len(results))
	}
	got := results[0]
	if got.ID != "2" || got.GivenName != "Ana" || got.FamilyName != "Lopes" {
		t.Errorf("result = %+v", got)
	}
	if !got.MatchedExactly {
		t.Error("exact id hit not flagged matched_exactly")
	}
}

func TestSearchByIDPrefix(t *testing.T) {
	e, _ := newReadyEngine(t, []store.Person{
		{ID: 91, GivenName: "Ana", FamilyName: "Lopez"},
		{ID: 92, GivenName: "Juan", FamilyName: "Diaz"},
		{ID: 10, GivenName: "Eva", FamilyName: "Ruiz"},
	})
	results, err := e.Search(context.Background(), Request{ID: "9"})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultIDs(results); !reflect.DeepEqual(got, []string{"91", "92"}) {
		t.Fatalf("prefix results = %v, want [91 92]", got)
	}
	for _, r := range results {
		if r.MatchedExactly {
			t.Errorf("prefix hit %s flagged matched_exactly", r.ID)
		}
	}
}

func TestSearchByIDNonNumeric(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	results, err := e.Search(context.Background(), Request{ID: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("non-numeric id returned %v", resultIDs(results))
	}
}

func TestSearchNameExactFirstMerge(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	results, err := e.Search(context.Background(), Request{Given: "Ana", Family: "Lopez"})
	if err != nil {
		t.Fatal(err)
	}

	if got := resultIDs(results); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Fatalf("result order = %v, want [1 2 3]", got)
	}
	if !results[0].MatchedExactly {
		t.Error("exact hit not first or not flagged")
	}
	for _, r := range results[1:] {
		if r.MatchedExactly {
			t.Errorf("fuzzy hit %s flagged matched_exactly", r.ID)
		}
	}
	// Fuzzy scores: given match dominates family match.
	if results[1].Score <= results[2].Score {
		t.Errorf("scores = %v / %v, want given-name match ranked above surname match",
			results[1].Score, results[2].Score)
	}
}

func TestSearchNameLimit(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	results, err := e.Search(context.Background(), Request{Given: "Ana", Family: "Lopez", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultIDs(results); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("limited results = %v, want [1 2]", got)
	}
}

func TestSearchGivenOnly(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	results, err := e.Search(context.Background(), Request{Given: "Ana"})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultIDs(results); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Fatalf("given-only results = %v, want [1 2]", got)
	}
	// No exact pass runs without both name terms.
	for _, r := range results {
		if r.MatchedExactly {
			t.Errorf("hit %s flagged matched_exactly without a family term", r.ID)
		}
	}
}

func TestSearchFamilyOnly(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	results, err := e.Search(context.Background(), Request{Family: "Lopez"})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultIDs(results); !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("family-only results = %v, want [1 3]", got)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	results, err := e.Search(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty query returned %v", resultIDs(results))
	}
}

func TestSearchDeterministic(t *testing.T) {
	e, _ := newReadyEngine(t, enginePeople)
	req := Request{Given: "Ana", Family: "Lopez"}

	first, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.Search(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
}

func TestSearchStoreFailure(t *testing.T) {
	e, st := newReadyEngine(t, enginePeople)
	st.failAll = true

	_, err := e.Search(context.Background(), Request{ID: "1"})
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("id path err = %v, want ErrStoreUnavailable", err)
	}

	_, err = e.Search(context.Background(), Request{Given: "Ana", Family: "Lopez"})
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("name path err = %v, want ErrStoreUnavailable", err)
	}
}
