package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/searchworks/persondex/internal/indexer"
	"github.com/searchworks/persondex/internal/search"
	"github.com/searchworks/persondex/internal/store"
	apperrors "github.com/searchworks/persondex/pkg/errors"
)

type fakeSearcher struct {
	results []search.Result
	err     error
	lastReq search.Request
}

func (f *fakeSearcher) Search(ctx context.Context, req search.Request) ([]search.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type staticStore struct {
	people []store.Person
}

func (s *staticStore) CountAll(ctx context.Context) (int64, error) {
	return int64(len(s.people)), nil
}

func (s *staticStore) FetchAll(ctx context.Context, fn func(store.Person) error) error {
	for _, p := range s.people {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *staticStore) FetchByExactID(ctx context.Context, id int64) (*store.Person, error) {
	return nil, nil
}

func (s *staticStore) FetchByIDPrefix(ctx context.Context, prefix string, limit int) ([]store.Person, error) {
	return nil, nil
}

func (s *staticStore) FetchByExactGivenAndFamilySubstring(ctx context.Context, given, familySub string, limit int) ([]store.Person, error) {
	return nil, nil
}

func readyManager(t *testing.T) *indexer.Manager {
	t.Helper()
	mgr := indexer.NewManager(&staticStore{people: []store.Person{
		{ID: 1, GivenName: "Ana", FamilyName: "Lopez"},
	}}, "", nil)
	if err := mgr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	return mgr
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
}

func TestSearchOK(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		{ID: "1", GivenName: "Ana", FamilyName: "Lopez", MatchedExactly: true},
		{ID: "2", GivenName: "Ana", FamilyName: "Lopes", Score: 10},
	}}
	h := New(searcher, readyManager(t), nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?given=Ana&family=Lopez&limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp searchResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 2 || len(resp.Results) != 2 {
		t.Errorf("total = %d, results = %d", resp.Total, len(resp.Results))
	}
	if resp.Given != "Ana" || resp.Family != "Lopez" {
		t.Errorf("echoed query = %q/%q", resp.Given, resp.Family)
	}
	if !resp.Results[0].MatchedExactly || resp.Results[1].MatchedExactly {
		t.Error("matched_exactly flags lost in transit")
	}
	want := search.Request{Given: "Ana", Family: "Lopez", Limit: 5}
	if searcher.lastReq != want {
		t.Errorf("engine saw %+v, want %+v", searcher.lastReq, want)
	}
}

func TestSearchNotReady(t *testing.T) {
	searcher := &fakeSearcher{err: &apperrors.NotReadyError{Progress: 42}}
	h := New(searcher, readyManager(t), nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?given=Ana", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp struct {
		Error    string `json:"error"`
		Progress int    `json:"progress"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error != "index not ready" || resp.Progress != 42 {
		t.Errorf("body = %+v", resp)
	}
}

func TestSearchMalformedLimit(t *testing.T) {
	h := New(&fakeSearcher{}, readyManager(t), nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?given=Ana&limit=lots", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchRejectedQuery(t *testing.T) {
	searcher := &fakeSearcher{err: apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest,
		"limit must be between 1 and 100")}
	h := New(searcher, readyManager(t), nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?given=Ana&limit=999", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error != "limit must be between 1 and 100" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestSearchStoreFailure(t *testing.T) {
	searcher := &fakeSearcher{err: apperrors.Newf(apperrors.ErrStoreUnavailable,
		http.StatusServiceUnavailable, "storage lookup failed: connection refused")}
	h := New(searcher, readyManager(t), nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?id=1", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	// Internal detail stays out of the response body.
	if resp.Error != "search failed" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestStatusNotStarted(t *testing.T) {
	mgr := indexer.NewManager(&staticStore{}, "", nil)
	h := New(&fakeSearcher{}, mgr, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var resp struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	}
	decodeBody(t, rec, &resp)
	if resp.Ready || resp.State != "not_started" {
		t.Errorf("body = %+v", resp)
	}
}

func TestStatusReady(t *testing.T) {
	h := New(&fakeSearcher{}, readyManager(t), nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var resp struct {
		Ready     bool   `json:"ready"`
		State     string `json:"state"`
		Progress  int    `json:"progress"`
		Documents int    `json:"documents"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Ready || resp.State != "ready" || resp.Progress != 100 || resp.Documents != 1 {
		t.Errorf("body = %+v", resp)
	}
}

func TestCacheEndpointsDisabled(t *testing.T) {
	h := New(&fakeSearcher{}, readyManager(t), nil, nil, nil)

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	var stats struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &stats)
	if stats.Status != "disabled" {
		t.Errorf("stats body = %+v", stats)
	}

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d, want 503", rec.Code)
	}
}
