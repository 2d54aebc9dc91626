package search

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/searchworks/persondex/internal/indexer"
	"github.com/searchworks/persondex/internal/store"
	apperrors "github.com/searchworks/persondex/pkg/errors"
)

// Boosts for the fuzzy name pass. A given-name match is a stronger
// identity signal than a surname match, so the weighting is asymmetric.
const (
	GivenNameBoost  = 10.0
	FamilyNameBoost = 1.0
)

// oversampleFactor controls how many fuzzy candidates are fetched
// beyond the requested limit, leaving room for deduplication against
// exact hits.
const oversampleFactor = 3

// Request is one search request as received from the API surface.
type Request struct {
	Given  string
	Family string
	ID     string
	Limit  int
}

// Result is one ranked person hit.
type Result struct {
	ID             string  `json:"id"`
	GivenName      string  `json:"given_name"`
	FamilyName     string  `json:"family_name"`
	Score          float64 `json:"score"`
	MatchedExactly bool    `json:"matched_exactly"`
}

// Engine orchestrates exact-match lookups, fuzzy ranking,
// deduplication, and the exact-first merge.
type Engine struct {
	store        store.Store
	manager      *indexer.Manager
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// NewEngine creates an Engine. defaultLimit applies when a request
// carries no limit; limits outside [1, maxResults] are rejected.
func NewEngine(st store.Store, mgr *indexer.Manager, defaultLimit, maxResults int) *Engine {
	return &Engine{
		store:        st,
		manager:      mgr,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "query-engine"),
	}
}

// Search runs the full query pipeline and returns at most limit
// results, exact hits first.
//
// While the index is still building, every request is refused with a
// NotReadyError carrying the current progress — including the
// exact-match paths that only need the store. Serving one path and not
// the other would let results change shape mid-startup.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	limit := req.Limit
	if limit == 0 {
		limit = e.defaultLimit
	}
	if limit < 1 || limit > e.maxResults {
		return nil, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest,
			"limit must be between 1 and %d", e.maxResults)
	}

	status := e.manager.Status()
	if !status.Ready() {
		return nil, &apperrors.NotReadyError{Progress: status.Progress}
	}

	if id := strings.TrimSpace(req.ID); id != "" {
		return e.searchByID(ctx, id, limit)
	}
	return e.searchByName(ctx, strings.TrimSpace(req.Given), strings.TrimSpace(req.Family), limit)
}

// searchByID serves the identifier path: exact equality first, then an
// id-prefix fallback. Both bypass the fuzzy index entirely.
func (e *Engine) searchByID(ctx context.Context, id string, limit int) ([]Result, error) {
	if numericID, err := strconv.ParseInt(id, 10, 64); err == nil {
		person, err := e.store.FetchByExactID(ctx, numericID)
		if err != nil {
			return nil, storeErr(err)
		}
		if person != nil {
			return []Result{personResult(*person, 0, true)}, nil
		}
	}

	people, err := e.store.FetchByIDPrefix(ctx, id, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	results := make([]Result, 0, len(people))
	for _, p := range people {
		results = append(results, personResult(p, 0, false))
	}
	return results, nil
}

// searchByName serves the name path: an exact pass against the store
// when both terms are present, then the fuzzy pass, then the
// exact-first deduplicating merge.
func (e *Engine) searchByName(ctx context.Context, given, family string, limit int) ([]Result, error) {
	if given == "" && family == "" {
		return []Result{}, nil
	}

	var exact []store.Person
	if given != "" && family != "" {
		hits, err := e.store.FetchByExactGivenAndFamilySubstring(ctx, given, family, limit)
		if err != nil {
			return nil, storeErr(err)
		}
		exact = hits
	}

	fuzzy := e.fuzzyCandidates(given, family, limit*oversampleFactor)

	results := make([]Result, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, p := range exact {
		id := strconv.FormatInt(p.ID, 10)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		results = append(results, personResult(p, 0, true))
		if len(results) == limit {
			return results, nil
		}
	}

	ix := e.manager.Index()
	for _, hit := range fuzzy {
		if _, dup := seen[hit.DocID]; dup {
			continue
		}
		doc, ok := ix.Document(hit.DocID)
		if !ok {
			continue
		}
		seen[hit.DocID] = struct{}{}
		results = append(results, Result{
			ID:         doc.ID,
			GivenName:  doc.Fields[indexer.FieldGivenName],
			FamilyName: doc.Fields[indexer.FieldFamilyName],
			Score:      hit.Score,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (e *Engine) fuzzyCandidates(given, family string, n int) []ScoredResult {
	q := Query{
		Text:  make(map[string]string, 2),
		Boost: map[string]float64{indexer.FieldGivenName: GivenNameBoost, indexer.FieldFamilyName: FamilyNameBoost},
	}
	if given != "" {
		q.Text[indexer.FieldGivenName] = given
	}
	if family != "" {
		q.Text[indexer.FieldFamilyName] = family
	}
	return NewScorer(e.manager.Index()).TopCandidates(q, n)
}

func personResult(p store.Person, score float64, exact bool) Result {
	return Result{
		ID:             strconv.FormatInt(p.ID, 10),
		GivenName:      p.GivenName,
		FamilyName:     p.FamilyName,
		Score:          score,
		MatchedExactly: exact,
	}
}

func storeErr(err error) error {
	return apperrors.Newf(apperrors.ErrStoreUnavailable, http.StatusServiceUnavailable,
		"storage lookup failed: %v", err)
}
