// Package server exposes the search core over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/searchworks/persondex/internal/analytics"
	"github.com/searchworks/persondex/internal/indexer"
	"github.com/searchworks/persondex/internal/search"
	"github.com/searchworks/persondex/internal/server/cache"
	apperrors "github.com/searchworks/persondex/pkg/errors"
	"github.com/searchworks/persondex/pkg/logger"
	"github.com/searchworks/persondex/pkg/metrics"
	"github.com/searchworks/persondex/pkg/middleware"
)

// Searcher is the query-engine surface the handler consumes.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]search.Result, error)
}

type Handler struct {
	engine    Searcher
	manager   *indexer.Manager
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates the handler set. cache, collector, and m may be nil.
func New(engine Searcher, manager *indexer.Manager, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:    engine,
		manager:   manager,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

type searchResponse struct {
	Given   string          `json:"given,omitempty"`
	Family  string          `json:"family,omitempty"`
	ID      string          `json:"id,omitempty"`
	Total   int             `json:"total"`
	Results []search.Result `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req := search.Request{
		Given:  r.URL.Query().Get("given"),
		Family: r.URL.Query().Get("family"),
		ID:     r.URL.Query().Get("id"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		req.Limit = parsed
	}

	var results []search.Result
	var err error
	cacheHit := false

	if h.cache != nil {
		results, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() ([]search.Result, error) {
			return h.engine.Search(ctx, req)
		})
	} else {
		results, err = h.engine.Search(ctx, req)
	}

	if err != nil {
		h.writeSearchError(w, log, req, err)
		return
	}

	latency := time.Since(start)
	h.observe(results, cacheHit, latency)

	log.Info("search completed",
		"given", req.Given,
		"family", req.Family,
		"id", req.ID,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		exactHits := 0
		for _, res := range results {
			if res.MatchedExactly {
				exactHits++
			}
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Given:     req.Given,
			Family:    req.Family,
			ID:        req.ID,
			Limit:     req.Limit,
			Returned:  len(results),
			ExactHits: exactHits,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			RequestID: middleware.GetRequestID(ctx),
			Timestamp: time.Now().UTC(),
		})
	}

	h.writeJSON(w, http.StatusOK, searchResponse{
		Given:   req.Given,
		Family:  req.Family,
		ID:      req.ID,
		Total:   len(results),
		Results: results,
	})
}

// writeSearchError maps engine errors to structured responses; no
// rejected query is dropped silently.
func (h *Handler) writeSearchError(w http.ResponseWriter, log *slog.Logger, req search.Request, err error) {
	var notReady *apperrors.NotReadyError
	if errors.As(err, &notReady) {
		h.countOutcome("not_ready")
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":    "index not ready",
			"progress": notReady.Progress,
		})
		return
	}

	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.countOutcome("error")
		log.Error("search failed",
			"given", req.Given,
			"family", req.Family,
			"id", req.ID,
			"error", err,
		)
		h.writeError(w, status, "search failed")
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.countOutcome("error")
		h.writeError(w, status, appErr.Message)
		return
	}
	h.countOutcome("error")
	h.writeError(w, status, err.Error())
}

func (h *Handler) observe(results []search.Result, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	outcome := "zero_result"
	if len(results) > 0 {
		if results[0].MatchedExactly {
			outcome = "exact"
		} else {
			outcome = "fuzzy"
		}
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	h.metrics.SearchResultsCount.Observe(float64(len(results)))
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
}

func (h *Handler) countOutcome(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

// Status reports the index lifecycle state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.manager.Status()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ready":     status.Ready(),
		"state":     status.State.String(),
		"progress":  status.Progress,
		"documents": status.Documents,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
