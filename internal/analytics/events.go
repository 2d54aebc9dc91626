// Package analytics batches per-request search events and publishes
// them to a Kafka topic for offline analysis. The collector is
// optional: a nil *Collector is tolerated by all callers.
package analytics

import "time"

// EventType labels a search event.
type EventType string

const (
	EventSearch    EventType = "search"
	EventCacheHit  EventType = "search_cache_hit"
	EventCacheMiss EventType = "search_cache_miss"
)

// SearchEvent records one served search request.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Given     string    `json:"given,omitempty"`
	Family    string    `json:"family,omitempty"`
	ID        string    `json:"id,omitempty"`
	Limit     int       `json:"limit"`
	Returned  int       `json:"returned"`
	ExactHits int       `json:"exact_hits"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
