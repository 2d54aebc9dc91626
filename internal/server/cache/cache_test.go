package cache

import (
	"strings"
	"testing"

	"github.com/searchworks/persondex/internal/search"
)

func TestBuildKeyNormalization(t *testing.T) {
	base := buildKey(search.Request{Given: "Ana", Family: "Lopez", Limit: 20})

	// Case and surrounding whitespace in name terms do not split entries.
	same := []search.Request{
		{Given: "ana", Family: "lopez", Limit: 20},
		{Given: " Ana ", Family: "Lopez ", Limit: 20},
		{Given: "ANA", Family: "LOPEZ", Limit: 20},
	}
	for _, req := range same {
		if got := buildKey(req); got != base {
			t.Errorf("buildKey(%+v) = %s, want %s", req, got, base)
		}
	}

	different := []search.Request{
		{Given: "Ana", Family: "Lopes", Limit: 20},
		{Given: "Ana", Family: "Lopez", Limit: 10},
		{Given: "Ana", Family: "Lopez", ID: "1", Limit: 20},
	}
	for _, req := range different {
		if got := buildKey(req); got == base {
			t.Errorf("buildKey(%+v) collides with the base request", req)
		}
	}
}

func TestBuildKeyPrefix(t *testing.T) {
	key := buildKey(search.Request{ID: "42", Limit: 1})
	if !strings.HasPrefix(key, keyPrefix) {
		t.Errorf("key %s missing prefix %s", key, keyPrefix)
	}
	// Invalidate's pattern must cover every key the cache writes.
	if len(key) != len(keyPrefix)+32 {
		t.Errorf("key length = %d, want %d", len(key), len(keyPrefix)+32)
	}
}
