// Package indexer owns the index lifecycle: NOT_STARTED → BUILDING →
// READY. The Manager either loads a previously written snapshot or
// streams the corpus out of the person store and builds the inverted
// index, then publishes the result. State, progress, and the index
// reference are published together as one immutable struct behind an
// atomic pointer, so readers always observe a consistent triple.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/searchworks/persondex/internal/indexer/index"
	"github.com/searchworks/persondex/internal/indexer/snapshot"
	"github.com/searchworks/persondex/internal/store"
	"github.com/searchworks/persondex/pkg/metrics"
)

// Indexed field declarations for the person corpus. Text fields are
// tokenized; the identifier is a keyword field matched only by exact
// equality.
const (
	FieldGivenName  = "given_name"
	FieldFamilyName = "family_name"
	FieldID         = "id"
)

var (
	TextFields    = []string{FieldGivenName, FieldFamilyName}
	KeywordFields = []string{FieldID}
)

// State is the lifecycle state of the index.
type State int

const (
	StateNotStarted State = iota
	StateBuilding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the lifecycle.
type Status struct {
	State     State
	Progress  int
	Documents int
}

// Ready reports whether the index is available for queries.
func (s Status) Ready() bool {
	return s.State == StateReady
}

type published struct {
	state     State
	progress  int
	documents int
	index     *index.Index
}

// Manager builds or loads the index exactly once per process and
// exposes the published state to concurrent readers.
type Manager struct {
	store        store.Store
	snapshotPath string
	metrics      *metrics.Metrics
	logger       *slog.Logger
	current      atomic.Pointer[published]
}

// NewManager creates a Manager in the NOT_STARTED state. snapshotPath
// may be empty to disable snapshot load and write; m may be nil.
func NewManager(st store.Store, snapshotPath string, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		store:        st,
		snapshotPath: snapshotPath,
		metrics:      m,
		logger:       slog.Default().With("component", "indexer"),
	}
	mgr.current.Store(&published{state: StateNotStarted})
	return mgr
}

// Status returns the currently published lifecycle state. Safe for
// concurrent use at any time.
func (m *Manager) Status() Status {
	p := m.current.Load()
	return Status{State: p.state, Progress: p.progress, Documents: p.documents}
}

// Index returns the published index, or nil while it is not READY.
func (m *Manager) Index() *index.Index {
	return m.current.Load().index
}

// Run performs the one-time build. It first tries the snapshot file;
// a corrupt or incompatible snapshot is logged and discarded, never
// fatal. Otherwise it streams all rows from the store, builds the
// inverted index, publishes it, and writes a fresh snapshot
// (best-effort). Run must be called exactly once.
func (m *Manager) Run(ctx context.Context) error {
	if m.snapshotPath != "" {
		if ix, err := snapshot.Load(m.snapshotPath); err == nil {
			m.publishReady(ix)
			m.logger.Info("index loaded from snapshot",
				"path", m.snapshotPath,
				"documents", ix.DocCount(),
			)
			return nil
		} else {
			m.logger.Warn("snapshot unusable, rebuilding from store",
				"path", m.snapshotPath,
				"error", err,
			)
		}
	}

	start := time.Now()
	m.publishBuilding(0)

	total, err := m.store.CountAll(ctx)
	if err != nil {
		return fmt.Errorf("counting corpus: %w", err)
	}
	m.logger.Info("index build started", "documents", total)

	docs := make([]index.Document, 0, total)
	var fetched int64
	err = m.store.FetchAll(ctx, func(p store.Person) error {
		docs = append(docs, personDocument(p))
		fetched++
		if total > 0 && fetched%10000 == 0 {
			m.publishBuilding(buildProgress(fetched, total))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("streaming corpus: %w", err)
	}
	m.publishBuilding(buildProgress(fetched, total))

	ix, err := index.Build(docs, TextFields, KeywordFields)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	m.publishReady(ix)
	m.logger.Info("index build complete",
		"documents", ix.DocCount(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if m.snapshotPath != "" {
		if err := snapshot.Write(m.snapshotPath, ix.Export()); err != nil {
			// The snapshot is a cache; the next start rebuilds.
			m.logger.Warn("snapshot write failed", "path", m.snapshotPath, "error", err)
		} else {
			m.logger.Info("snapshot written", "path", m.snapshotPath)
		}
	}
	return nil
}

func (m *Manager) publishBuilding(progress int) {
	if progress > 99 {
		progress = 99
	}
	m.current.Store(&published{state: StateBuilding, progress: progress})
	if m.metrics != nil {
		m.metrics.IndexBuildProgress.Set(float64(progress))
	}
}

func (m *Manager) publishReady(ix *index.Index) {
	m.current.Store(&published{
		state:     StateReady,
		progress:  100,
		documents: ix.DocCount(),
		index:     ix,
	})
	if m.metrics != nil {
		m.metrics.IndexBuildProgress.Set(100)
		m.metrics.IndexDocuments.Set(float64(ix.DocCount()))
	}
}

func buildProgress(fetched, total int64) int {
	if total <= 0 {
		return 99
	}
	return int(fetched * 100 / total)
}

// personDocument converts a store row into an indexable document.
func personDocument(p store.Person) index.Document {
	id := fmt.Sprintf("%d", p.ID)
	return index.Document{
		ID: id,
		Fields: map[string]string{
			FieldID:         id,
			FieldGivenName:  p.GivenName,
			FieldFamilyName: p.FamilyName,
		},
	}
}
