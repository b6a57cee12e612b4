package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Try3D/Eunoia/ai/metrics"
	"github.com/Try3D/Eunoia/store"
)

// ErrCorpusUnavailable reports a corpus source that is missing or unreadable.
var ErrCorpusUnavailable = errors.New("corpus unavailable")

// Source loads the records of a corpus in their stored order.
type Source interface {
	Load(ctx context.Context) ([]*ProjectRecord, error)
	Name() string
}

// FileSource reads a flat JSON array of project records.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file" }

// Load reads the whole file. Entries that fail to decode are skipped and
// logged with their index.
func (s *FileSource) Load(_ context.Context) ([]*ProjectRecord, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrCorpusUnavailable, s.Path)
		}
		return nil, fmt.Errorf("%w: %w", ErrCorpusUnavailable, err)
	}
	return DecodeRecords(data, s.Path)
}

// DecodeRecords decodes a JSON array of records, skipping malformed entries.
// origin only labels log lines.
func DecodeRecords(data []byte, origin string) ([]*ProjectRecord, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON array: %w", ErrCorpusUnavailable, origin, err)
	}

	records := make([]*ProjectRecord, 0, len(entries))
	for i, entry := range entries {
		var r ProjectRecord
		if err := json.Unmarshal(entry, &r); err != nil {
			slog.Warn("skipping malformed corpus record", "origin", origin, "index", i, "error", err)
			continue
		}
		records = append(records, &r)
	}
	return records, nil
}

// StoreSource reads the project_record table.
type StoreSource struct {
	Store *store.Store
}

func (s *StoreSource) Name() string { return "db" }

func (s *StoreSource) Load(ctx context.Context) ([]*ProjectRecord, error) {
	records, err := s.Store.ListProjectRecords(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorpusUnavailable, err)
	}
	return records, nil
}

// Snapshot is an immutable view of the corpus. It is shared by concurrent
// matches without locking.
type Snapshot struct {
	records  []*ProjectRecord
	embedded int
	LoadedAt time.Time
}

func newSnapshot(records []*ProjectRecord) *Snapshot {
	s := &Snapshot{records: make([]*ProjectRecord, 0, len(records)), LoadedAt: time.Now()}
	for _, r := range records {
		if r == nil {
			continue
		}
		s.records = append(s.records, r)
		if len(r.Embedding) > 0 {
			s.embedded++
		}
	}
	return s
}

// Records returns the records in corpus order. The slice must not be modified.
func (s *Snapshot) Records() []*ProjectRecord {
	return s.records
}

func (s *Snapshot) Len() int {
	return len(s.records)
}

// EmbeddedCount is the number of records carrying an embedding.
func (s *Snapshot) EmbeddedCount() int {
	return s.embedded
}

// Corpus holds the current snapshot and swaps in a new one on reload.
type Corpus struct {
	source  Source
	metrics *metrics.PrometheusExporter

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
}

// NewCorpus loads source once. A source that cannot be loaded yields an
// empty corpus; matching against it returns no results.
func NewCorpus(ctx context.Context, source Source, m *metrics.PrometheusExporter) *Corpus {
	c := &Corpus{source: source, metrics: m}
	if _, err := c.Reload(ctx); err != nil {
		slog.Warn("corpus unavailable, starting empty", "source", source.Name(), "error", err)
		c.current.Store(newSnapshot(nil))
		m.SetCorpusSize(0)
	}
	return c
}

// Snapshot returns the current snapshot. It is never nil.
func (c *Corpus) Snapshot() *Snapshot {
	if s := c.current.Load(); s != nil {
		return s
	}
	return newSnapshot(nil)
}

// Reload loads the source again and atomically replaces the snapshot.
// On failure the previous snapshot stays in place.
func (c *Corpus) Reload(ctx context.Context) (*Snapshot, error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	start := time.Now()
	records, err := c.source.Load(ctx)
	if err != nil {
		c.metrics.RecordCorpusReload(false)
		return nil, fmt.Errorf("load %s corpus: %w", c.source.Name(), err)
	}

	snap := newSnapshot(records)
	c.current.Store(snap)
	c.metrics.RecordCorpusReload(true)
	c.metrics.SetCorpusSize(snap.Len())

	slog.Info("corpus loaded",
		"source", c.source.Name(),
		"records", snap.Len(),
		"embedded", snap.EmbeddedCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}
