package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

var log = commonlog.GetLogger("drl.cache")

// Default budgets
const (
	DefaultMaxFileSize  = 1 << 20  // 1 MiB
	DefaultMaxTotalSize = 64 << 20 // 64 MiB
)

// Config holds the cache budgets
type Config struct {
	// MaxFileSize is the largest document (in bytes) whose results are cached
	MaxFileSize int64
	// MaxTotalSize bounds the estimated size of all entries together
	MaxTotalSize int64
	// Now is the clock used for entry timestamps
	Now func() time.Time
}

// Metrics is a snapshot of the cache counters
type Metrics struct {
	Hits      int64
	Misses    int64
	HitRatio  float64
	Entries   int
	Size      int64
	Evictions int64
}

// Manager caches parse results per document and pattern/bracket results
// per line range. All state is guarded by one mutex.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	lru      *lruList
	disposed bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewManager creates a cache. Zero budgets take the defaults.
func NewManager(cfg Config) *Manager {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxTotalSize <= 0 {
		cfg.MaxTotalSize = DefaultMaxTotalSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, lru: newLRUList()}
}

// Cacheable reports whether results for doc may be stored at all
func (m *Manager) Cacheable(doc *Document) bool {
	return int64(len(doc.Text)) <= m.cfg.MaxFileSize
}

// GetParse returns the cached parse of doc if it was stored for the same
// version and content. A stale entry is dropped.
func (m *Manager) GetParse(doc *Document) (*types.ParseResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := lookup(m, entryKey{kind: kindParse, uri: doc.URI}, func(e *Entry[*types.ParseResult]) bool {
		return e.Version == doc.Version && e.Hash == doc.Hash()
	})
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// LastParse returns the most recent parse stored for uri regardless of
// version. It is the base for incremental parsing and does not count as
// a hit or miss.
func (m *Manager) LastParse(uri string) (*types.ParseResult, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.lru.peek(entryKey{kind: kindParse, uri: uri})
	if !ok {
		return nil, 0, false
	}
	e := n.value.(*Entry[*types.ParseResult])
	return e.Value, e.Version, true
}

// PutParse stores the parse of doc
func (m *Manager) PutParse(doc *Document, res *types.ParseResult) {
	if !m.Cacheable(doc) {
		return
	}
	size := EstimateParseSize(doc.Text, res)

	m.mu.Lock()
	defer m.mu.Unlock()

	store(m, entryKey{kind: kindParse, uri: doc.URI}, &Entry[*types.ParseResult]{
		Value:      res,
		Version:    doc.Version,
		Hash:       doc.Hash(),
		LineRanges: []types.LineRange{{Start: 0, End: len(doc.Lines()) - 1}},
		Size:       size,
	})
}

// GetPatterns returns the patterns cached for lr if the text of those
// lines is unchanged
func (m *Manager) GetPatterns(doc *Document, lr types.LineRange) ([]*types.MultiLinePattern, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := lookup(m, entryKey{kind: kindPatterns, uri: doc.URI, lines: lr}, rangeValidator[[]*types.MultiLinePattern](doc, lr))
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// PutPatterns stores the patterns found in lr
func (m *Manager) PutPatterns(doc *Document, lr types.LineRange, patterns []*types.MultiLinePattern) {
	if !m.Cacheable(doc) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	store(m, entryKey{kind: kindPatterns, uri: doc.URI, lines: lr}, &Entry[[]*types.MultiLinePattern]{
		Value:      patterns,
		Version:    doc.Version,
		Hash:       doc.RangeHash(lr),
		LineRanges: []types.LineRange{lr},
		Size:       EstimatePatternsSize(patterns) + nodeOverhead,
	})
}

// GetBrackets returns the bracket tracker cached for lr if the text of
// those lines is unchanged
func (m *Manager) GetBrackets(doc *Document, lr types.LineRange) (*types.ParenthesesTracker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := lookup(m, entryKey{kind: kindBrackets, uri: doc.URI, lines: lr}, rangeValidator[*types.ParenthesesTracker](doc, lr))
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// PutBrackets stores the bracket tracker computed for lr
func (m *Manager) PutBrackets(doc *Document, lr types.LineRange, t *types.ParenthesesTracker) {
	if !m.Cacheable(doc) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	store(m, entryKey{kind: kindBrackets, uri: doc.URI, lines: lr}, &Entry[*types.ParenthesesTracker]{
		Value:      t,
		Version:    doc.Version,
		Hash:       doc.RangeHash(lr),
		LineRanges: []types.LineRange{lr},
		Size:       EstimateTrackerSize(t) + nodeOverhead,
	})
}

// Invalidate drops the line-range entries of uri that overlap any edited
// line range and returns how many were removed. The whole-document parse
// entry is left for incremental parsing to build on.
func (m *Manager) Invalidate(uri string, edits []types.LineRange) int {
	if len(edits) == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.lru.keys(func(k entryKey) bool {
		if k.uri != uri || k.kind == kindParse {
			return false
		}
		for _, e := range edits {
			if k.lines.Overlaps(e) {
				return true
			}
		}
		return false
	})
	for _, k := range keys {
		m.lru.remove(k)
	}
	if len(keys) > 0 {
		log.Debugf("invalidated %d entries for %s", len(keys), uri)
	}
	return len(keys)
}

// ClearDocument drops every entry of uri
func (m *Manager) ClearDocument(uri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.lru.keys(func(k entryKey) bool { return k.uri == uri })
	for _, k := range keys {
		m.lru.remove(k)
	}
	return len(keys)
}

// Metrics returns a snapshot of the counters
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	entries := m.lru.len()
	size := m.lru.curSize
	m.mu.Unlock()

	hits := m.hits.Load()
	misses := m.misses.Load()
	ratio := 0.0
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return Metrics{
		Hits:      hits,
		Misses:    misses,
		HitRatio:  ratio,
		Entries:   entries,
		Size:      size,
		Evictions: m.evictions.Load(),
	}
}

// Dispose drops all entries. Later lookups miss and stores are ignored.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.clear()
	m.disposed = true
}

// lookup finds a live entry and refreshes its access data. Callers hold m.mu.
func lookup[T any](m *Manager, key entryKey, valid func(*Entry[T]) bool) (*Entry[T], bool) {
	n, ok := m.lru.peek(key)
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	e, ok := n.value.(*Entry[T])
	if !ok || !valid(e) {
		m.lru.remove(key)
		m.misses.Add(1)
		return nil, false
	}
	m.lru.moveToFront(n)
	e.AccessCount++
	e.LastAccessed = m.cfg.Now()
	m.hits.Add(1)
	return e, true
}

// store inserts or replaces an entry, evicting least recently used ones to
// stay within budget. Entries larger than the whole budget are skipped.
// Callers hold m.mu.
func store[T any](m *Manager, key entryKey, e *Entry[T]) {
	if m.disposed || e.Size > m.cfg.MaxTotalSize {
		return
	}
	now := m.cfg.Now()
	e.CreatedAt = now
	e.LastAccessed = now

	m.lru.remove(key)
	if n := m.lru.evictUntilFits(e.Size, m.cfg.MaxTotalSize); n > 0 {
		m.evictions.Add(int64(n))
		log.Debugf("evicted %d entries to fit %s %s", n, key.kind, key.uri)
	}
	m.lru.put(key, e, e.Size)
}

// rangeValidator accepts an entry when the text of lr is unchanged. The
// stored version follows the document so the entry reports the version
// it was last confirmed against.
func rangeValidator[T any](doc *Document, lr types.LineRange) func(*Entry[T]) bool {
	return func(e *Entry[T]) bool {
		if e.Hash != doc.RangeHash(lr) {
			return false
		}
		e.Version = doc.Version
		return true
	}
}
