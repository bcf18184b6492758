package pipeline

import (
	"sync"

	"github.com/crimson-sun/fortiwatch/internal/engine/dedup"
	"github.com/crimson-sun/fortiwatch/internal/metrics"
	"github.com/crimson-sun/fortiwatch/internal/model"
)

// seenFactor sizes the remembered-ID history relative to the window.
const seenFactor = 10

// Window is the bounded, newest-first record buffer owned by one pipeline.
//
// Every cycle captures the generation before fetching and hands it back to
// Apply. Close and Reset advance the generation, so a cycle that started
// before either call cannot write its result into the window.
//
// The window also remembers the IDs of the last seenFactor*maxSize records
// it held, so a record that was pushed out and fetched again is not
// reported as fresh a second time.
type Window struct {
	mu      sync.RWMutex
	records []model.Record
	maxSize int
	gen     uint64
	closed  bool

	seen  map[string]struct{}
	order []string // seen IDs, oldest first
}

// NewWindow creates an open, empty window holding at most maxSize records.
// A maxSize <= 0 uses dedup.DefaultMaxSize.
func NewWindow(maxSize int) *Window {
	if maxSize <= 0 {
		maxSize = dedup.DefaultMaxSize
	}
	return &Window{maxSize: maxSize, seen: make(map[string]struct{})}
}

// Generation returns the current liveness token.
func (w *Window) Generation() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen
}

// Apply merges incoming into the window if it is open and gen is current.
// It returns the records whose IDs the window has not held recently and
// whether the merge happened at all.
func (w *Window) Apply(gen uint64, incoming []model.Record) ([]model.Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || gen != w.gen {
		return nil, false
	}

	held := make(map[string]struct{}, len(w.records))
	for _, r := range w.records {
		held[r.ID] = struct{}{}
	}

	w.records = dedup.Merge(w.records, incoming, w.maxSize)
	metrics.BufferRecords.Set(float64(len(w.records)))

	var fresh []model.Record
	for _, r := range w.records {
		_, wasHeld := held[r.ID]
		_, wasSeen := w.seen[r.ID]
		if !wasHeld && !wasSeen {
			fresh = append(fresh, r)
		}
	}
	// Oldest first, so the newest IDs are the last to be forgotten.
	for i := len(fresh) - 1; i >= 0; i-- {
		w.remember(fresh[i].ID)
	}
	return fresh, true
}

func (w *Window) remember(id string) {
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)
	if limit := w.maxSize * seenFactor; len(w.order) > limit {
		drop := len(w.order) - limit
		for _, old := range w.order[:drop] {
			delete(w.seen, old)
		}
		w.order = append(w.order[:0:0], w.order[drop:]...)
	}
}

// Snapshot returns a copy of the held records, newest first.
func (w *Window) Snapshot() []model.Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.Record, len(w.records))
	copy(out, w.records)
	return out
}

// Len returns the number of held records.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.records)
}

// MaxSize returns the window capacity.
func (w *Window) MaxSize() int { return w.maxSize }

// Open re-opens a closed window, keeping its records. Cycles started while
// the window was closed stay stale.
func (w *Window) Open() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.closed = false
		w.gen++
	}
}

// Close rejects all further merges until Open or Reset.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.gen++
}

// Closed reports whether the window rejects merges.
func (w *Window) Closed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// Reset drops every record and re-opens the window under a new generation.
// Used when the appliance configuration changes.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = nil
	w.seen = make(map[string]struct{})
	w.order = nil
	w.closed = false
	w.gen++
	metrics.BufferRecords.Set(0)
}
