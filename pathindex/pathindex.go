// Package pathindex implements the client's in-memory record of every
// watched path and its last observed modification time, shared across the
// initialization worker pool and the steady-state scanner.
package pathindex

import (
	"sync"
	"time"
)

// Index maps absolute local paths to the last-modified timestamp at which
// they were last observed by the reconciliation engine. It is safe for
// concurrent use: initialization workers insert entries from multiple
// goroutines, and the steady-state loop reads and mutates it from one.
type Index struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// New returns an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]time.Time)}
}

// Set records path as last modified at mtime, inserting it if absent.
func (idx *Index) Set(path string, mtime time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[path] = mtime
}

// Get returns the recorded mtime for path and whether it is present.
func (idx *Index) Get(path string) (time.Time, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	mtime, ok := idx.entries[path]
	return mtime, ok
}

// Delete removes path from the index. It is a no-op if path is absent.
func (idx *Index) Delete(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, path)
}

// Len returns the number of entries currently tracked.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.entries)
}

// Paths returns a snapshot of every path currently tracked. The steady-state
// deletion pass iterates this snapshot rather than the live map so that
// entries can be safely removed mid-scan.
func (idx *Index) Paths() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	paths := make([]string, 0, len(idx.entries))
	for p := range idx.entries {
		paths = append(paths, p)
	}
	return paths
}

// Reset clears every entry, used at the start of a fresh initialization.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]time.Time)
}
