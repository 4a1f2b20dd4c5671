// Package reconcile implements the client's reconciliation engine: the
// parallel tree-walk that brings a freshly started client into
// agreement with its server mirror, the single-threaded steady-state
// scan that keeps it that way, and the retry supervisor that restarts
// the whole cycle after a transport or protocol failure.
package reconcile

import (
	"github.com/xatophi/remote-backup-pds-project/pathindex"
)

// Backend is the subset of protocolclient.Client's behavior the engine
// depends on. protocolclient.Client satisfies it directly; tests
// substitute a fake that never touches the network.
type Backend interface {
	ProbeFolder(absPath string, children []string) (bool, error)
	ProbeFile(absPath string) (bool, error)
	BackupFile(absPath string) error
	BackupFolder(absPath string) error
	DeletePath(absPath string) (bool, error)
}

// Engine ties the protocol client, the local Path Index and the
// watched root together and drives both initialization and
// steady-state scanning against them.
type Engine struct {
	client Backend
	index  *pathindex.Index
	root   string

	// workers overrides the initialization pool size; zero means use
	// runtime.GOMAXPROCS(0).
	workers int
}

// New returns an Engine watching root through client, recording
// observed paths in index.
func New(client Backend, index *pathindex.Index, root string) *Engine {
	return &Engine{client: client, index: index, root: root}
}

// SetWorkerCount overrides the initialization worker pool size. It is
// meant for tests; production callers leave it at the default.
func (e *Engine) SetWorkerCount(n int) {
	e.workers = n
}
