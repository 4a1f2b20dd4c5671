package reconcile

import (
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/xatophi/remote-backup-pds-project/errors"
	"github.com/xatophi/remote-backup-pds-project/log"
)

// Init brings the server mirror into agreement with the local tree
// rooted at e.root, using a bounded worker pool. It returns the first
// FAILURE-class error encountered by any worker; on error the whole
// initialization is considered aborted and the caller (the Retry
// Supervisor) decides what to do next. A successful return means every
// directory reachable from the root has been probed, backed up where
// missing, and recorded in the Path Index.
func (e *Engine) Init() error {
	const op = "reconcile.Init"

	e.index.Reset()

	q := NewQueue[string]()
	var leaves atomic.Int64

	q.Put(e.root)
	leaves.Add(1)

	var g errgroup.Group
	for i := 0; i < e.workerCount(); i++ {
		g.Go(func() error {
			for {
				dir, ok := q.Get()
				if !ok {
					return nil
				}
				if err := e.processDirectory(dir, q, &leaves); err != nil {
					q.End()
					return errors.E(op, err)
				}
			}
		})
	}
	return g.Wait()
}

// workerCount returns the configured pool size, defaulting to the
// machine's available parallelism.
func (e *Engine) workerCount() int {
	if e.workers > 0 {
		return e.workers
	}
	return runtime.GOMAXPROCS(0)
}

// processDirectory implements one step of the initialization algorithm:
// probe (and backup if absent), record its mtime, then walk its
// immediate children, probing/backing up files and enqueuing
// subdirectories, finally adjusting the leaf counter.
func (e *Engine) processDirectory(dir string, q *Queue[string], leaves *atomic.Int64) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.E("reconcile.processDirectory", errors.Other, err)
	}

	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		names = append(names, ent.Name())
	}

	present, err := e.client.ProbeFolder(dir, names)
	if err != nil {
		return err
	}
	if !present {
		if err := e.client.BackupFolder(dir); err != nil {
			return err
		}
	}

	if info, err := os.Stat(dir); err == nil {
		e.index.Set(dir, info.ModTime())
	}

	var subdirs int
	for _, ent := range entries {
		childPath := filepath.Join(dir, ent.Name())
		if ent.IsDir() {
			subdirs++
			if subdirs >= 2 {
				leaves.Add(1)
			}
			q.Put(childPath)
			continue
		}
		if !ent.Type().IsRegular() {
			continue
		}
		if err := e.probeAndBackupFile(childPath); err != nil {
			return err
		}
	}

	if subdirs == 0 {
		leaves.Add(-1)
	}
	if leaves.Load() == 0 {
		q.End()
	}
	return nil
}

func (e *Engine) probeAndBackupFile(path string) error {
	found, err := e.client.ProbeFile(path)
	if err != nil {
		return err
	}
	if !found {
		if err := e.client.BackupFile(path); err != nil {
			return err
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		log.Debug.Printf("reconcile: stat %s after backup: %v", path, err)
		return nil
	}
	e.index.Set(path, info.ModTime())
	return nil
}
