package reconcile

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/xatophi/remote-backup-pds-project/errors"
)

// Tick performs one steady-state scan: a deletion pass followed by a
// creation/modification pass, in that order, so a path that is removed
// and replaced within the same tick is never reported to the server
// out of sequence.
func (e *Engine) Tick() error {
	if err := e.deletionPass(); err != nil {
		return err
	}
	return e.creationModificationPass()
}

// RunSteadyState ticks every delay until stop is closed, returning the
// first error a tick produces (a FAILURE that the Retry Supervisor must
// handle) or nil if stop closed first.
func (e *Engine) RunSteadyState(delay time.Duration, stop <-chan struct{}) error {
	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				return err
			}
		}
	}
}

// deletionPass removes every Path Index entry whose path no longer
// exists on disk, refreshing the parent directory's recorded mtime so
// the creation/modification pass that follows does not mistake the
// parent's own change (caused by the removal) for a new modification.
func (e *Engine) deletionPass() error {
	const op = "reconcile.deletionPass"

	for _, path := range e.index.Paths() {
		if _, err := os.Lstat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return errors.E(op, errors.Other, err)
		}

		if _, err := e.client.DeletePath(path); err != nil {
			return err
		}

		parent := filepath.Dir(path)
		if info, err := os.Stat(parent); err == nil {
			e.index.Set(parent, info.ModTime())
		}
		e.index.Delete(path)
	}
	return nil
}

// creationModificationPass walks the live tree under the root. A path
// absent from the Path Index is a creation; a path present with a
// different mtime is a modification. Directory modifications are never
// propagated — a directory's content changes are already visible
// through its children's own creations and deletions.
func (e *Engine) creationModificationPass() error {
	const op = "reconcile.creationModificationPass"

	var opErr error
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == e.root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mtime := info.ModTime()

		existing, known := e.index.Get(path)
		switch {
		case !known:
			switch {
			case d.IsDir():
				if err := e.client.BackupFolder(path); err != nil {
					opErr = err
					return filepath.SkipAll
				}
			case d.Type().IsRegular():
				if err := e.client.BackupFile(path); err != nil {
					opErr = err
					return filepath.SkipAll
				}
			default:
				return nil
			}
			e.index.Set(path, mtime)

		case !existing.Equal(mtime):
			if d.Type().IsRegular() {
				if _, err := e.client.DeletePath(path); err != nil {
					opErr = err
					return filepath.SkipAll
				}
				if err := e.client.BackupFile(path); err != nil {
					opErr = err
					return filepath.SkipAll
				}
			}
			e.index.Set(path, mtime)
		}
		return nil
	})
	if opErr != nil {
		return opErr
	}
	if err != nil {
		return errors.E(op, errors.Other, err)
	}
	return nil
}
