package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"github.com/xatophi/remote-backup-pds-project/errors"
)

// fakeBackend is an in-memory stand-in for protocolclient.Client used to
// exercise the reconciliation engine without a network round trip. It
// mimics the real client's digest-mismatch-triggers-replace behavior so
// tests of the engine, not of the protocol client, can focus on the
// engine's own bookkeeping.
type fakeBackend struct {
	mu      sync.Mutex
	folders map[string]bool
	digests map[string]string

	probeFolderErr error
	probeFileErr   error
	backupFileErr  error

	probeFileCalls  int
	backupFileCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		folders: make(map[string]bool),
		digests: make(map[string]string),
	}
}

func digestOf(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (f *fakeBackend) ProbeFolder(absPath string, children []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeFolderErr != nil {
		return false, f.probeFolderErr
	}
	return f.folders[absPath], nil
}

func (f *fakeBackend) BackupFolder(absPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[absPath] = true
	return nil
}

func (f *fakeBackend) ProbeFile(absPath string) (bool, error) {
	f.mu.Lock()
	f.probeFileCalls++
	if f.probeFileErr != nil {
		f.mu.Unlock()
		return false, f.probeFileErr
	}
	stored, ok := f.digests[absPath]
	f.mu.Unlock()

	local, err := digestOf(absPath)
	if err != nil {
		return false, errors.E("fakeBackend.ProbeFile", errors.Other, err)
	}
	if !ok {
		return false, nil
	}
	if stored == local {
		return true, nil
	}
	if _, err := f.DeletePath(absPath); err != nil {
		return false, err
	}
	if err := f.BackupFile(absPath); err != nil {
		return false, err
	}
	return f.ProbeFile(absPath)
}

func (f *fakeBackend) BackupFile(absPath string) error {
	f.mu.Lock()
	if f.backupFileErr != nil {
		f.mu.Unlock()
		return f.backupFileErr
	}
	f.backupFileCalls++
	f.mu.Unlock()

	digest, err := digestOf(absPath)
	if err != nil {
		return errors.E("fakeBackend.BackupFile", errors.Other, err)
	}
	f.mu.Lock()
	f.digests[absPath] = digest
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) DeletePath(absPath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, wasFolder := f.folders[absPath]
	_, wasFile := f.digests[absPath]
	delete(f.folders, absPath)
	delete(f.digests, absPath)
	return wasFolder || wasFile, nil
}

func (f *fakeBackend) hasFolder(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.folders[path]
}

func (f *fakeBackend) fileDigest(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.digests[path]
	return d, ok
}
