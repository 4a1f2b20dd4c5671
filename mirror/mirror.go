// Package mirror implements the server's per-user file mirror: every
// operation is scoped to a sandbox directory under the configured
// backup root, and any path that would escape its owner's sandbox is
// rejected. This mirrors store/filesystem's root-jailing approach,
// generalized from a single-tenant store to one sandbox per user.
package mirror

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/xatophi/remote-backup-pds-project/digest"
	"github.com/xatophi/remote-backup-pds-project/errors"
)

// Mirror roots every per-user sandbox under a single backup directory.
type Mirror struct {
	root string
}

// New returns a Mirror rooted at root, which must already exist.
func New(root string) *Mirror {
	return &Mirror{root: root}
}

// sandboxPath resolves relpath against user's sandbox, refusing any
// result that would escape it.
func (m *Mirror) sandboxPath(user, relpath string) (string, error) {
	const op = "mirror.sandboxPath"

	userRoot := filepath.Join(m.root, user)
	full := filepath.Join(userRoot, relpath)
	full = filepath.Clean(full)

	if full != userRoot && !strings.HasPrefix(full, userRoot+string(os.PathSeparator)) {
		return "", errors.E(op, errors.Other, errors.Errorf("path %q escapes sandbox for user %q", relpath, user))
	}
	return full, nil
}

// SaveFile writes data to the sandbox-relative path for user, creating
// parent directories as needed. The write goes to a temp file in the
// same directory first and is renamed into place, so a write failure
// never leaves a corrupt file at the final name.
func (m *Mirror) SaveFile(user, relpath string, data []byte) error {
	const op = "mirror.SaveFile"

	full, err := m.sandboxPath(user, relpath)
	if err != nil {
		return errors.E(op, err)
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.E(op, errors.Storage, err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return errors.E(op, errors.Storage, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return errors.E(op, errors.Storage, err)
	}
	return nil
}

// NewDirectory recursively creates the sandbox-relative directory for
// user. It succeeds if the directory exists on return, whether or not
// it already did.
func (m *Mirror) NewDirectory(user, relpath string) error {
	const op = "mirror.NewDirectory"

	full, err := m.sandboxPath(user, relpath)
	if err != nil {
		return errors.E(op, err)
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return errors.E(op, errors.Storage, err)
	}
	return nil
}

// GetFileDigest returns the lowercase hex SHA-256 of the sandbox-relative
// regular file for user, and whether it exists.
func (m *Mirror) GetFileDigest(user, relpath string) (string, bool, error) {
	const op = "mirror.GetFileDigest"

	full, err := m.sandboxPath(user, relpath)
	if err != nil {
		return "", false, errors.E(op, err)
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.E(op, errors.Storage, err)
	}
	if !info.Mode().IsRegular() {
		return "", false, nil
	}
	d, err := digest.Of(full)
	if err != nil {
		return "", false, errors.E(op, errors.Storage, err)
	}
	return d, true, nil
}

// ProbeDirectory reports whether the sandbox-relative directory for
// user exists, first reconciling its content against children: every
// mirror entry not named in children is recursively deleted. This is
// how the server learns about client-side deletions the client never
// explicitly reported.
func (m *Mirror) ProbeDirectory(user, relpath string, children map[string]bool) (bool, error) {
	const op = "mirror.ProbeDirectory"

	full, err := m.sandboxPath(user, relpath)
	if err != nil {
		return false, errors.E(op, err)
	}
	entries, err := os.ReadDir(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.E(op, errors.Storage, err)
	}

	for _, ent := range entries {
		if children[ent.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(full, ent.Name())); err != nil {
			return false, errors.E(op, errors.Storage, err)
		}
	}
	return true, nil
}

// BackupDelete recursively deletes the sandbox-relative entry for
// user, refusing the empty path since that would delete the user's
// entire sandbox. It reports whether anything was deleted.
func (m *Mirror) BackupDelete(user, relpath string) (bool, error) {
	const op = "mirror.BackupDelete"

	if relpath == "" {
		return false, errors.E(op, errors.Protocol, errors.Str("refusing to delete sandbox root"))
	}
	full, err := m.sandboxPath(user, relpath)
	if err != nil {
		return false, errors.E(op, err)
	}
	if _, err := os.Lstat(full); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.E(op, errors.Storage, err)
	}
	if err := os.RemoveAll(full); err != nil {
		return false, errors.E(op, errors.Storage, err)
	}
	return true, nil
}
