package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xatophi/remote-backup-pds-project/pathindex"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	sub1 := filepath.Join(root, "sub1")
	sub2 := filepath.Join(root, "sub2")
	if err := os.Mkdir(sub1, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(sub2, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(sub1, "b.txt"), "b")
	leaf := filepath.Join(sub2, "leaf")
	if err := os.Mkdir(leaf, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(leaf, "c.txt"), "c")
	return root
}

func TestInitBuildsMirror(t *testing.T) {
	root := buildTree(t)
	backend := newFakeBackend()
	idx := pathindex.New()
	e := New(backend, idx, root)
	e.SetWorkerCount(2)

	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, dir := range []string{root, filepath.Join(root, "sub1"), filepath.Join(root, "sub2"), filepath.Join(root, "sub2", "leaf")} {
		if !backend.hasFolder(dir) {
			t.Errorf("expected %s to be backed up as a folder", dir)
		}
		if _, ok := idx.Get(dir); !ok {
			t.Errorf("expected %s recorded in the path index", dir)
		}
	}

	for _, file := range []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub1", "b.txt"),
		filepath.Join(root, "sub2", "leaf", "c.txt"),
	} {
		want, err := digestOf(file)
		if err != nil {
			t.Fatal(err)
		}
		got, ok := backend.fileDigest(file)
		if !ok {
			t.Errorf("expected %s backed up", file)
			continue
		}
		if got != want {
			t.Errorf("digest mismatch for %s: got %s, want %s", file, got, want)
		}
		if _, ok := idx.Get(file); !ok {
			t.Errorf("expected %s recorded in the path index", file)
		}
	}
}

func TestInitSkipsAlreadyPresentEntries(t *testing.T) {
	root := buildTree(t)
	backend := newFakeBackend()
	idx := pathindex.New()
	e := New(backend, idx, root)

	if err := e.Init(); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	before := backend.backupFileCalls

	if err := e.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if backend.backupFileCalls != before {
		t.Errorf("second Init issued %d additional BackupFile calls, want 0", backend.backupFileCalls-before)
	}
}

func TestInitPropagatesFailure(t *testing.T) {
	root := buildTree(t)
	backend := newFakeBackend()
	backend.probeFolderErr = os.ErrPermission
	idx := pathindex.New()
	e := New(backend, idx, root)

	if err := e.Init(); err == nil {
		t.Fatal("expected Init to propagate a probe-folder failure")
	}
}

func TestInitSingleDirectoryNoChildren(t *testing.T) {
	root := t.TempDir()
	backend := newFakeBackend()
	idx := pathindex.New()
	e := New(backend, idx, root)

	if err := e.Init(); err != nil {
		t.Fatalf("Init on an empty directory: %v", err)
	}
	if !backend.hasFolder(root) {
		t.Error("expected the root itself to be backed up")
	}
}
