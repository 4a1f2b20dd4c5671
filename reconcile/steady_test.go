package reconcile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xatophi/remote-backup-pds-project/pathindex"
)

func TestTickDeletionPass(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	writeFile(t, file, "a")

	backend := newFakeBackend()
	idx := pathindex.New()
	e := New(backend, idx, root)
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := idx.Get(file); !ok {
		t.Fatal("expected file present in index after Init")
	}

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	if err := e.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if _, ok := idx.Get(file); ok {
		t.Error("expected deleted file removed from index")
	}
	if _, ok := backend.fileDigest(file); ok {
		t.Error("expected deleted file removed from mirror")
	}
}

func TestTickCreationPass(t *testing.T) {
	root := t.TempDir()
	backend := newFakeBackend()
	idx := pathindex.New()
	e := New(backend, idx, root)
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	newFile := filepath.Join(root, "new.txt")
	writeFile(t, newFile, "new content")

	if err := e.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	want, err := digestOf(newFile)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := backend.fileDigest(newFile)
	if !ok {
		t.Fatal("expected new file backed up after creation pass")
	}
	if got != want {
		t.Errorf("got digest %s, want %s", got, want)
	}
	if _, ok := idx.Get(newFile); !ok {
		t.Error("expected new file recorded in index")
	}
}

func TestTickModificationPass(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	writeFile(t, file, "original")

	backend := newFakeBackend()
	idx := pathindex.New()
	e := New(backend, idx, root)
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Force a different mtime so the modification branch triggers
	// regardless of filesystem mtime resolution.
	stale := time.Now().Add(-time.Hour)
	idx.Set(file, stale)

	if err := e.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	want, err := digestOf(file)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := backend.fileDigest(file)
	if !ok || got != want {
		t.Errorf("got (%s, %v), want (%s, true)", got, ok, want)
	}
	mtime, ok := idx.Get(file)
	if !ok || mtime.Equal(stale) {
		t.Error("expected index mtime refreshed after modification pass")
	}
}

func TestTickDeletionPrecedesCreation(t *testing.T) {
	// A path removed and replaced within the same tick must be deleted
	// before the replacement is backed up, never the other way round.
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	writeFile(t, file, "original")

	backend := newFakeBackend()
	idx := pathindex.New()
	e := New(backend, idx, root)
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	writeFile(t, file, "replacement")

	if err := e.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	want, err := digestOf(file)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := backend.fileDigest(file)
	if !ok || got != want {
		t.Errorf("got (%s, %v), want (%s, true) for replacement content", got, ok, want)
	}
}
