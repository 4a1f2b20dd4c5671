package authstore

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestVerifyUserPassword(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateUser("joe", "secret"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ok, err := s.VerifyUserPassword("joe", "secret")
	if err != nil {
		t.Fatalf("VerifyUserPassword: %v", err)
	}
	if !ok {
		t.Error("expected correct password to verify")
	}

	ok, err = s.VerifyUserPassword("joe", "wrong")
	if err != nil {
		t.Fatalf("VerifyUserPassword: %v", err)
	}
	if ok {
		t.Error("expected incorrect password to fail verification")
	}
}

func TestVerifyUserPasswordUnknownUser(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.VerifyUserPassword("ghost", "anything")
	if err != nil {
		t.Fatalf("VerifyUserPassword: %v", err)
	}
	if ok {
		t.Error("expected unknown user to fail verification")
	}
}

func TestCreateTokenLength(t *testing.T) {
	tok, err := CreateToken(32)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if len(tok) != 32 {
		t.Errorf("got length %d, want 32", len(tok))
	}
}

func TestSaveAndVerifyToken(t *testing.T) {
	s := newTestStore(t)
	s.SaveTokenToUser("joe", "tok-1")

	user, ok := s.VerifyToken("tok-1")
	if !ok || user != "joe" {
		t.Fatalf("got (%q, %v), want (joe, true)", user, ok)
	}

	if _, ok := s.VerifyToken("nonexistent"); ok {
		t.Error("expected an unknown token to fail verification")
	}
}

func TestSaveTokenOverwritesPrevious(t *testing.T) {
	s := newTestStore(t)
	s.SaveTokenToUser("joe", "tok-1")
	s.SaveTokenToUser("joe", "tok-2")

	if _, ok := s.VerifyToken("tok-1"); ok {
		t.Error("expected the old token to be invalidated by a new login")
	}
	if user, ok := s.VerifyToken("tok-2"); !ok || user != "joe" {
		t.Errorf("got (%q, %v), want (joe, true)", user, ok)
	}
}

func TestLogoutUser(t *testing.T) {
	s := newTestStore(t)
	s.SaveTokenToUser("joe", "tok-1")

	if !s.LogoutUser("joe") {
		t.Error("expected LogoutUser to report a token was present")
	}
	if _, ok := s.VerifyToken("tok-1"); ok {
		t.Error("expected token invalidated after logout")
	}
	if s.LogoutUser("joe") {
		t.Error("expected a second logout with no active token to report false")
	}
}

func TestDeleteAllTokens(t *testing.T) {
	s := newTestStore(t)
	s.SaveTokenToUser("joe", "tok-1")
	s.SaveTokenToUser("amy", "tok-2")

	s.DeleteAllTokens()

	if _, ok := s.VerifyToken("tok-1"); ok {
		t.Error("expected tok-1 invalidated")
	}
	if _, ok := s.VerifyToken("tok-2"); ok {
		t.Error("expected tok-2 invalidated")
	}
}
