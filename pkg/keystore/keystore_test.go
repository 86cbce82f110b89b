package keystore

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "keystore.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestSetGetDelete(t *testing.T) {
	s := tempStore(t)
	if err := s.Set("auth.access_token", "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := s.Get("auth.access_token")
	if !ok || v != "tok" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if err := s.Delete("auth.access_token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get("auth.access_token"); ok {
		t.Fatal("key should be gone after Delete")
	}
	// Deleting again is a no-op.
	if err := s.Delete("auth.access_token"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	s, _ := Open(path)
	if err := s.Set("prefs.theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := s2.Get("prefs.theme"); !ok || v != "dark" {
		t.Fatalf("reopened Get = %q, %v", v, ok)
	}
}

func TestDeletePrefix(t *testing.T) {
	s := tempStore(t)
	_ = s.Set("auth.access_token", "a")
	_ = s.Set("auth.refresh_token", "b")
	_ = s.Set("prefs.theme", "light")
	n, err := s.DeletePrefix("auth.")
	if err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	if _, ok := s.Get("prefs.theme"); !ok {
		t.Error("unrelated key should survive")
	}
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("Open of corrupt file should fail")
	}
}
