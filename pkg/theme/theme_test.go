package theme

import (
	"path/filepath"
	"testing"

	"painel-auth/pkg/keystore"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	s, err := keystore.Open(filepath.Join(t.TempDir(), "keystore.json"))
	if err != nil {
		t.Fatalf("keystore.Open: %v", err)
	}
	return NewManager(s)
}

func TestGet_DefaultsToSystem(t *testing.T) {
	m := newManager(t)
	if got := m.Get(); got != System {
		t.Errorf("Get = %q, want system", got)
	}
}

func TestSetGet(t *testing.T) {
	m := newManager(t)
	if err := m.Set(Dark); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := m.Get(); got != Dark {
		t.Errorf("Get = %q, want dark", got)
	}
}

func TestSet_UnknownFallsBackToSystem(t *testing.T) {
	m := newManager(t)
	if err := m.Set(Preference("neon")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := m.Get(); got != System {
		t.Errorf("Get = %q, want system", got)
	}
}
