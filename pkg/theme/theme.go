// Package theme stores the user's appearance preference.
package theme

import "painel-auth/pkg/keystore"

// Preference is the stored appearance choice.
type Preference string

const (
	Light  Preference = "light"
	Dark   Preference = "dark"
	System Preference = "system"
)

const key = "prefs.theme"

// Valid reports whether p is one of the known preferences.
func (p Preference) Valid() bool {
	switch p {
	case Light, Dark, System:
		return true
	}
	return false
}

// Manager reads and writes the theme preference through a keystore.
type Manager struct {
	store *keystore.Store
}

func NewManager(store *keystore.Store) *Manager {
	return &Manager{store: store}
}

// Get returns the stored preference, or System when nothing is stored
// or the stored value is unknown.
func (m *Manager) Get() Preference {
	v, ok := m.store.Get(key)
	if !ok {
		return System
	}
	p := Preference(v)
	if !p.Valid() {
		return System
	}
	return p
}

// Set persists the preference.
func (m *Manager) Set(p Preference) error {
	if !p.Valid() {
		p = System
	}
	return m.store.Set(key, string(p))
}
