// Package tracker records the domain entities a scenario creates so that
// teardown can delete them whatever the scenario's outcome.
//
// Entries are appended as creation use cases succeed, removed when an explicit
// deletion succeeds, and handed to teardown exactly once through Drain. An
// entity may be tracked without an ID (UI-driven creation does not always
// observe one); teardown then resolves it by name.
package tracker

import (
	"errors"
	"fmt"
	"sync"
)

// Kind identifies the type of a tracked domain entity.
type Kind string

const (
	KindAccount  Kind = "account"
	KindCategory Kind = "category"
)

// ErrInvalidEntry is returned when an entry carries neither an ID nor a name.
var ErrInvalidEntry = errors.New("tracked entry needs a kind and an id or name")

// Entry identifies one entity created during a scenario.
type Entry struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// String renders the entry for logs.
func (e Entry) String() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %q (id=%s)", e.Kind, e.Name, e.ID)
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Track records an entity. Tracking the same kind and name again does not add
// a second entry; it only fills in an ID the first call lacked.
func (t *Tracker) Track(kind Kind, id, name string) error {
	if kind == "" || (id == "" && name == "") {
		return ErrInvalidEntry
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		e := &t.entries[i]
		if e.Kind != kind {
			continue
		}
		if (name != "" && e.Name == name) || (id != "" && e.ID == id) {
			if e.ID == "" {
				e.ID = id
			}
			if e.Name == "" {
				e.Name = name
			}
			return nil
		}
	}
	t.entries = append(t.entries, Entry{Kind: kind, ID: id, Name: name})
	return nil
}

// Untrack removes the most recent entry of kind with the given name and
// reports whether one was found.
func (t *Tracker) Untrack(kind Kind, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind == kind && t.entries[i].Name == name {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Drain returns every tracked entry in insertion order and empties the tracker.
func (t *Tracker) Drain() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	drained := t.entries
	t.entries = nil
	if drained == nil {
		return []Entry{}
	}
	return drained
}

// LastOfKind returns the name of the most recently tracked entry of kind.
func (t *Tracker) LastOfKind(kind Kind) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind == kind {
			return t.entries[i].Name, true
		}
	}
	return "", false
}

// Lookup returns the tracked entry of kind with the given name.
func (t *Tracker) Lookup(kind Kind, name string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind == kind && t.entries[i].Name == name {
			return t.entries[i], true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of the current entries without draining them.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of tracked entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
