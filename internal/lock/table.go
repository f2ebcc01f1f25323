// Package lock implements the named lock table used to arbitrate control of
// shared game objects between players. Locks are optimistic: a second claimant
// is simply refused (or wins outright with force), nobody is ever queued.
package lock

import (
	"sort"
	"sync"
)

// Entry is a held lock.
type Entry struct {
	Name  string
	Owner string
}

// Table maps lock names to the player that owns them. It is safe for
// concurrent use.
type Table struct {
	mu    sync.RWMutex
	locks map[string]string
}

func NewTable() *Table {
	return &Table{locks: make(map[string]string)}
}

// Acquire gives name to player if nobody holds it. With force set the lock is
// taken regardless of the current owner.
func (t *Table) Acquire(name, player string, force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, held := t.locks[name]; held && !force {
		return false
	}
	t.locks[name] = player
	return true
}

// Release frees name only if it is held by exactly player.
func (t *Table) Release(name, player string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if owner, held := t.locks[name]; !held || owner != player {
		return false
	}
	delete(t.locks, name)
	return true
}

// ReleaseAll frees every lock owned by player and returns their names in
// sorted order.
func (t *Table) ReleaseAll(player string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var released []string
	for name, owner := range t.locks {
		if owner == player {
			delete(t.locks, name)
			released = append(released, name)
		}
	}
	sort.Strings(released)
	return released
}

// Owner returns the player holding name.
func (t *Table) Owner(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	owner, held := t.locks[name]
	return owner, held
}

// List returns a snapshot of every held lock sorted by name.
func (t *Table) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make([]Entry, 0, len(t.locks))
	for name, owner := range t.locks {
		entries = append(entries, Entry{Name: name, Owner: owner})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.locks)
}
