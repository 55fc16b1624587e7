package presence

import (
	"sort"
	"sync"
)

// Handle is an active realtime connection. ID must be unique per connection.
type Handle interface {
	ID() string
}

// Entry is one row of the directory.
type Entry[H Handle] struct {
	UserID string
	Handle H
}

// Directory maps an authenticated user id to their active connection.
// At most one handle is kept per user: the last one to connect wins.
type Directory[H Handle] struct {
	mu    sync.RWMutex
	users map[string]H
}

// NewDirectory returns an empty directory.
func NewDirectory[H Handle]() *Directory[H] {
	return &Directory[H]{users: make(map[string]H)}
}

// Register maps userID to h, replacing any previous handle, which is
// returned so the caller can decide what to do with the orphaned connection.
func (d *Directory[H]) Register(userID string, h H) (previous H, replaced bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	previous, replaced = d.users[userID]
	d.users[userID] = h
	return previous, replaced
}

// Lookup returns the handle registered for userID.
func (d *Directory[H]) Lookup(userID string) (H, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h, ok := d.users[userID]
	return h, ok
}

// Unregister removes userID only while h is still its registered handle, so
// a stale connection closing late cannot evict a newer one.
func (d *Directory[H]) Unregister(userID string, h H) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.users[userID]
	if !ok || current.ID() != h.ID() {
		return false
	}
	delete(d.users, userID)
	return true
}

// List returns a snapshot of all entries ordered by user id.
func (d *Directory[H]) List() []Entry[H] {
	d.mu.RLock()
	entries := make([]Entry[H], 0, len(d.users))
	for userID, h := range d.users {
		entries = append(entries, Entry[H]{UserID: userID, Handle: h})
	}
	d.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries
}

// Len returns the number of online users.
func (d *Directory[H]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Clear empties the directory and returns what it held.
func (d *Directory[H]) Clear() []Entry[H] {
	entries := d.List()

	d.mu.Lock()
	d.users = make(map[string]H)
	d.mu.Unlock()
	return entries
}
