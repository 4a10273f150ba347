package session

import (
	"sync"

	"github.com/google/uuid"
)

// Roster is the intrusive registry of live connections, keyed by a
// roster-assigned ID. It exists so operations that act across the whole
// connection population (graceful drain, metrics snapshot, "kick every
// connection idle longer than N seconds") don't need a side channel back
// to the reactor Pool.
type Roster struct {
	mu    sync.RWMutex
	byID  map[string]*Connection
}

// NewRoster returns an empty Roster.
func NewRoster() *Roster {
	return &Roster{byID: make(map[string]*Connection)}
}

// Add registers conn under a freshly generated ID and returns it.
func (r *Roster) Add(conn *Connection) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.byID[id] = conn
	r.mu.Unlock()
	return id
}

// Remove unregisters the connection with the given ID, if present.
func (r *Roster) Remove(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

// Get returns the connection registered under id, if any.
func (r *Roster) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	c, ok := r.byID[id]
	r.mu.RUnlock()
	return c, ok
}

// Len returns the number of registered connections.
func (r *Roster) Len() int {
	r.mu.RLock()
	n := len(r.byID)
	r.mu.RUnlock()
	return n
}

// Each invokes fn for every registered connection. fn must not mutate the
// roster; connections that need to be removed should be collected and
// removed after Each returns.
func (r *Roster) Each(fn func(id string, conn *Connection)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.byID {
		fn(id, c)
	}
}
