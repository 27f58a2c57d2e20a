package presence

import "sync"

// Conn is the live connection handle tracked by the registry. The websocket
// client satisfies it; tests use stubs.
type Conn interface {
	ConnID() string
}

// Registry is the process-local presence table: user id to the set of live
// connection handles. A user with multiple devices holds multiple entries.
// Nothing here is persisted; a restart clears all presence, which is
// acceptable because presence is a liveness hint only.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]map[Conn]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]map[Conn]struct{})}
}

// Add registers a connection for the user after a successful handshake.
func (r *Registry) Add(userID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[userID]; !ok {
		r.conns[userID] = make(map[Conn]struct{})
	}
	r.conns[userID][conn] = struct{}{}
}

// Remove drops a connection on disconnect, including abnormal disconnects
// detected by heartbeat timeout.
func (r *Registry) Remove(userID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// ConnectionCount returns the number of live connections for the user.
func (r *Registry) ConnectionCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}
