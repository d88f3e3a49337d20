package memory

import (
	"sync"

	"trivia-session-service/internal/app"
)

// Registry is the in-process implementation of app.SessionRegistry. Sessions
// are inherently node-local; cross-room state needs no shared locking.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*app.Session)}
}

func (r *Registry) Get(roomID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[roomID]
	return s, ok
}

func (r *Registry) Reserve(roomID string, s *app.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[roomID]; ok {
		return false
	}
	r.sessions[roomID] = s
	return true
}

func (r *Registry) Delete(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[roomID]; !ok {
		return false
	}
	delete(r.sessions, roomID)
	return true
}

func (r *Registry) ForEach(fn func(roomID string, s *app.Session)) {
	r.mu.RLock()
	snapshot := make(map[string]*app.Session, len(r.sessions))
	for id, s := range r.sessions {
		snapshot[id] = s
	}
	r.mu.RUnlock()

	for id, s := range snapshot {
		fn(id, s)
	}
}
