package mcp

import "sync"

// Store holds per-session managers in worker memory. Activities look
// their session's manager up by workflow session id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Manager
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Manager)}
}

// GetOrCreate returns the manager for a session, creating it on first use.
func (s *Store) GetOrCreate(sessionID string) *Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mgr, ok := s.sessions[sessionID]; ok {
		return mgr
	}
	mgr := NewManager()
	s.sessions[sessionID] = mgr
	return mgr
}

// Get returns the manager for a session, or nil.
func (s *Store) Get(sessionID string) *Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

// Remove closes and forgets a session's manager.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	mgr, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if ok {
		mgr.Close()
	}
}
