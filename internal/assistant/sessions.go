package assistant

import "sync"

// Sessions keeps one conversation per login session.
type Sessions struct {
	mu    sync.Mutex
	items map[string]*Assistant
	newFn func() *Assistant
}

// NewSessions creates a registry; newFn builds the conversation for a
// session on first use.
func NewSessions(newFn func() *Assistant) *Sessions {
	return &Sessions{
		items: make(map[string]*Assistant),
		newFn: newFn,
	}
}

func (s *Sessions) Get(sessionID string) *Assistant {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[sessionID]
	if !ok {
		a = s.newFn()
		s.items[sessionID] = a
	}
	return a
}

// Drop forgets the conversation of a session, e.g. on logout.
func (s *Sessions) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
