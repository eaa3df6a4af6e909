package domain

import "sync"

// SessionContext carries the authenticated identity supplied by the host
// application. It is passed explicitly into constructors instead of living in
// a global store: Init on login, Clear on logout.
type SessionContext struct {
	mu     sync.RWMutex
	userID string
	token  string
}

func NewSessionContext() *SessionContext {
	return &SessionContext{}
}

func (s *SessionContext) Init(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.token = token
}

func (s *SessionContext) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.token = ""
}

func (s *SessionContext) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *SessionContext) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *SessionContext) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
