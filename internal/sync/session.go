package sync

import "sync"

// Session tracks the authenticated identity driving remote sync. The
// authentication flow itself is an external collaborator; it calls Bind
// and Clear as the signed-in identity changes.
type Session struct {
	mu       sync.Mutex
	identity string
	onChange func(identity string)
}

func NewSession() *Session {
	return &Session{}
}

// OnChange registers a callback invoked whenever the identity changes,
// including to "" on sign-out.
func (s *Session) OnChange(fn func(identity string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Bind associates the identity. Binding the already-bound identity is a
// no-op and does not fire the callback.
func (s *Session) Bind(identity string) {
	s.mu.Lock()
	changed := s.identity != identity
	s.identity = identity
	fn := s.onChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn(identity)
	}
}

// Clear drops the bound identity.
func (s *Session) Clear() {
	s.Bind("")
}

// Identity returns the bound identity, or "" when signed out.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}
