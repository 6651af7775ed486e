package backend

import "sync"

// AuthEvent names an auth-state transition pushed to subscribers.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthStateFunc receives auth-state events. session is nil for SignedOut.
type AuthStateFunc func(event AuthEvent, session *Session)

// Subscription is one registered auth-state listener.
//
// Unsubscribe stops callbacks synchronously: once it returns, the callback
// will not run again (an in-flight invocation is waited out). Do not call
// Unsubscribe from inside the callback itself.
type Subscription struct {
	mu     sync.Mutex
	closed bool
	fn     AuthStateFunc
	remove func()
}

// Unsubscribe detaches the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.remove != nil {
		s.remove()
	}
}

// dispatch runs the callback unless the subscription has been closed. The
// per-subscription lock is what makes Unsubscribe synchronous.
func (s *Subscription) dispatch(event AuthEvent, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fn(event, session)
}
