package events

import "sync"

// Scope groups subscriptions so they can be revoked together with one
// call, exactly once, regardless of how many were registered. The
// ProxyLink connect race (a scoped proxy-log listener plus a scoped
// connect-result listener, both torn down the instant either fires or
// the connect call's timeout expires) is the motivating use.
type Scope struct {
	bus  *Bus
	ids  []uint64
	mu   sync.Mutex
	done bool
}

// NewScope creates a Scope bound to bus.
func NewScope(bus *Bus) *Scope {
	return &Scope{bus: bus}
}

// On subscribes handler for all events and tracks the subscription
// under this scope.
func (s *Scope) On(handler Handler) {
	s.OnFiltered(nil, handler)
}

// OnFiltered subscribes handler with filter and tracks the
// subscription under this scope. A no-op once the scope is closed.
func (s *Scope) OnFiltered(filter Filter, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	id := s.bus.SubscribeFiltered(filter, handler)
	if id != 0 {
		s.ids = append(s.ids, id)
	}
}

// Close unsubscribes every handler registered through this scope. Safe
// to call more than once; only the first call has any effect.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	ids := s.ids
	s.ids = nil
	s.mu.Unlock()

	for _, id := range ids {
		s.bus.Unsubscribe(id)
	}
}
