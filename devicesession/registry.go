package devicesession

import (
	"sync"

	"github.com/smartbedmqtt/ble-bridge/types"
)

// inFlight tracks one connect attempt in progress for a DeviceKey, so
// every concurrent caller for the same key funnels onto one future
// instead of issuing overlapping device_connect calls the proxy
// rejects with "Connection request ignored, state: ..." or
// ESP-IDF GATT_BUSY.
type inFlight struct {
	done   chan struct{}
	result ConnectOutcome
	err    error
}

// Registry is the process-wide DeviceKey → in-flight-connect-future
// map plus the live Session for each key, satisfying spec.md §4.2's
// "global connect mutex" and "construction of a new Session for the
// same DeviceKey first cleanup()s the previous one" requirements.
type Registry struct {
	mu        sync.Mutex
	connects  map[types.DeviceKey]*inFlight
	sessions  map[types.DeviceKey]*Session
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		connects: make(map[types.DeviceKey]*inFlight),
		sessions: make(map[types.DeviceKey]*Session),
	}
}

// Connect funnels concurrent callers for the same key onto a single
// in-flight future: the first caller runs fn, everyone else awaits its
// result.
func (r *Registry) Connect(key types.DeviceKey, fn func() (ConnectOutcome, error)) (ConnectOutcome, error) {
	r.mu.Lock()
	if existing, ok := r.connects[key]; ok {
		r.mu.Unlock()
		<-existing.done
		return existing.result, existing.err
	}

	f := &inFlight{done: make(chan struct{})}
	r.connects[key] = f
	r.mu.Unlock()

	f.result, f.err = fn()
	close(f.done)

	r.mu.Lock()
	delete(r.connects, key)
	r.mu.Unlock()

	return f.result, f.err
}

// Register installs session as the live Session for key, first
// cleaning up any prior Session registered for the same key.
func (r *Registry) Register(key types.DeviceKey, session *Session) {
	r.mu.Lock()
	prev := r.sessions[key]
	r.sessions[key] = session
	r.mu.Unlock()

	if prev != nil && prev != session {
		prev.Cleanup()
	}
}

// Unregister removes session as the live Session for key if it is
// still the current one.
func (r *Registry) Unregister(key types.DeviceKey, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[key] == session {
		delete(r.sessions, key)
	}
}
