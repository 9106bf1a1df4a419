package events

import (
	"sync"
	"sync/atomic"
)

// Handler is a function that handles events.
type Handler func(Event)

// subscription represents an active event subscription.
type subscription struct {
	handler Handler
	filter  Filter
	id      uint64
}

// Bus is the bridge's thread-safe event dispatcher. Besides the
// generic Subscribe/Publish primitives it exposes typed convenience
// methods (SubscribeAdvertisements, SubscribeProxyLog, SubscribeNotify)
// that fold the proxy-host/address filtering every caller in this
// module needs directly into the bus, so proxyapi and devicesession
// never hand-build an All(WithEventType(...), WithProxyHost(...))
// filter themselves. The zero value is not usable; construct with New.
type Bus struct {
	subscriptions []*subscription
	history       []Event
	nextID        atomic.Uint64
	historySize   int
	mu            sync.RWMutex
	historyMu     sync.RWMutex
	closed        atomic.Bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize sets the event history size. Setting to 0 disables
// history (the default) — most production deployments never call
// History and do not want the retention cost.
func WithHistorySize(size int) Option {
	return func(bus *Bus) {
		bus.historySize = size
		if size > 0 {
			bus.history = make([]Event, 0, size)
		}
	}
}

// New creates a new event bus.
func New(opts ...Option) *Bus {
	bus := &Bus{
		subscriptions: make([]*subscription, 0),
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Subscribe registers a handler for all events. Returns a
// subscription ID that can be used to unsubscribe.
func (bus *Bus) Subscribe(handler Handler) uint64 {
	return bus.SubscribeFiltered(nil, handler)
}

// SubscribeFiltered registers a handler with a filter. The handler
// only receives events matching the filter. Returns a subscription ID
// that can be used to unsubscribe.
func (bus *Bus) SubscribeFiltered(filter Filter, handler Handler) uint64 {
	if bus.closed.Load() {
		return 0
	}

	id := bus.nextID.Add(1)
	sub := &subscription{id: id, handler: handler, filter: filter}

	bus.mu.Lock()
	bus.subscriptions = append(bus.subscriptions, sub)
	bus.mu.Unlock()

	return id
}

// SubscribeAdvertisements registers handler for every advertisement
// seen on proxyHost and returns an unsubscribe func. Folds the
// TypeAdvertisement+proxy-host filter proxyapi.Link would otherwise
// have to assemble by hand.
func (bus *Bus) SubscribeAdvertisements(proxyHost string, handler func(*AdvertisementEvent)) func() {
	id := bus.SubscribeFiltered(All(WithEventType(TypeAdvertisement), WithProxyHost(proxyHost)), func(e Event) {
		handler(e.(*AdvertisementEvent))
	})
	return func() { bus.Unsubscribe(id) }
}

// SubscribeProxyLog registers handler for every log line a proxy
// emits on its own diagnostic stream and returns an unsubscribe func.
func (bus *Bus) SubscribeProxyLog(proxyHost string, handler func(*ProxyLogLineEvent)) func() {
	id := bus.SubscribeFiltered(All(WithEventType(TypeProxyLogLine), WithProxyHost(proxyHost)), func(e Event) {
		handler(e.(*ProxyLogLineEvent))
	})
	return func() { bus.Unsubscribe(id) }
}

// SubscribeNotify registers handler for GATT notifications from one
// device address on proxyHost and returns an unsubscribe func. Used by
// both proxyapi.Link.ReadChar's synchronous wait and
// devicesession.Session.SubscribeNotify's long-lived listener.
func (bus *Bus) SubscribeNotify(proxyHost string, address uint64, handler func(*NotifyEvent)) func() {
	id := bus.SubscribeFiltered(All(WithEventType(TypeNotify), WithProxyHost(proxyHost), WithAddress(address)), func(e Event) {
		handler(e.(*NotifyEvent))
	})
	return func() { bus.Unsubscribe(id) }
}

// Unsubscribe removes a subscription by ID. Returns true if the
// subscription was found and removed. Calling Unsubscribe twice with
// the same ID is safe and returns false the second time.
func (bus *Bus) Unsubscribe(id uint64) bool {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	for i, sub := range bus.subscriptions {
		if sub.id == id {
			bus.subscriptions = append(bus.subscriptions[:i], bus.subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// Publish dispatches an event to all matching subscribers, in
// subscription order, synchronously on the caller's goroutine.
func (bus *Bus) Publish(event Event) {
	if bus.closed.Load() {
		return
	}

	bus.recordHistory(event)

	bus.mu.RLock()
	subs := make([]*subscription, len(bus.subscriptions))
	copy(subs, bus.subscriptions)
	bus.mu.RUnlock()

	for _, sub := range subs {
		if sub.filter == nil || sub.filter(event) {
			sub.handler(event)
		}
	}
}

func (bus *Bus) recordHistory(event Event) {
	if bus.historySize == 0 {
		return
	}
	bus.historyMu.Lock()
	defer bus.historyMu.Unlock()
	if len(bus.history) >= bus.historySize {
		copy(bus.history, bus.history[1:])
		bus.history = bus.history[:len(bus.history)-1]
	}
	bus.history = append(bus.history, event)
}

// SubscriberCount returns the number of active subscriptions.
func (bus *Bus) SubscriberCount() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.subscriptions)
}

// History returns the event history, or nil if history is disabled.
func (bus *Bus) History() []Event {
	if bus.historySize == 0 {
		return nil
	}
	bus.historyMu.RLock()
	defer bus.historyMu.RUnlock()
	result := make([]Event, len(bus.history))
	copy(result, bus.history)
	return result
}

// Close closes the event bus and removes all subscriptions. After
// closing, Publish and Subscribe are no-ops.
func (bus *Bus) Close() {
	if bus.closed.Swap(true) {
		return
	}
	bus.mu.Lock()
	bus.subscriptions = nil
	bus.mu.Unlock()
	bus.historyMu.Lock()
	bus.history = nil
	bus.historyMu.Unlock()
}

// IsClosed returns true if the bus has been closed.
func (bus *Bus) IsClosed() bool {
	return bus.closed.Load()
}
