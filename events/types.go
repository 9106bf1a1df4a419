package events

import "time"

// EventType identifies the kind of Event.
type EventType string

const (
	// TypeAdvertisement fires for every BLE advertisement observed on
	// a ProxyLink's subscription.
	TypeAdvertisement EventType = "advertisement"

	// TypeConnectResult fires when a device_connect response arrives,
	// including responses that arrive asynchronously with respect to
	// the connect call that triggered them.
	TypeConnectResult EventType = "connect_result"

	// TypeDisconnect fires when a device disconnects, for any reason.
	TypeDisconnect EventType = "disconnect"

	// TypeNotify fires for a GATT characteristic notification.
	TypeNotify EventType = "notify"

	// TypeProxyLogLine fires for a line from the proxy's own log
	// stream (used by the connect race in devicesession).
	TypeProxyLogLine EventType = "proxy_log_line"

	// TypeProxyLinkState fires when a ProxyLink's state changes.
	TypeProxyLinkState EventType = "proxy_link_state"

	// TypeHealthChanged fires when the health monitor's degraded flag
	// or restart-pending state changes.
	TypeHealthChanged EventType = "health_changed"
)

// Event is the interface implemented by every event published on the
// Bus.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// base provides the common Timestamp/Type plumbing for concrete event
// types, mirroring the teacher's BaseEvent.
type base struct {
	eventType EventType
	timestamp time.Time
}

func (b base) Type() EventType      { return b.eventType }
func (b base) Timestamp() time.Time { return b.timestamp }

func newBase(t EventType) base {
	return base{eventType: t, timestamp: time.Now()}
}

// AdvertisementEvent carries one BLE advertisement from one proxy.
type AdvertisementEvent struct {
	base
	ProxyHost string
	Name      string
	Address   uint64
	RSSI      int
}

// NewAdvertisementEvent constructs an AdvertisementEvent.
func NewAdvertisementEvent(proxyHost, name string, address uint64, rssi int) *AdvertisementEvent {
	return &AdvertisementEvent{base: newBase(TypeAdvertisement), ProxyHost: proxyHost, Name: name, Address: address, RSSI: rssi}
}

// ConnectResultEvent carries an asynchronous connect response. Per
// spec.md §4.2, these MUST NOT trigger an implicit reconnect — they
// only update observers' view of the connected flag.
type ConnectResultEvent struct {
	base
	ProxyHost string
	Address   uint64
	Connected bool
	ErrorCode uint16
	MTU       uint16
}

// NewConnectResultEvent constructs a ConnectResultEvent.
func NewConnectResultEvent(proxyHost string, address uint64, connected bool, errorCode, mtu uint16) *ConnectResultEvent {
	return &ConnectResultEvent{base: newBase(TypeConnectResult), ProxyHost: proxyHost, Address: address, Connected: connected, ErrorCode: errorCode, MTU: mtu}
}

// DisconnectEvent fires whenever a device disconnects.
type DisconnectEvent struct {
	base
	ProxyHost string
	Reason    string
	Address   uint64
}

// NewDisconnectEvent constructs a DisconnectEvent.
func NewDisconnectEvent(proxyHost string, address uint64, reason string) *DisconnectEvent {
	return &DisconnectEvent{base: newBase(TypeDisconnect), ProxyHost: proxyHost, Address: address, Reason: reason}
}

// NotifyEvent carries a GATT characteristic notification payload.
type NotifyEvent struct {
	base
	ProxyHost string
	Address   uint64
	Handle    uint16
	Data      []byte
}

// NewNotifyEvent constructs a NotifyEvent.
func NewNotifyEvent(proxyHost string, address uint64, handle uint16, data []byte) *NotifyEvent {
	return &NotifyEvent{base: newBase(TypeNotify), ProxyHost: proxyHost, Address: address, Handle: handle, Data: data}
}

// ProxyLogLineEvent carries one line from a proxy's own log stream.
type ProxyLogLineEvent struct {
	base
	ProxyHost string
	Line      string
}

// NewProxyLogLineEvent constructs a ProxyLogLineEvent.
func NewProxyLogLineEvent(proxyHost, line string) *ProxyLogLineEvent {
	return &ProxyLogLineEvent{base: newBase(TypeProxyLogLine), ProxyHost: proxyHost, Line: line}
}

// ProxyLinkStateEvent fires when a ProxyLink's state changes.
type ProxyLinkStateEvent struct {
	base
	ProxyHost string
	State     string
}

// NewProxyLinkStateEvent constructs a ProxyLinkStateEvent.
func NewProxyLinkStateEvent(proxyHost, state string) *ProxyLinkStateEvent {
	return &ProxyLinkStateEvent{base: newBase(TypeProxyLinkState), ProxyHost: proxyHost, State: state}
}

// HealthChangedEvent fires when the health monitor's degraded flag or
// restart-pending reason changes.
type HealthChangedEvent struct {
	base
	RestartReason string
	Degraded      bool
}

// NewHealthChangedEvent constructs a HealthChangedEvent.
func NewHealthChangedEvent(degraded bool, restartReason string) *HealthChangedEvent {
	return &HealthChangedEvent{base: newBase(TypeHealthChanged), Degraded: degraded, RestartReason: restartReason}
}
