package events

// Filter reports whether an event should be delivered to a subscriber.
// A nil Filter matches every event.
type Filter func(Event) bool

// WithEventType matches events of exactly the given type.
func WithEventType(t EventType) Filter {
	return func(e Event) bool { return e.Type() == t }
}

// WithProxyHost matches events carrying the given proxy host, for
// event types that expose one. Events without a ProxyHost field never
// match.
func WithProxyHost(host string) Filter {
	return func(e Event) bool {
		switch ev := e.(type) {
		case *AdvertisementEvent:
			return ev.ProxyHost == host
		case *ConnectResultEvent:
			return ev.ProxyHost == host
		case *DisconnectEvent:
			return ev.ProxyHost == host
		case *NotifyEvent:
			return ev.ProxyHost == host
		case *ProxyLogLineEvent:
			return ev.ProxyHost == host
		case *ProxyLinkStateEvent:
			return ev.ProxyHost == host
		default:
			return false
		}
	}
}

// WithAddress matches events carrying the given BLE device address,
// for event types that expose one.
func WithAddress(address uint64) Filter {
	return func(e Event) bool {
		switch ev := e.(type) {
		case *AdvertisementEvent:
			return ev.Address == address
		case *ConnectResultEvent:
			return ev.Address == address
		case *DisconnectEvent:
			return ev.Address == address
		case *NotifyEvent:
			return ev.Address == address
		default:
			return false
		}
	}
}

// Any matches an event if any of the given filters matches it. An
// empty filter list matches nothing.
func Any(filters ...Filter) Filter {
	return func(e Event) bool {
		for _, f := range filters {
			if f != nil && f(e) {
				return true
			}
		}
		return false
	}
}

// All matches an event only if every given filter matches it.
func All(filters ...Filter) Filter {
	return func(e Event) bool {
		for _, f := range filters {
			if f != nil && !f(e) {
				return false
			}
		}
		return true
	}
}
