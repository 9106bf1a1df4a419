package events

import "testing"

func TestWithProxyHostMatchesOnlyNamedHost(t *testing.T) {
	f := WithProxyHost("proxy-1")
	if !f(NewAdvertisementEvent("proxy-1", "bed", 1, -50)) {
		t.Fatalf("expected match for proxy-1")
	}
	if f(NewAdvertisementEvent("proxy-2", "bed", 1, -50)) {
		t.Fatalf("expected no match for proxy-2")
	}
}

func TestWithAddressIgnoresEventsWithoutAddress(t *testing.T) {
	f := WithAddress(42)
	if f(NewProxyLogLineEvent("proxy-1", "line")) {
		t.Fatalf("ProxyLogLineEvent has no address and should never match")
	}
	if !f(NewNotifyEvent("proxy-1", 42, 0x10, nil)) {
		t.Fatalf("expected match on address 42")
	}
}

func TestAllRequiresEveryFilter(t *testing.T) {
	f := All(WithEventType(TypeAdvertisement), WithProxyHost("proxy-1"))
	if !f(NewAdvertisementEvent("proxy-1", "bed", 1, -50)) {
		t.Fatalf("expected match when both filters satisfied")
	}
	if f(NewAdvertisementEvent("proxy-2", "bed", 1, -50)) {
		t.Fatalf("expected no match when only one filter satisfied")
	}
}

func TestAnyRequiresOneFilter(t *testing.T) {
	f := Any(WithEventType(TypeNotify), WithEventType(TypeDisconnect))
	if !f(NewNotifyEvent("proxy-1", 1, 0x10, nil)) {
		t.Fatalf("expected match for notify")
	}
	if !f(NewDisconnectEvent("proxy-1", 1, "timeout")) {
		t.Fatalf("expected match for disconnect")
	}
	if f(NewAdvertisementEvent("proxy-1", "bed", 1, -50)) {
		t.Fatalf("expected no match for advertisement")
	}
}

func TestAnyWithNoFiltersMatchesNothing(t *testing.T) {
	f := Any()
	if f(NewAdvertisementEvent("proxy-1", "bed", 1, -50)) {
		t.Fatalf("Any() with no filters should match nothing")
	}
}
