package devicesession

import (
	"errors"
	"testing"
)

func TestIsTimeoutErrorMatchesTimeoutSubstring(t *testing.T) {
	if !isTimeoutError(errors.New("request timeout waiting for response")) {
		t.Fatalf("expected timeout substring to match")
	}
}

func TestIsTimeoutErrorMatchesServicesDoneMarker(t *testing.T) {
	if !isTimeoutError(errors.New("no BluetoothGATTGetServicesDoneResponse observed")) {
		t.Fatalf("expected services-done marker to match")
	}
}

func TestIsTimeoutErrorRejectsUnrelated(t *testing.T) {
	if isTimeoutError(errors.New("connection refused")) {
		t.Fatalf("expected unrelated error not to match")
	}
}

func TestSessionCleanupRemovesAllListeners(t *testing.T) {
	s := &Session{notifyListeners: make(map[uint16]func())}
	var notifyUnsubCount, advUnsubCount int
	s.notifyListeners[1] = func() { notifyUnsubCount++ }
	s.notifyListeners[2] = func() { notifyUnsubCount++ }
	s.advertisementUnsub = func() { advUnsubCount++ }

	s.Cleanup()

	if notifyUnsubCount != 2 {
		t.Fatalf("expected 2 notify listeners unsubscribed, got %d", notifyUnsubCount)
	}
	if advUnsubCount != 1 {
		t.Fatalf("expected advertisement listener unsubscribed, got %d", advUnsubCount)
	}
	if len(s.notifyListeners) != 0 {
		t.Fatalf("expected notifyListeners map cleared, got %v", s.notifyListeners)
	}
}
