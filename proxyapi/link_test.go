package proxyapi

import "testing"

func TestParseNameMismatch(t *testing.T) {
	got, ok := ParseNameMismatch("Server name mismatch, expected bed-proxy, got bed-proxy-2")
	if !ok || got != "bed-proxy-2" {
		t.Fatalf("expected ok=true got=%q, got ok=%v got=%q", "bed-proxy-2", ok, got)
	}
}

func TestParseNameMismatchNoMatch(t *testing.T) {
	if _, ok := ParseNameMismatch("connection reset by peer"); ok {
		t.Fatalf("expected no match for unrelated error message")
	}
}

func TestLinkStateString(t *testing.T) {
	cases := map[LinkState]string{
		StateDialing:     "Dialing",
		StateAuthorizing: "Authorizing",
		StateReady:       "Ready",
		StateDegraded:    "Degraded",
		StateClosed:      "Closed",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: expected %q, got %q", state, want, got)
		}
	}
}
