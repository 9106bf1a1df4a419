package health

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartbedmqtt/ble-bridge/types"
)

type fakePublisher struct {
	mu          sync.Mutex
	snapshots   []types.HealthSnapshot
	degraded    []bool
	rebootCmds  []string
	breadcrumbs map[string]int64
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{breadcrumbs: make(map[string]int64)}
}

func (f *fakePublisher) PublishHealth(s types.HealthSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakePublisher) PublishDegraded(d bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degraded = append(f.degraded, d)
	return nil
}

func (f *fakePublisher) PublishProxyCommand(host, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebootCmds = append(f.rebootCmds, host+":"+payload)
	return nil
}

func (f *fakePublisher) PublishProxyBreadcrumb(host string, remainingSeconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breadcrumbs[host] = remainingSeconds
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestRecordBLEFailureEscalatesOnThirdConsecutive(t *testing.T) {
	pub := newFakePublisher()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := New(pub, nil, clock.now)

	err := errors.New("device not connected")
	m.RecordBLEFailure("dev-1", err, "proxy-1", true)
	m.RecordBLEFailure("dev-1", err, "proxy-1", true)

	select {
	case <-m.restartCh:
		t.Fatalf("expected no restart request before the third failure")
	default:
	}

	m.RecordBLEFailure("dev-1", err, "proxy-1", true)

	req, ok := m.WaitForRestartRequest()
	if !ok {
		t.Fatalf("expected a restart request to be pending")
	}
	if req.Kind != "ble_escalation" {
		t.Fatalf("expected ble_escalation restart kind, got %q", req.Kind)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.rebootCmds) != 1 || pub.rebootCmds[0] != "proxy-1:REBOOT" {
		t.Fatalf("expected a REBOOT command for the known proxy host, got %v", pub.rebootCmds)
	}
}

func TestRecordBLEFailureWithoutProxyHostStillRestarts(t *testing.T) {
	pub := newFakePublisher()
	m := New(pub, nil, nil)

	err := errors.New("device not connected")
	for i := 0; i < 3; i++ {
		m.RecordBLEFailure("dev-1", err, "", true)
	}

	req, ok := m.WaitForRestartRequest()
	if !ok || req.Kind != "ble_escalation" {
		t.Fatalf("expected ble_escalation restart, got %+v ok=%v", req, ok)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.rebootCmds) != 0 {
		t.Fatalf("expected no reboot command without a known proxy host, got %v", pub.rebootCmds)
	}
}

func TestRecordBLESuccessResetsConsecutiveFailures(t *testing.T) {
	pub := newFakePublisher()
	m := New(pub, nil, nil)

	err := errors.New("gatt busy")
	m.RecordBLEFailure("dev-1", err, "proxy-1", true)
	m.RecordBLEFailure("dev-1", err, "proxy-1", true)
	m.RecordBLESuccess("dev-1")
	m.RecordBLEFailure("dev-1", err, "proxy-1", true)
	m.RecordBLEFailure("dev-1", err, "proxy-1", true)

	select {
	case <-m.restartCh:
		t.Fatalf("expected success to have reset the counter, preventing escalation")
	default:
	}
}

func TestNonRetryableFailureResetsCounterWithoutEscalating(t *testing.T) {
	pub := newFakePublisher()
	m := New(pub, nil, nil)

	retryable := errors.New("gatt busy")
	m.RecordBLEFailure("dev-1", retryable, "proxy-1", true)
	m.RecordBLEFailure("dev-1", retryable, "proxy-1", true)
	m.RecordBLEFailure("dev-1", errors.New("invalid handle"), "proxy-1", false)
	m.RecordBLEFailure("dev-1", retryable, "proxy-1", true)
	m.RecordBLEFailure("dev-1", retryable, "proxy-1", true)

	select {
	case <-m.restartCh:
		t.Fatalf("expected the non-retryable failure to reset the counter")
	default:
	}
}

func TestRequestProxyRebootRespectsCooldown(t *testing.T) {
	pub := newFakePublisher()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := New(pub, nil, clock.now)

	m.RequestProxyReboot("proxy-1")
	clock.advance(5 * time.Minute)
	m.RequestProxyReboot("proxy-1")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.rebootCmds) != 1 {
		t.Fatalf("expected only one REBOOT command while cooling down, got %v", pub.rebootCmds)
	}
	if remaining, ok := pub.breadcrumbs["proxy-1"]; !ok || remaining <= 0 {
		t.Fatalf("expected a reboot_suppressed breadcrumb with positive remaining seconds, got %v ok=%v", remaining, ok)
	}
}

func TestRequestProxyRebootFiresAgainAfterCooldown(t *testing.T) {
	pub := newFakePublisher()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := New(pub, nil, clock.now)

	m.RequestProxyReboot("proxy-1")
	clock.advance(11 * time.Minute)
	m.RequestProxyReboot("proxy-1")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.rebootCmds) != 2 {
		t.Fatalf("expected a second REBOOT command after the cooldown elapsed, got %v", pub.rebootCmds)
	}
}

func TestMaintenanceReconnectFiresAfterIdleWindow(t *testing.T) {
	pub := newFakePublisher()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := New(pub, nil, clock.now)

	m.RecordCommand("dev-1", "set_angle")
	clock.advance(31 * time.Minute)
	m.checkMaintenanceReconnect()
	select {
	case <-m.restartCh:
		t.Fatalf("expected no maintenance restart before the 12h idle threshold")
	default:
	}

	clock.advance(12 * time.Hour)
	m.checkMaintenanceReconnect()

	req, ok := m.WaitForRestartRequest()
	if !ok || req.Kind != "maintenance" {
		t.Fatalf("expected a maintenance restart request, got %+v ok=%v", req, ok)
	}
}

func TestMaintenanceReconnectSkipsBelowMinUptime(t *testing.T) {
	pub := newFakePublisher()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := New(pub, nil, clock.now)

	m.RecordCommand("dev-1", "set_angle")
	clock.advance(20 * time.Minute)
	m.checkMaintenanceReconnect()

	select {
	case <-m.restartCh:
		t.Fatalf("expected no maintenance restart before minimum uptime is reached")
	default:
	}
}

func TestSnapshotReflectsDegradedState(t *testing.T) {
	pub := newFakePublisher()
	m := New(pub, nil, nil)

	if m.snapshot().Degraded {
		t.Fatalf("expected a fresh monitor not to be degraded")
	}

	m.RecordBLEFailure("dev-1", errors.New("gatt busy"), "proxy-1", true)
	if !m.snapshot().Degraded {
		t.Fatalf("expected a single consecutive failure to mark degraded")
	}
}

func TestIngestProxyStatusSurfacesInSnapshot(t *testing.T) {
	pub := newFakePublisher()
	m := New(pub, nil, nil)

	m.IngestProxyStatus("proxy-1", map[string]any{"uptime": 123.0})
	snap := m.snapshot()
	if _, ok := snap.ProxyStatuses["proxy-1"]; !ok {
		t.Fatalf("expected proxy-1 status to be present in snapshot, got %v", snap.ProxyStatuses)
	}
}
