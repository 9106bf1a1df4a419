package health

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartbedmqtt/ble-bridge/types"
)

// Publisher is the narrow outbound surface the Monitor needs. It is
// satisfied by mqttsurface.Client but declared here to avoid a
// circular import, the same way transport.RPCRequest decouples rpc
// from transport.
type Publisher interface {
	PublishHealth(snapshot types.HealthSnapshot) error
	PublishDegraded(degraded bool) error
	PublishProxyCommand(host, payload string) error
	PublishProxyBreadcrumb(host string, remainingSeconds int64) error
}

const (
	heartbeatInterval          = 30 * time.Second
	maintenanceCheckInterval   = 5 * time.Minute
	maintenanceMinUptime       = 30 * time.Minute
	maintenanceMaxIdle         = 12 * time.Hour
	proxyRebootCooldown        = 10 * time.Minute
	failuresBeforeEscalation   = 3
)

// RestartRequest describes an accepted request to restart the
// process, surfaced to the supervisor via WaitForRestartRequest.
type RestartRequest struct {
	Kind   string
	Reason string
}

// Monitor is the bridge-wide Health Monitor from spec.md §4.5.
type Monitor struct {
	pub Publisher
	log *logrus.Entry
	now func() time.Time

	startedAt time.Time

	mu                   sync.Mutex
	lastBLESuccessAt     time.Time
	lastCommandAt        time.Time
	lastBLEError         string
	consecutiveFailures  int
	proxyStatuses        map[string]any
	proxyRebootCooldowns map[string]time.Time
	restartPending        *RestartRequest

	restartCh chan RestartRequest
	closeCh   chan struct{}
	closeOnce sync.Once
}

// New constructs a Monitor. now defaults to time.Now when nil; tests
// substitute a deterministic clock.
func New(pub Publisher, log *logrus.Entry, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		pub:                  pub,
		log:                  log,
		now:                  now,
		startedAt:            now(),
		proxyStatuses:        make(map[string]any),
		proxyRebootCooldowns: make(map[string]time.Time),
		restartCh:            make(chan RestartRequest, 1),
		closeCh:              make(chan struct{}),
	}
}

// RecordBLESuccess resets the consecutive-failure counter and stamps
// the last-success time.
func (m *Monitor) RecordBLESuccess(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBLESuccessAt = m.now()
	m.consecutiveFailures = 0
}

// RecordBLEFailure increments the consecutive-failure counter for
// retryable errors and escalates on the third consecutive one; a
// non-retryable error resets the counter without escalating.
func (m *Monitor) RecordBLEFailure(device string, err error, proxyHost string, retryable bool) {
	m.mu.Lock()
	if err != nil {
		m.lastBLEError = types.RedactError(err.Error())
	}
	if !retryable {
		m.consecutiveFailures = 0
		m.mu.Unlock()
		return
	}
	m.consecutiveFailures++
	escalate := m.consecutiveFailures >= failuresBeforeEscalation
	if escalate {
		m.consecutiveFailures = 0
	}
	m.mu.Unlock()

	if !escalate {
		return
	}
	if proxyHost != "" {
		m.RequestProxyReboot(proxyHost)
		m.RequestRestart("ble_escalation", "three consecutive retryable BLE failures with known proxy host "+proxyHost)
		return
	}
	m.RequestRestart("ble_escalation", "three consecutive retryable BLE failures, proxy host unknown")
}

// RecordCommand stamps the last-command time, used by the
// maintenance-reconnect timer's idle check.
func (m *Monitor) RecordCommand(device, cmdName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCommandAt = m.now()
}

// RequestRestart records a pending restart reason and signals any
// waiter on WaitForRestartRequest. Subsequent calls before the
// waiter drains are no-ops; restartCh is buffered 1 and the pending
// reason is kept as the first one accepted.
func (m *Monitor) RequestRestart(kind, reason string) {
	m.mu.Lock()
	if m.restartPending != nil {
		m.mu.Unlock()
		return
	}
	req := RestartRequest{Kind: kind, Reason: reason}
	m.restartPending = &req
	m.mu.Unlock()

	select {
	case m.restartCh <- req:
	default:
	}
	if m.log != nil {
		m.log.WithField("kind", kind).WithField("reason", reason).Warn("health: restart requested")
	}
}

// WaitForRestartRequest blocks until a restart is requested or the
// Monitor is closed, whichever comes first. The caller must call
// AcknowledgeRestart once it has acted on the request, or future
// RequestRestart calls will keep no-op'ing against the still-pending
// reason.
func (m *Monitor) WaitForRestartRequest() (RestartRequest, bool) {
	select {
	case req := <-m.restartCh:
		return req, true
	case <-m.closeCh:
		return RestartRequest{}, false
	}
}

// AcknowledgeRestart clears the pending restart reason, allowing a
// subsequent RecordBLEFailure/RequestRestart escalation to raise a
// new one.
func (m *Monitor) AcknowledgeRestart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restartPending = nil
}

// RequestProxyReboot publishes a reboot command for host unless it is
// within its 10-minute post-reboot cooldown, in which case it
// publishes a breadcrumb with the remaining cooldown instead.
func (m *Monitor) RequestProxyReboot(host string) {
	now := m.now()

	m.mu.Lock()
	until, cooling := m.proxyRebootCooldowns[host]
	if cooling && now.Before(until) {
		remaining := until.Sub(now)
		m.mu.Unlock()
		if m.pub != nil {
			_ = m.pub.PublishProxyBreadcrumb(host, int64(remaining.Seconds()))
		}
		return
	}
	m.proxyRebootCooldowns[host] = now.Add(proxyRebootCooldown)
	m.mu.Unlock()

	if m.pub != nil {
		_ = m.pub.PublishProxyCommand(host, "REBOOT")
	}
}

// IngestProxyStatus records the best-effort parsed status payload for
// host, surfaced in the next heartbeat.
func (m *Monitor) IngestProxyStatus(host string, status any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proxyStatuses[host] = status
}

// snapshot builds the current HealthSnapshot under lock.
func (m *Monitor) snapshot() types.HealthSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	proxyStatuses := make(map[string]any, len(m.proxyStatuses))
	for k, v := range m.proxyStatuses {
		proxyStatuses[k] = v
	}

	var pendingReason string
	if m.restartPending != nil {
		pendingReason = m.restartPending.Reason
	}

	return types.HealthSnapshot{
		Type:                   "smartbedmqtt",
		StartedAt:              m.startedAt,
		UptimeSeconds:          int64(m.now().Sub(m.startedAt).Seconds()),
		LastBLESuccessAt:       m.lastBLESuccessAt,
		ConsecutiveBLEFailures: m.consecutiveFailures,
		LastBLEError:           m.lastBLEError,
		LastCommandAt:          m.lastCommandAt,
		ProxyStatuses:          proxyStatuses,
		Degraded:               m.consecutiveFailures > 0 || m.restartPending != nil,
		PendingRestartReason:   pendingReason,
	}
}

// degraded reports the retained <ns>/status/degraded value.
func (m *Monitor) degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures > 0 || m.restartPending != nil
}

// Run drives the heartbeat and maintenance-reconnect timers until
// Close is called. It is intended to run in its own goroutine for the
// lifetime of the process.
func (m *Monitor) Run() {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	maintenance := time.NewTicker(maintenanceCheckInterval)
	defer maintenance.Stop()

	var lastDegraded bool
	for {
		select {
		case <-m.closeCh:
			return
		case <-heartbeat.C:
			if m.pub == nil {
				continue
			}
			if err := m.pub.PublishHealth(m.snapshot()); err != nil && m.log != nil {
				m.log.WithError(err).Warn("health: failed to publish heartbeat")
			}
			if d := m.degraded(); d != lastDegraded {
				lastDegraded = d
				if err := m.pub.PublishDegraded(d); err != nil && m.log != nil {
					m.log.WithError(err).Warn("health: failed to publish degraded flag")
				}
			}
		case <-maintenance.C:
			m.checkMaintenanceReconnect()
		}
	}
}

func (m *Monitor) checkMaintenanceReconnect() {
	now := m.now()

	m.mu.Lock()
	uptime := now.Sub(m.startedAt)
	lastCommand := m.lastCommandAt
	m.mu.Unlock()

	if uptime < maintenanceMinUptime {
		return
	}
	if lastCommand.IsZero() {
		return
	}
	if now.Sub(lastCommand) < maintenanceMaxIdle {
		return
	}
	m.RequestRestart("maintenance", "uptime and idle thresholds exceeded with no recent commands")
}

// Close stops Run and unblocks any WaitForRestartRequest callers.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.closeCh)
	})
}
