// Package health implements the bridge-wide Health Monitor from
// spec.md §4.5: a single long-lived goroutine that tracks consecutive
// BLE failures, escalates to a proxy reboot and/or a full process
// restart, publishes a 30s heartbeat and a retained degraded flag, and
// arms a maintenance-reconnect timer on long-idle installations.
//
// Grounded on proxyapi.Link's reconnectMonitor for the ticker/select
// loop shape, generalized from "retry a dial" to "evaluate several
// independent timers and counters on each tick."
package health
