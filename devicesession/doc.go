// Package devicesession implements the per-(proxy-host, address)
// connect/service-discovery/notification lifecycle described in
// spec.md §4.2: a process-wide connect mutex that serializes connect
// attempts for a given DeviceKey, the seven-step connect procedure
// (cache-mode selection, cooldowns, the proxy-log side-channel race,
// cleanup-and-retry-opposite-cache-mode), the services discovery
// recovery ladder, and characteristic/advertisement listener dedup.
//
// Grounded on the teacher's rpc/client.go (the per-request
// correlation-and-timeout shape; request-scoped mutex pattern) and
// gen2/ (the connect/reconnect procedure for a stateful device), both
// generalized to BLE's connect-with-cache-mode-fallback contract,
// which has no literal teacher equivalent.
package devicesession
