// Package blebridge bridges an MQTT home-automation bus to BLE
// adjustable-bed controllers reachable through network-attached BLE
// proxies speaking an ESPHome-native-API-shaped binary TCP protocol.
//
// # Overview
//
// The bridge runs as a single long-lived process (see cmd/smartbedmqtt)
// that:
//
//   - opens a proxyapi.Link to each configured BLE proxy and keeps it
//     alive across reconnects (proxyapi, health)
//   - discovers and matches BLE advertisements to configured bed
//     controllers (matching)
//   - serializes commands to each controller through a per-controller
//     pipeline.Queue, coalescing repeated writes and retrying
//     transient failures (pipeline)
//   - publishes availability, health, and Home Assistant MQTT discovery
//     over mqttsurface, which subscribes only to proxy status and Home
//     Assistant status topics, not to bed command topics
//   - persists learned device/proxy associations via prefs
//
// supervisor.Supervisor owns the outer loop: open links, run until a
// restart is requested or the context is canceled, close links, pause,
// repeat, retrying proxy opens through retry and de-duplicating the
// name-mismatch warning through ratelimit. events.Bus carries
// cross-package notifications (advertisement seen, connect result,
// notify frame, proxy log line) with exactly-revocable subscriptions.
//
// # Package organization
//
//   - types: shared identifiers and the typed error taxonomy
//   - events: pub/sub event bus
//   - retry: backoff-based retry engine
//   - ratelimit: keyed de-dup window for repeated log warnings
//   - proxyapi: binary wire protocol + Link state machine to a proxy
//   - devicesession: per-controller connect/session bookkeeping
//   - matching: BLE advertisement to controller matching
//   - prefs: atomic on-disk persistence of learned associations
//   - pipeline: per-controller command queue and manager
//   - health: connection health monitoring, escalation, heartbeats
//   - mqttsurface: MQTT client, topics, and HA discovery payloads
//   - config: add-on YAML configuration loading and validation
//   - supervisor: outer run loop wiring the above together
//   - cmd/smartbedmqtt: process entrypoint
//
// See SPEC_FULL.md and DESIGN.md for the full specification and the
// grounding of each package in the retrieval pack this module was
// built from.
package blebridge
