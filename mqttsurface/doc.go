// Package mqttsurface implements the bridge's message-bus surface
// from spec.md §6: retained availability with last-will, the health
// heartbeat and degraded flag, proxy status/command/reboot topics,
// and Home Assistant MQTT discovery payloads keyed on a bed's stable
// address.
//
// Grounded on the teacher's transport/mqtt.go (paho.mqtt.golang
// client lifecycle: Connect/onConnect/onConnectionLost, state
// callbacks, clean Close), generalized from a single-device RPC
// transport to a namespaced multi-topic publish/subscribe surface.
package mqttsurface
