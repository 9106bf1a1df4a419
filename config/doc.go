// Package config loads and validates the bridge's add-on configuration
// from YAML: MQTT broker settings (with <auto_detect> substitution),
// the vendor type, the list of BLE proxies, and per-vendor bed/device
// lists.
//
// Grounded on spec.md §6's External Interfaces; no teacher file loads
// YAML directly, so this is built on gopkg.in/yaml.v3 (a teacher
// dependency, indirect via testcontainers/mergo in the original
// go.mod) applied the way the rest of the pack's config-loading code
// does: unmarshal into a plain struct, then validate by hand.
package config
