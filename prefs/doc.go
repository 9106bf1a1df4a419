// Package prefs persists the two process-restart-surviving records
// named in spec.md §3.2: per-DeviceKey (proxy host plus address)
// ConnectPreference (cache mode) and per-bed BedControllerPrefs
// (success/failure stats per controller plus pinned controller). Both are plain JSON files written with a write-tmp,
// fsync, rename sequence so a crash mid-write never corrupts the
// previous good copy.
//
// Adapted from the teacher's backup package (backup/backup.go) for the
// versioned-JSON-document shape; the atomic write discipline itself
// has no teacher equivalent (backup.Export/Import round-trip through
// caller-supplied io.Writer/Reader, never touching a file directly) and
// is built directly against os/encoding-json, the idiomatic choice for
// a small local state file with no concurrent external writers.
package prefs
