// Package types holds the core data model shared by every layer of the
// bridge: proxy and bed configuration, the per-device identity key, the
// BLE advertisement and GATT shapes exchanged with a proxy, the
// persisted preference/stats records, and the error taxonomy.
//
// Nothing in this package talks to a network or a filesystem; it only
// defines the shapes other packages operate on.
package types
