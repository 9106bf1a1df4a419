// Package matching implements discovery identifier normalization, the
// advertisement match predicate, the scan loop (including silent-scan
// self-heal), and failover scoring described in spec.md §4.3.
//
// Grounded on the teacher's discovery package (discovery/ble.go for the
// scan-loop shape; discovery/identify.go for token-normalization style)
// adapted from Shelly-specific prefix/service-UUID matching to the
// bridge's MAC/alias/substring predicate.
package matching
