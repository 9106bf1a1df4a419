// Package testutil provides generic test assertion helpers shared
// across the bridge's package tests.
//
// Grounded on the teacher's internal/testutil/helpers.go. The
// teacher's MockTransport/MockGen1Device/MockGen2Device mocks and its
// integration/ harness are Shelly RPC- and device-shape specific (see
// DESIGN.md) and have no equivalent seam here: every package in this
// module fakes its own narrow interface inline (health's
// fakePublisher, devicesession's in-flight future test, pipeline's
// Command closures) because each seam is small enough not to need a
// shared mock.
package testutil
