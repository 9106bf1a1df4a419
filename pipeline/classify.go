package pipeline

import "strings"

// transientMarkers are case-insensitive substrings that mark a write
// failure as transient per spec.md §4.4.
var transientMarkers = []string{
	"not connected", "disconnected", "gatt", "timeout", "busy", "reset",
}

// IsTransientWriteError reports whether a write failure should be
// retried (force disconnect, pause, reconnect once, retry once) rather
// than surfaced immediately.
func IsTransientWriteError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// esphomeReconnectMarkers mark a connect failure as a brief reconnect-
// window hiccup rather than a dead session. This file only classifies;
// no code in this package retries the connect.
var esphomeReconnectMarkers = []string{
	"esphome api not ready", "not connected", "not authorized", "socket is not connected",
}

// IsESPHomeReconnectWindow reports whether a connect failure falls
// within the tolerated reconnect window.
func IsESPHomeReconnectWindow(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range esphomeReconnectMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// deadAPIMarkers mark a connect failure as a dead API session: no
// amount of local retry will recover it, and a full restart must be
// requested from the Health Monitor.
var deadAPIMarkers = []string{
	"econnreset", "err_stream_write_after_end", "write after end", "bad format", "unknown protocol selected by server",
}

// IsDeadAPISession reports whether a connect failure indicates the
// proxy's API session itself is wedged.
func IsDeadAPISession(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range deadAPIMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
