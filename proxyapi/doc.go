// Package proxyapi implements the client side of the network-attached
// BLE proxy's wire protocol: a varint length-delimited, plaintext
// message stream over a plain TCP socket; noise-encrypted frames are
// rejected (the same
// shape as ESPHome's native API, which is what every BLE proxy in the
// field actually speaks). The protocol itself is treated as opaque
// framing plus a handful of message types the ProxyLink needs; nothing
// here reimplements the full native-API schema.
//
// ProxyLink owns one TCP connection to one proxy and exposes the
// bounded vocabulary of operations the rest of the bridge needs:
// advertisement subscription, device connect/disconnect, GATT service
// discovery, characteristic read/write/notify, and the proxy's own log
// stream. Connect, service discovery, and characteristic read/write/
// notify first wait on the readiness gate so callers never race a
// half-open connection; disconnect, clear-cache, and the subscription
// helpers do not.
//
// Grounded on the teacher's transport package (transport/websocket.go
// for the connect/reconnect/state-callback shape, transport/options.go
// for the functional-options pattern) — adapted from a JSON-RPC-over-
// WebSocket transport to a binary-framed TCP transport, since the BLE
// proxy protocol has no JSON-RPC or WebSocket surface to borrow
// literally.
package proxyapi
