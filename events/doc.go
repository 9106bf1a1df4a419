// Package events is the bridge's typed event dispatcher, replacing the
// pervasive manual add/remove event-emitter pattern design note #1
// warns against with a single bus plus scoped, exactly-revocable
// subscriptions (see Scope).
//
// Every asynchronous signal in the bridge — a BLE advertisement seen
// on a ProxyLink, a connect response, a GATT notification, a line from
// the proxy's own log stream — is published as an Event here instead
// of handed to an ad hoc callback. HealthChangedEvent is defined, but
// the Health Monitor does not publish it on the bus. This keeps
// listener registration exactly revocable across reconnect cycles:
// duplicate listeners and leaked callbacks cannot accumulate the way
// they do with raw add/remove emitters.
//
// Adapted from the teacher's events package: the dispatch core
// (subscription bookkeeping, filtered delivery, history ring buffer)
// keeps the teacher's shape, but Bus itself now carries this bridge's
// domain — SubscribeAdvertisements, SubscribeProxyLog, and
// SubscribeNotify fold the proxy-host/address filtering every caller
// needs directly onto the bus instead of leaving it as hand-assembled
// Filter combinators at each call site. Shelly-specific event types
// are replaced by the bridge's own (Advertisement, ConnectResult,
// Notify, ProxyLogLine, HealthChanged), and Scope is new.
package events
