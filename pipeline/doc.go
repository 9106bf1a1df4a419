// Package pipeline implements the per-controller command queue from
// spec.md §4.4: strict FIFO ordering per controller, transient-error
// retry (disconnect, pause, reconnect once, retry the write once),
// repeating-command coalescing by deep byte-array equality, an
// idle-disconnect timer, and connect-failure classifiers
// (IsESPHomeReconnectWindow, IsDeadAPISession) that distinguish a
// recoverable connect hiccup from a dead API session. The classifiers
// only report; nothing in this package retries connects or requests a
// restart.
//
// Grounded on the teacher's rpc/batch.go (ordered-request-queue shape),
// generalized from a single batched RPC call to a long-lived,
// continuously fed per-controller worker loop. The transient-error
// classification lives in classify.go and the single write retry is
// done by the Queue itself; this package does not use the retry
// package.
package pipeline
