// Package retry provides the generic exponential-backoff retry engine.
// Its caller in the bridge is the supervisor's open-every-proxy step
// (supervisor.openLinks). Proxy Link reconnects (a fixed-interval
// ticker), Device Session connects, the services discovery ladder, and
// the Command Pipeline's single transient-write retry each run their
// own bounded loop and do not call into this package.
//
// It generalizes the retry loop the teacher writes by hand in
// transport/http.go ("delay = time.Duration(float64(delay) *
// h.opts.retryBackoff)") onto github.com/cenkalti/backoff/v4, which is
// already in the teacher's dependency tree (pulled in transitively by
// testcontainers-go) but never imported from teacher source.
package retry
