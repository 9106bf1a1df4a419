// Package ratelimit provides a small keyed de-dup window used to
// avoid flooding the log with repeats of the same failure message —
// e.g. the name-mismatch warning in the Proxy Link's auto-correction
// path (spec.md scenario S1 calls for exactly one warning log, not
// one per retry iteration).
package ratelimit
