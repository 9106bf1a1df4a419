package proxyapi

import "time"

// Option configures a Link.
type Option func(*options)

type options struct {
	dialTimeout    time.Duration
	readyTimeout   time.Duration
	reconnectDelay time.Duration
	expectedName   string
	password       string
}

func defaultOptions() *options {
	return &options{
		dialTimeout:    30 * time.Second,
		readyTimeout:   5 * time.Second,
		reconnectDelay: 5 * time.Second,
	}
}

// WithDialTimeout bounds the combined connect+authorize+feature-probe
// sequence. The contract in spec.md §4.1 calls for 30s.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithReadyTimeout bounds how long an operation waits for the
// readiness gate before failing with ApiNotReady. Default 5s.
func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) { o.readyTimeout = d }
}

// WithReconnectDelay sets the built-in reconnect interval used once
// the link has reached Ready at least once. Default 5s.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *options) { o.reconnectDelay = d }
}

// WithExpectedName sets the server name the handshake is checked
// against. Subject to name-mismatch auto-correction: on a "Server name
// mismatch, expected X, got Y" error, the next Open replaces this with
// Y so encrypted sessions still verify.
func WithExpectedName(name string) Option {
	return func(o *options) { o.expectedName = name }
}

// WithPassword sets the proxy API password, if configured.
func WithPassword(password string) Option {
	return func(o *options) { o.password = password }
}

func applyOptions(o *options, opts []Option) {
	for _, opt := range opts {
		opt(o)
	}
}
