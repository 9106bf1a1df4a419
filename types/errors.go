package types

import "fmt"

// Kind classifies an Error into the taxonomy described by the bridge's
// error handling design. Callers branch on Kind, not on error strings.
type Kind int

const (
	// KindUnknown is the zero value; never intentionally constructed.
	KindUnknown Kind = iota

	// KindConfig indicates schema validation or file I/O failure at
	// startup. Fatal.
	KindConfig

	// KindAPINotReady indicates the proxy readiness gate expired.
	// Retryable.
	KindAPINotReady

	// KindSocket indicates a transport-level failure (ECONNRESET,
	// ECONNREFUSED, ETIMEDOUT, EHOSTUNREACH, ENETUNREACH, and the
	// framing-level equivalents). Retryable; trips the health monitor
	// when repeated.
	KindSocket

	// KindProxyIgnored indicates the proxy refused a connect attempt
	// outright ("Connection request ignored, state: ..."). Short
	// circuits the current attempt.
	KindProxyIgnored

	// KindHardFailure indicates the proxy log reported status=133 or
	// reason 0x100. Retryable, but only after a cooldown.
	KindHardFailure

	// KindBLETimeout indicates GATT services discovery or a known
	// response wait timed out. Retryable after the recovery ladder is
	// exhausted.
	KindBLETimeout

	// KindNotSupported indicates the vendor is-supported probe
	// returned false for every candidate controller. Non-fatal: the
	// bed is skipped, other beds proceed.
	KindNotSupported

	// KindDuplicateIdentifier indicates two beds normalize to the same
	// identifier. Fatal for that vendor's setup.
	KindDuplicateIdentifier

	// KindControllerBuildFailed indicates the vendor builder returned
	// no controller for an otherwise-matched advertisement.
	KindControllerBuildFailed

	// KindNameMismatch indicates the proxy's hello response reported a
	// server name other than the configured one. Retryable: the outer
	// layer corrects the expected name and tries again.
	KindNameMismatch

	// KindMissingBLEProxyFlags indicates the proxy's feature-flags
	// probe did not advertise BLE proxy support. Fatal for this proxy.
	KindMissingBLEProxyFlags

	// KindAuthRejected indicates the proxy rejected the configured API
	// password. Fatal for this proxy.
	KindAuthRejected

	// KindProtocolError indicates a frame arrived out of the expected
	// sequence during the handshake. Retryable.
	KindProtocolError
)

// String renders the Kind's semantic name.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindAPINotReady:
		return "ApiNotReady"
	case KindSocket:
		return "SocketError"
	case KindProxyIgnored:
		return "ProxyIgnored"
	case KindHardFailure:
		return "HardFailure"
	case KindBLETimeout:
		return "BleTimeout"
	case KindNotSupported:
		return "NotSupported"
	case KindDuplicateIdentifier:
		return "DuplicateIdentifier"
	case KindControllerBuildFailed:
		return "ControllerBuildFailed"
	case KindNameMismatch:
		return "NameMismatch"
	case KindMissingBLEProxyFlags:
		return "MissingBleProxyFlags"
	case KindAuthRejected:
		return "AuthRejected"
	case KindProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// Retryable reports whether errors of this Kind are retryable by
// outer retry loops. KindConfig, KindDuplicateIdentifier,
// KindMissingBLEProxyFlags, KindAuthRejected, KindNotSupported, and
// KindUnknown are not — the first four are fatal, KindNotSupported is a
// terminal per-bed skip.
func (k Kind) Retryable() bool {
	switch k {
	case KindAPINotReady, KindSocket, KindProxyIgnored, KindHardFailure, KindBLETimeout, KindControllerBuildFailed, KindNameMismatch, KindProtocolError:
		return true
	default:
		return false
	}
}

// Error is the bridge's error type: a Kind plus a human message and an
// optional wrapped cause, in the shape of the teacher's *BLEError.
type Error struct {
	Err     error
	Message string
	Kind    Kind
}

// NewError constructs an Error of the given Kind.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, types.NewError(types.KindBLETimeout, "", nil)) works
// without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
