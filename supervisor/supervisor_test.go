package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartbedmqtt/ble-bridge/config"
	"github.com/smartbedmqtt/ble-bridge/events"
	"github.com/smartbedmqtt/ble-bridge/mqttsurface"
	"github.com/smartbedmqtt/ble-bridge/proxyapi"
	"github.com/smartbedmqtt/ble-bridge/types"
)

func TestRetryableProxyOpenErrorAcceptsKnownRetryableKinds(t *testing.T) {
	for _, kind := range []types.Kind{types.KindSocket, types.KindBLETimeout, types.KindNameMismatch, types.KindProtocolError} {
		err := types.NewError(kind, "open failed", nil)
		if !retryableProxyOpenError(err) {
			t.Errorf("expected kind %s to be retryable", kind)
		}
	}
}

func TestRetryableProxyOpenErrorRejectsFatalKinds(t *testing.T) {
	for _, kind := range []types.Kind{types.KindAuthRejected, types.KindMissingBLEProxyFlags} {
		err := types.NewError(kind, "open failed", nil)
		if retryableProxyOpenError(err) {
			t.Errorf("expected kind %s not to be retryable", kind)
		}
	}
}

func TestRetryableProxyOpenErrorDefaultsTrueForUntypedErrors(t *testing.T) {
	if !retryableProxyOpenError(errors.New("connection refused")) {
		t.Fatalf("expected an untyped error to default to retryable")
	}
}

// TestOpenLinksCorrectsNameMismatchOnRetry drives openLinks through
// scenario S1: the first attempt reports the proxy's actual server
// name via KindNameMismatch, and the second attempt must present the
// corrected name rather than repeating the original, stale one.
func TestOpenLinksCorrectsNameMismatchOnRetry(t *testing.T) {
	origOpen := openProxyLink
	origMin, origMax := proxyOpenMinRetryInterval, proxyOpenMaxRetryInterval
	t.Cleanup(func() {
		openProxyLink = origOpen
		proxyOpenMinRetryInterval = origMin
		proxyOpenMaxRetryInterval = origMax
	})
	proxyOpenMinRetryInterval = time.Millisecond
	proxyOpenMaxRetryInterval = 2 * time.Millisecond

	const staleName = "m5stack-atom-lite-abc123"
	const actualName = "m5stack-atom-lite-fdb45c"

	var attempts int
	var seenNames []string
	openProxyLink = func(_ context.Context, proxy types.ProxyConfig, _ *events.Bus, _ *logrus.Entry, _ ...proxyapi.Option) (*proxyapi.Link, error) {
		attempts++
		seenNames = append(seenNames, proxy.ExpectedServerName)
		if attempts == 1 {
			return nil, types.NewError(types.KindNameMismatch,
				"Server name mismatch, expected "+staleName+", got "+actualName, nil)
		}
		return &proxyapi.Link{}, nil
	}

	cfg := &config.Config{Proxies: []config.ProxyConfig{
		{Host: "192.168.1.50", ExpectedServerName: staleName},
	}}
	s := New(cfg, mqttsurface.Config{}, nil, logrus.NewEntry(logrus.New()))

	links, err := s.openLinks(context.Background(), events.New())
	if err != nil {
		t.Fatalf("openLinks returned error: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
	if seenNames[0] != staleName {
		t.Fatalf("first attempt expected name = %q, want %q", seenNames[0], staleName)
	}
	if seenNames[1] != actualName {
		t.Fatalf("second attempt expected name = %q, want corrected %q", seenNames[1], actualName)
	}
}
