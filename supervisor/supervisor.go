package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartbedmqtt/ble-bridge/config"
	"github.com/smartbedmqtt/ble-bridge/events"
	"github.com/smartbedmqtt/ble-bridge/health"
	"github.com/smartbedmqtt/ble-bridge/mqttsurface"
	"github.com/smartbedmqtt/ble-bridge/proxyapi"
	"github.com/smartbedmqtt/ble-bridge/ratelimit"
	"github.com/smartbedmqtt/ble-bridge/retry"
	"github.com/smartbedmqtt/ble-bridge/types"
)

// linkOpenTimeout is the Proxy Link open's hard timeout per spec.md
// §5's Cancellation & timeouts table.
const linkOpenTimeout = 30 * time.Second

// proxyTeardownPause lets the proxy release its single-subscriber
// slot before the next loop iteration tries to reopen it.
const proxyTeardownPause = time.Second

// proxyOpenMinRetryInterval/proxyOpenMaxRetryInterval are the 5s->30s
// backoff bounds spec.md §4.6 calls for; vars (not consts) so tests can
// shrink them instead of waiting out a real backoff.
var (
	proxyOpenMinRetryInterval = 5 * time.Second
	proxyOpenMaxRetryInterval = 30 * time.Second
)

// nameMismatchWarnWindow rate-limits the "proxy reported a different
// server name" warning to once per proxy per window, since a real
// mismatch would otherwise log once per retry attempt forever.
const nameMismatchWarnWindow = time.Minute

// openProxyLink is proxyapi.Open, overridable in tests so openLinks's
// retry and name-mismatch correction can be exercised against a fake
// link opener instead of a real TCP proxy.
var openProxyLink = proxyapi.Open

// Exit codes per spec.md §6.
const (
	ExitClean      = 0
	ExitSocketOrBLE = 1
	ExitOther      = 2
)

// VendorSetup runs discovery, per-bed setup, and entity publication
// for one loop iteration. Vendor-specific controller logic is out of
// scope for this package; callers inject it here.
type VendorSetup interface {
	Setup(ctx context.Context, links []*proxyapi.Link, bus *events.Bus, mqttClient *mqttsurface.Client, monitor *health.Monitor) error
}

// Supervisor runs the bridge's outer loop from spec.md §4.6.
type Supervisor struct {
	cfg     *config.Config
	vendor  VendorSetup
	log     *logrus.Entry
	mqttCfg mqttsurface.Config
}

// New constructs a Supervisor from a loaded Config and MQTT
// connection settings.
func New(cfg *config.Config, mqttCfg mqttsurface.Config, vendor VendorSetup, log *logrus.Entry) *Supervisor {
	return &Supervisor{cfg: cfg, vendor: vendor, mqttCfg: mqttCfg, log: log}
}

// Run opens the MQTT surface and Health Monitor once, then repeats
// the open-links/run-vendor-setup/await-restart cycle until ctx is
// canceled, returning the process exit code spec.md §6 names.
func (s *Supervisor) Run(ctx context.Context) int {
	mqttClient, err := mqttsurface.New(ctx, s.mqttCfg, s.log)
	if err != nil {
		s.log.WithError(err).Error("supervisor: failed to open mqtt surface")
		return ExitOther
	}
	defer mqttClient.Close()

	monitor := health.New(mqttClient, s.log, nil)
	go monitor.Run()
	defer monitor.Close()

	mqttClient.OnProxyStatus(func(host string, payload []byte) {
		var status any
		if err := json.Unmarshal(payload, &status); err == nil {
			monitor.IngestProxyStatus(host, status)
		}
	})

	bus := events.New()
	defer bus.Close()

	for {
		if ctx.Err() != nil {
			return ExitClean
		}

		links, err := s.openLinks(ctx, bus)
		if err != nil {
			if ctx.Err() != nil {
				return ExitClean
			}
			s.log.WithError(err).Error("supervisor: failed to open proxy links")
			return ExitSocketOrBLE
		}

		if s.vendor != nil {
			if err := s.vendor.Setup(ctx, links, bus, mqttClient, monitor); err != nil {
				s.log.WithError(err).Error("supervisor: vendor setup failed")
			}
		}

		s.awaitRestartOrShutdown(ctx, monitor)

		s.closeLinks(links)

		if ctx.Err() != nil {
			return ExitClean
		}

		select {
		case <-time.After(proxyTeardownPause):
		case <-ctx.Done():
			return ExitClean
		}
	}
}

// openLinks opens every configured proxy with infinite retry (5s→30s,
// ×1.5), per spec.md §4.6 step 3 / §5's timeout table. A server-name
// mismatch (scenario S1) corrects rawProxy.ExpectedServerName in place
// after the first failed attempt, so the retry that follows verifies
// against the name the proxy actually presented.
func (s *Supervisor) openLinks(ctx context.Context, bus *events.Bus) ([]*proxyapi.Link, error) {
	links := make([]*proxyapi.Link, 0, len(s.cfg.Proxies))
	nameMismatchLimiter := ratelimit.New(nameMismatchWarnWindow)

	for _, rawProxy := range s.cfg.ProxyConfigs() {
		rawProxy := rawProxy
		var link *proxyapi.Link

		policy := retry.Policy{
			MinInterval: proxyOpenMinRetryInterval,
			MaxInterval: proxyOpenMaxRetryInterval,
			Multiplier:  1.5,
			Retryable:   retryableProxyOpenError,
			OnRetry: func(attempt int, err error) {
				s.log.WithField("proxy", rawProxy.Host).WithField("attempt", attempt).WithError(err).Warn("supervisor: retrying proxy open")
			},
		}

		err := retry.Do(ctx, policy, func(retryCtx context.Context) error {
			openCtx, cancel := context.WithTimeout(retryCtx, linkOpenTimeout)
			defer cancel()
			l, err := openProxyLink(openCtx, rawProxy, bus, s.log)
			if err != nil {
				s.correctNameMismatch(&rawProxy, err, nameMismatchLimiter)
				return err
			}
			link = l
			return nil
		})
		if err != nil {
			s.closeLinks(links)
			return nil, fmt.Errorf("supervisor: open proxy %s: %w", rawProxy.Host, err)
		}
		links = append(links, link)
	}
	return links, nil
}

// correctNameMismatch inspects err for a KindNameMismatch reporting the
// server name the proxy actually presented and, if found, updates
// proxy.ExpectedServerName so the next Open attempt verifies against
// it instead of repeating the same failure forever (KindNameMismatch
// is retryable per types.Kind.Retryable). Logs once per proxy per
// nameMismatchWarnWindow via limiter rather than once per attempt.
func (s *Supervisor) correctNameMismatch(proxy *types.ProxyConfig, err error, limiter *ratelimit.Limiter) {
	var typed *types.Error
	if !errors.As(err, &typed) || typed.Kind != types.KindNameMismatch {
		return
	}
	got, ok := proxyapi.ParseNameMismatch(err.Error())
	if !ok {
		return
	}
	if limiter.Allow(proxy.Host) && s.log != nil {
		s.log.WithField("proxy", proxy.Host).
			WithField("expected", proxy.ExpectedServerName).
			WithField("got", got).
			Warn("supervisor: proxy reported a different server name, correcting expected name")
	}
	proxy.ExpectedServerName = got
}

// retryableProxyOpenError reports whether the given proxy-open
// failure should be retried forever, per spec.md §4.6's "retryable
// includes socket/BLE timeouts and server-name mismatch."
func retryableProxyOpenError(err error) bool {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed.Kind.Retryable()
	}
	return true
}

func (s *Supervisor) closeLinks(links []*proxyapi.Link) {
	for _, l := range links {
		if err := l.Close(); err != nil && s.log != nil {
			s.log.WithError(err).Debug("supervisor: error closing proxy link")
		}
	}
}

// awaitRestartOrShutdown blocks until the Health Monitor requests a
// restart or ctx is canceled.
func (s *Supervisor) awaitRestartOrShutdown(ctx context.Context, monitor *health.Monitor) {
	restartCh := make(chan health.RestartRequest, 1)
	go func() {
		if req, ok := monitor.WaitForRestartRequest(); ok {
			restartCh <- req
		}
	}()

	select {
	case req := <-restartCh:
		if s.log != nil {
			s.log.WithField("kind", req.Kind).WithField("reason", req.Reason).Info("supervisor: restarting")
		}
		monitor.AcknowledgeRestart()
	case <-ctx.Done():
	}
}

