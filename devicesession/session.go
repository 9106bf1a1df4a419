package devicesession

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartbedmqtt/ble-bridge/events"
	"github.com/smartbedmqtt/ble-bridge/prefs"
	"github.com/smartbedmqtt/ble-bridge/proxyapi"
	"github.com/smartbedmqtt/ble-bridge/types"
)

const (
	connectAttemptTimeout   = 12 * time.Second
	cleanupPause            = 250 * time.Millisecond
	hardFailureCooldown     = 3 * time.Second
	mtuZeroCooldown         = 2 * time.Second
	slowConnectThreshold    = 8 * time.Second
	forceWithoutCacheWindow = 15 * time.Minute

	servicesFirstRetryWait  = 400 * time.Millisecond
	servicesRecoveryWait    = 600 * time.Millisecond
)

// ConnectOutcome is the result of a successful Connect.
type ConnectOutcome struct {
	MTU       uint16
	ErrorCode uint16
	Connected bool
}

// Session owns the BLE-level state for one (proxy-host, address):
// connect preference, cooldowns, listener dedup maps, and the
// diagnostics struct surfaced to external health reporting.
type Session struct {
	link *proxyapi.Link
	bus  *events.Bus
	key  types.DeviceKey
	log  *logrus.Entry

	connectPrefs *prefs.ConnectPreferenceStore

	mu                     sync.Mutex
	cooldownUntil          time.Time
	forceWithoutCacheUntil time.Time
	servicesCache          []proxyapi.GattService

	notifyListeners   map[uint16]func()
	advertisementUnsub func()

	diagnostics types.DeviceDiagnostics
}

// New constructs a Session bound to link for key.
func New(link *proxyapi.Link, bus *events.Bus, key types.DeviceKey, connectPrefs *prefs.ConnectPreferenceStore, log *logrus.Entry) *Session {
	return &Session{
		link:         link,
		bus:          bus,
		key:          key,
		connectPrefs: connectPrefs,
		log:          log.WithField("device_key", key.String()),
		notifyListeners: make(map[uint16]func()),
		diagnostics: types.DeviceDiagnostics{
			DeviceKey: key.String(),
			ProxyHost: key.ProxyHost,
			MAC:       key.MAC(),
		},
	}
}

// Diagnostics returns a copy of the session's current diagnostics
// snapshot.
func (s *Session) Diagnostics() types.DeviceDiagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagnostics
}

// Connect runs the seven-step connect procedure from spec.md §4.2.
// Callers MUST route this through Registry.Connect so concurrent
// attempts for the same key share one in-flight future.
func (s *Session) Connect(ctx context.Context, addrType types.AddressType) (ConnectOutcome, error) {
	s.mu.Lock()
	cooldown := s.cooldownUntil
	s.mu.Unlock()
	if now := time.Now(); cooldown.After(now) {
		select {
		case <-time.After(cooldown.Sub(now)):
		case <-ctx.Done():
			return ConnectOutcome{}, ctx.Err()
		}
	}

	if err := s.link.WaitReady(ctx); err != nil {
		return ConnectOutcome{}, err
	}

	withoutCache := s.chooseInitialCacheMode()

	started := time.Now()
	outcome, err := s.attemptConnect(ctx, addrType, withoutCache)
	if err == nil && outcome.Connected {
		s.onConnectSuccess(withoutCache, time.Since(started))
		return outcome, nil
	}
	if bleErr, ok := err.(*types.Error); ok && (bleErr.Kind == types.KindProxyIgnored || bleErr.Kind == types.KindHardFailure) {
		return outcome, err
	}

	// Cleanup and retry once with the opposite cache mode.
	_ = s.link.DeviceDisconnect(s.key.Address)
	_ = s.link.DeviceClearCache(s.key.Address)
	time.Sleep(cleanupPause)

	started = time.Now()
	outcome, err = s.attemptConnect(ctx, addrType, !withoutCache)
	if err != nil {
		return outcome, err
	}
	s.onConnectSuccess(!withoutCache, time.Since(started))
	return outcome, nil
}

func (s *Session) chooseInitialCacheMode() bool {
	s.mu.Lock()
	force := s.forceWithoutCacheUntil
	s.mu.Unlock()
	if time.Now().Before(force) {
		return true
	}
	return s.connectPrefs.Get(s.key).WithoutCache
}

// attemptConnect issues one connect call with a 12s per-attempt
// timeout, racing it against the proxy's own log stream for the three
// side-channel outcomes in spec.md §4.2 step 5.
func (s *Session) attemptConnect(ctx context.Context, addrType types.AddressType, withoutCache bool) (ConnectOutcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, connectAttemptTimeout)
	defer cancel()

	type raceResult struct {
		outcome ConnectOutcome
		err     error
	}
	raceCh := make(chan raceResult, 2)

	var unsub func()
	unsub, logErr := s.link.SubscribeLogLines(func(line string) {
		mac := s.key.MAC()
		if !strings.Contains(line, mac) {
			return
		}
		switch {
		case strings.Contains(line, "Connection request ignored, state: ESTABLISHED"):
			select {
			case raceCh <- raceResult{outcome: ConnectOutcome{Connected: true}}:
			default:
			}
		case strings.Contains(line, "Connection request ignored, state:"):
			select {
			case raceCh <- raceResult{err: types.NewError(types.KindProxyIgnored, "proxyapi: "+line, nil)}:
			default:
			}
		case strings.Contains(line, "status=133") || strings.Contains(line, "reason 0x100"):
			s.mu.Lock()
			s.cooldownUntil = time.Now().Add(hardFailureCooldown)
			s.mu.Unlock()
			select {
			case raceCh <- raceResult{err: types.NewError(types.KindHardFailure, "proxyapi: "+line, nil)}:
			default:
			}
		}
	})
	if logErr == nil {
		defer unsub()
	}

	go func() {
		res, err := s.link.DeviceConnect(attemptCtx, s.key.Address, uint32(addrType), withoutCache)
		select {
		case raceCh <- raceResult{outcome: ConnectOutcome{Connected: res.Connected, ErrorCode: res.ErrorCode, MTU: res.MTU}, err: err}:
		default:
		}
	}()

	select {
	case <-attemptCtx.Done():
		return ConnectOutcome{}, types.NewError(types.KindBLETimeout, "proxyapi: device_connect attempt timed out", attemptCtx.Err())
	case r := <-raceCh:
		s.recordDiagnostics(withoutCache, r.outcome, r.err)
		return r.outcome, r.err
	}
}

func (s *Session) recordDiagnostics(withoutCache bool, outcome ConnectOutcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics.UsedWithoutCache = withoutCache
	s.diagnostics.ErrorCode = outcome.ErrorCode
	s.diagnostics.MTU = outcome.MTU
	if err != nil {
		s.diagnostics.LastError = err.Error()
		if bleErr, ok := err.(*types.Error); ok && bleErr.Kind == types.KindProxyIgnored {
			s.diagnostics.IgnoredConnects++
		}
	}
}

func (s *Session) onConnectSuccess(withoutCache bool, duration time.Duration) {
	prior := s.connectPrefs.Get(s.key)
	if prior.WithoutCache != withoutCache {
		_ = s.connectPrefs.Set(s.key, types.ConnectPreference{WithoutCache: withoutCache})
	}

	s.mu.Lock()
	s.cooldownUntil = time.Time{}
	s.diagnostics.LastConnectedAt = time.Now()
	s.diagnostics.ConnectDurationMs = duration.Milliseconds()
	mtu := s.diagnostics.MTU
	s.mu.Unlock()

	if duration > slowConnectThreshold {
		s.mu.Lock()
		s.forceWithoutCacheUntil = time.Now().Add(forceWithoutCacheWindow)
		s.mu.Unlock()
	}
	if mtu == 0 {
		s.mu.Lock()
		s.cooldownUntil = time.Now().Add(mtuZeroCooldown)
		s.mu.Unlock()
	}
}

// ListServices runs the services discovery recovery ladder from
// spec.md §4.2. The first successful non-empty list is cached until
// the next disconnect event or explicit error clears it.
func (s *Session) ListServices(ctx context.Context, addrType types.AddressType) ([]proxyapi.GattService, error) {
	s.mu.Lock()
	if s.servicesCache != nil {
		cached := s.servicesCache
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	services, err := s.link.ListServices(ctx, s.key.Address)
	if err == nil && len(services) > 0 {
		return s.cacheServices(services), nil
	}
	if err != nil && isTimeoutError(err) {
		return s.recoverServicesAfterTimeout(ctx, addrType)
	}

	time.Sleep(servicesFirstRetryWait)
	services, err = s.link.ListServices(ctx, s.key.Address)
	if err == nil && len(services) > 0 {
		return s.cacheServices(services), nil
	}
	if err != nil && isTimeoutError(err) {
		return s.recoverServicesAfterTimeout(ctx, addrType)
	}

	return s.recoverServicesAfterTimeout(ctx, addrType)
}

func (s *Session) recoverServicesAfterTimeout(ctx context.Context, addrType types.AddressType) ([]proxyapi.GattService, error) {
	_ = s.link.DeviceClearCache(s.key.Address)
	_ = s.link.DeviceDisconnect(s.key.Address)
	if _, err := s.attemptConnect(ctx, addrType, true); err != nil {
		return nil, types.NewError(types.KindBLETimeout, "proxyapi: list_services recovery connect failed", err)
	}
	time.Sleep(servicesRecoveryWait)

	services, err := s.link.ListServices(ctx, s.key.Address)
	if err != nil {
		return nil, types.NewError(types.KindBLETimeout, "proxyapi: list_services unrecoverable timeout", err)
	}
	if len(services) == 0 {
		return nil, types.NewError(types.KindBLETimeout, "proxyapi: list_services returned empty after recovery", nil)
	}
	_ = s.connectPrefs.Set(s.key, types.ConnectPreference{WithoutCache: true})
	return s.cacheServices(services), nil
}

func (s *Session) cacheServices(services []proxyapi.GattService) []proxyapi.GattService {
	s.mu.Lock()
	s.servicesCache = services
	s.mu.Unlock()
	return services
}

// ClearServicesCache drops the cached service list, e.g. on a
// disconnect event.
func (s *Session) ClearServicesCache() {
	s.mu.Lock()
	s.servicesCache = nil
	s.mu.Unlock()
}

func isTimeoutError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "bluetoothgattgetservicesdoneresponse")
}

// SubscribeNotify replaces any existing listener on handle before
// registering the new one, so the handle→listener map stays
// idempotent under repeated subscriptions.
func (s *Session) SubscribeNotify(ctx context.Context, handle uint16, handler func(data []byte)) error {
	s.mu.Lock()
	if unsub, ok := s.notifyListeners[handle]; ok {
		unsub()
		delete(s.notifyListeners, handle)
	}
	s.mu.Unlock()

	if err := s.link.SubscribeNotify(ctx, s.key.Address, handle); err != nil {
		return err
	}

	unsub := s.bus.SubscribeNotify(s.key.ProxyHost, s.key.Address, func(n *events.NotifyEvent) {
		if n.Handle == handle {
			handler(n.Data)
		}
	})

	s.mu.Lock()
	s.notifyListeners[handle] = unsub
	s.mu.Unlock()
	return nil
}

// SubscribeAdvertisement deduplicates per (proxy, address): a second
// call replaces the first listener rather than stacking them.
func (s *Session) SubscribeAdvertisement(handler func(name string, rssi int)) {
	s.mu.Lock()
	if s.advertisementUnsub != nil {
		s.advertisementUnsub()
	}
	s.mu.Unlock()

	unsub := s.link.SubscribeAdvertisements(func(name string, address uint64, rssi int) {
		if address == s.key.Address {
			handler(name, rssi)
		}
	})

	s.mu.Lock()
	s.advertisementUnsub = unsub
	s.mu.Unlock()
}

// Cleanup removes every listener this Session registered.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for handle, unsub := range s.notifyListeners {
		unsub()
		delete(s.notifyListeners, handle)
	}
	if s.advertisementUnsub != nil {
		s.advertisementUnsub()
		s.advertisementUnsub = nil
	}
}
