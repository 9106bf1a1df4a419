package proxyapi

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartbedmqtt/ble-bridge/events"
	"github.com/smartbedmqtt/ble-bridge/types"
)

// pendingServices accumulates list_services results for one in-flight
// request until the proxy's "done" message for the same address
// arrives.
type pendingServices struct {
	done    chan struct{}
	results []bleServiceResult
}

// Link is one TCP connection to one BLE proxy, implementing the
// Dialing → Authorizing → Ready → Degraded → Closed state machine.
// Safe for concurrent use. DeviceConnect, ListServices, WriteChar,
// ReadChar and SubscribeNotify first pass the readiness gate; DeviceDisconnect, DeviceClearCache,
// SubscribeLogLines and SubscribeAdvertisements do not wait on it.
type Link struct {
	conn   net.Conn
	reader *bufio.Reader
	bus    *events.Bus
	log    *logrus.Entry

	opts *options
	host string

	stateMu   sync.Mutex
	state     LinkState
	readyCond *sync.Cond

	pendingMu  sync.Mutex
	connectWaiters map[uint64]chan bleConnectResponse
	services       map[uint64]*pendingServices

	closeOnce sync.Once
	closeCh   chan struct{}
}

// Open dials host, completes the hello/connect handshake, and blocks
// until the link reaches Ready, a fatal error is observed, or the
// 30s dial timeout (WithDialTimeout) elapses.
func Open(ctx context.Context, proxy types.ProxyConfig, bus *events.Bus, log *logrus.Entry, opts ...Option) (*Link, error) {
	o := defaultOptions()
	if proxy.Password != "" {
		o.password = proxy.Password
	}
	o.expectedName = proxy.ExpectedServerName
	applyOptions(o, opts)

	dialCtx, cancel := context.WithTimeout(ctx, o.dialTimeout)
	defer cancel()

	l := &Link{
		bus:            bus,
		log:            log.WithField("proxy_host", proxy.Host),
		opts:           o,
		host:           proxy.Host,
		state:          StateDialing,
		connectWaiters: make(map[uint64]chan bleConnectResponse),
		services:       make(map[uint64]*pendingServices),
		closeCh:        make(chan struct{}),
	}
	l.readyCond = sync.NewCond(&l.stateMu)

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", proxy.Addr())
	if err != nil {
		return nil, types.NewError(types.KindSocket, "proxyapi: dial", err)
	}
	l.conn = conn
	l.reader = bufio.NewReader(conn)
	l.setState(StateAuthorizing)

	if err := l.handshake(dialCtx); err != nil {
		l.teardown()
		return nil, err
	}

	go l.readLoop()
	l.setState(StateReady)
	go l.reconnectMonitor()
	return l, nil
}

func (l *Link) handshake(ctx context.Context) error {
	if err := writeFrame(l.conn, msgHello, helloRequest{ClientInfo: "smartbedmqtt"}.encode()); err != nil {
		return types.NewError(types.KindSocket, "proxyapi: write hello", err)
	}

	helloResp, err := l.awaitOnce(ctx, msgHelloResponse)
	if err != nil {
		return err
	}
	hello := decodeHelloResponse(helloResp)
	if !hello.BLEProxySupport {
		return types.NewError(types.KindMissingBLEProxyFlags, "proxyapi: proxy does not advertise BLE proxy support", nil)
	}
	if l.opts.expectedName != "" && hello.ServerName != l.opts.expectedName {
		return types.NewError(types.KindNameMismatch,
			fmt.Sprintf("Server name mismatch, expected %s, got %s", l.opts.expectedName, hello.ServerName), nil)
	}

	if err := writeFrame(l.conn, msgConnect, connectRequest{Password: l.opts.password}.encode()); err != nil {
		return types.NewError(types.KindSocket, "proxyapi: write connect", err)
	}
	connResp, err := l.awaitOnce(ctx, msgConnectResponse)
	if err != nil {
		return err
	}
	if decodeConnectResponse(connResp).InvalidPassword {
		return types.NewError(types.KindAuthRejected, "proxyapi: invalid proxy API password", nil)
	}
	return nil
}

// awaitOnce blocks the caller's goroutine (not the read loop) for a
// single expected handshake reply. Only valid before readLoop begins
// dispatching steady-state messages to subscribers, i.e. during Open.
func (l *Link) awaitOnce(ctx context.Context, want messageType) ([]byte, error) {
	type result struct {
		payload []byte
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := readFrame(l.reader)
		if err != nil {
			ch <- result{err: types.NewError(types.KindSocket, "proxyapi: handshake read", err)}
			return
		}
		if f.msgType != want {
			ch <- result{err: types.NewError(types.KindProtocolError, fmt.Sprintf("proxyapi: unexpected message type %d during handshake, want %d", f.msgType, want), nil)}
			return
		}
		ch <- result{payload: f.payload}
	}()

	select {
	case <-ctx.Done():
		return nil, types.NewError(types.KindSocket, "proxyapi: handshake timed out", ctx.Err())
	case r := <-ch:
		return r.payload, r.err
	}
}

// readLoop dispatches every steady-state frame to the event bus or to
// a waiting connect caller. Runs for the lifetime of the connection;
// returns (and degrades the link) on any read error.
func (l *Link) readLoop() {
	for {
		f, err := readFrame(l.reader)
		if err != nil {
			select {
			case <-l.closeCh:
				return
			default:
			}
			l.log.WithError(err).Warn("proxyapi: connection read failed, degrading link")
			l.setState(StateDegraded)
			return
		}
		l.dispatch(f)
	}
}

func (l *Link) dispatch(f frame) {
	switch f.msgType {
	case msgBLEAdvertisement:
		adv := decodeBLEAdvertisement(f.payload)
		if l.bus != nil {
			l.bus.Publish(events.NewAdvertisementEvent(l.host, adv.Name, adv.Address, int(adv.RSSI)))
		}
	case msgBLEConnectResponse:
		resp := decodeBLEConnectResponse(f.payload)
		l.pendingMu.Lock()
		ch, ok := l.connectWaiters[resp.Address]
		l.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
		// Always publish too: asynchronous connect responses that
		// arrive with no waiter present (per spec §4.2) must still
		// update observers' view of the connected flag, but MUST NOT
		// trigger an implicit reconnect.
		if l.bus != nil {
			l.bus.Publish(events.NewConnectResultEvent(l.host, resp.Address, resp.Connected, resp.ErrorCode, resp.MTU))
		}
	case msgBLEDisconnectResult:
		resp := decodeBLEConnectResponse(f.payload)
		if l.bus != nil {
			l.bus.Publish(events.NewDisconnectEvent(l.host, resp.Address, "proxy_reported"))
		}
	case msgBLEServicesResult:
		s := decodeBLEServiceResult(f.payload)
		l.pendingMu.Lock()
		if p, ok := l.services[s.Address]; ok {
			p.results = append(p.results, s)
		}
		l.pendingMu.Unlock()
	case msgBLEServicesDone:
		resp := decodeBLEConnectResponse(f.payload)
		l.pendingMu.Lock()
		if p, ok := l.services[resp.Address]; ok {
			close(p.done)
		}
		l.pendingMu.Unlock()
	case msgBLEReadCharResult:
		// Read results share the notify layout and are published below
		// as a NotifyEvent, which ReadChar picks up through a
		// short-lived bus subscription.
		fallthrough
	case msgBLENotifyData:
		n := decodeBLENotifyData(f.payload)
		if l.bus != nil {
			l.bus.Publish(events.NewNotifyEvent(l.host, n.Address, n.Handle, n.Data))
		}
	case msgLogLine:
		line := decodeLogLine(f.payload)
		if l.bus != nil {
			l.bus.Publish(events.NewProxyLogLineEvent(l.host, line.Line))
		}
	case msgPing:
		_ = writeFrame(l.conn, msgPong, nil)
	}
}

// reconnectMonitor restores the connection after a drop using the
// configured short reconnect interval. Brief drops thus heal
// transparently; callers are protected by the readiness gate rather
// than by this loop succeeding quickly.
func (l *Link) reconnectMonitor() {
	ticker := time.NewTicker(l.opts.reconnectDelay)
	defer ticker.Stop()
	for {
		select {
		case <-l.closeCh:
			return
		case <-ticker.C:
			if l.State() != StateDegraded {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), l.opts.dialTimeout)
			if err := l.redial(ctx); err != nil {
				l.log.WithError(err).Debug("proxyapi: reconnect attempt failed")
			}
			cancel()
		}
	}
}

func (l *Link) redial(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(l.host, portOf(l.conn)))
	if err != nil {
		return err
	}
	l.conn = conn
	l.reader = bufio.NewReader(conn)
	l.setState(StateAuthorizing)
	if err := l.handshake(ctx); err != nil {
		return err
	}
	go l.readLoop()
	l.setState(StateReady)
	return nil
}

func portOf(conn net.Conn) string {
	if conn == nil {
		return "6053"
	}
	_, port, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return "6053"
	}
	return port
}

func (l *Link) setState(s LinkState) {
	l.stateMu.Lock()
	prev := l.state
	l.state = s
	l.stateMu.Unlock()
	l.readyCond.Broadcast()
	if prev != s && l.bus != nil {
		l.bus.Publish(events.NewProxyLinkStateEvent(l.host, s.String()))
	}
}

// Host returns the proxy host this link is connected to.
func (l *Link) Host() string {
	return l.host
}

// State returns the current LinkState.
func (l *Link) State() LinkState {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.state
}

// WaitReady blocks until the link is Ready, or returns ApiNotReady
// once the bound (WithReadyTimeout, default 5s) elapses.
func (l *Link) WaitReady(ctx context.Context) error {
	deadline := time.Now().Add(l.opts.readyTimeout)
	timer := time.AfterFunc(l.opts.readyTimeout, l.readyCond.Broadcast)
	defer timer.Stop()

	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	for l.state != StateReady {
		if l.state == StateClosed {
			return types.NewError(types.KindAPINotReady, "proxyapi: link closed", nil)
		}
		if time.Now().After(deadline) {
			return types.NewError(types.KindAPINotReady, "proxyapi: readiness wait exceeded", nil)
		}
		select {
		case <-ctx.Done():
			return types.NewError(types.KindAPINotReady, "proxyapi: readiness wait canceled", ctx.Err())
		default:
		}
		l.readyCond.Wait()
	}
	return nil
}

// SubscribeAdvertisements registers handler for every advertisement
// seen on this link and returns an unsubscribe func.
func (l *Link) SubscribeAdvertisements(handler func(name string, address uint64, rssi int)) func() {
	return l.bus.SubscribeAdvertisements(l.host, func(adv *events.AdvertisementEvent) {
		handler(adv.Name, adv.Address, adv.RSSI)
	})
}

// SubscribeLogLines registers handler for every line on the proxy's
// own log stream, used by the devicesession connect race to abort
// hopeless connects early.
func (l *Link) SubscribeLogLines(handler func(line string)) (func(), error) {
	if err := writeFrame(l.conn, msgSubscribeLogs, nil); err != nil {
		return nil, types.NewError(types.KindSocket, "proxyapi: subscribe logs", err)
	}
	unsub := l.bus.SubscribeProxyLog(l.host, func(line *events.ProxyLogLineEvent) {
		handler(line.Line)
	})
	return unsub, nil
}

// ConnectResult is the outcome of DeviceConnect.
type ConnectResult struct {
	Connected bool
	ErrorCode uint16
	MTU       uint16
}

// DeviceConnect issues device_connect and waits up to the given
// per-attempt timeout for the matching response.
func (l *Link) DeviceConnect(ctx context.Context, addr uint64, addrType uint32, withoutCache bool) (ConnectResult, error) {
	if err := l.WaitReady(ctx); err != nil {
		return ConnectResult{}, err
	}

	ch := make(chan bleConnectResponse, 1)
	l.pendingMu.Lock()
	l.connectWaiters[addr] = ch
	l.pendingMu.Unlock()
	defer func() {
		l.pendingMu.Lock()
		delete(l.connectWaiters, addr)
		l.pendingMu.Unlock()
	}()

	req := bleConnectRequest{Address: addr, AddressType: addrType, WithoutCache: withoutCache}
	if err := writeFrame(l.conn, msgBLEConnect, req.encode()); err != nil {
		return ConnectResult{}, types.NewError(types.KindSocket, "proxyapi: write device_connect", err)
	}

	select {
	case <-ctx.Done():
		return ConnectResult{}, types.NewError(types.KindBLETimeout, "proxyapi: device_connect timed out", ctx.Err())
	case resp := <-ch:
		return ConnectResult{Connected: resp.Connected, ErrorCode: resp.ErrorCode, MTU: resp.MTU}, nil
	}
}

// DeviceDisconnect issues a best-effort device_disconnect.
func (l *Link) DeviceDisconnect(addr uint64) error {
	if l.conn == nil {
		return nil
	}
	return writeFrame(l.conn, msgBLEDisconnect, bleDisconnectRequest{Address: addr}.encode())
}

// DeviceClearCache issues a best-effort device_clear_cache.
func (l *Link) DeviceClearCache(addr uint64) error {
	if l.conn == nil {
		return nil
	}
	return writeFrame(l.conn, msgBLEClearCache, bleClearCacheRequest{Address: addr}.encode())
}

// GattService is one service+characteristic pair returned by
// ListServices.
type GattService struct {
	ServiceUUID string
	CharUUID    string
	CharHandle  uint16
}

// ListServices issues list_services and blocks until the proxy's
// "done" marker for addr arrives or ctx expires.
func (l *Link) ListServices(ctx context.Context, addr uint64) ([]GattService, error) {
	if err := l.WaitReady(ctx); err != nil {
		return nil, err
	}

	p := &pendingServices{done: make(chan struct{})}
	l.pendingMu.Lock()
	l.services[addr] = p
	l.pendingMu.Unlock()
	defer func() {
		l.pendingMu.Lock()
		delete(l.services, addr)
		l.pendingMu.Unlock()
	}()

	if err := writeFrame(l.conn, msgBLEGetServices, bleGetServicesRequest{Address: addr}.encode()); err != nil {
		return nil, types.NewError(types.KindSocket, "proxyapi: write list_services", err)
	}

	select {
	case <-ctx.Done():
		return nil, types.NewError(types.KindBLETimeout, "proxyapi: list_services timeout (BluetoothGATTGetServicesDoneResponse not observed)", ctx.Err())
	case <-p.done:
	}

	out := make([]GattService, 0, len(p.results))
	for _, r := range p.results {
		out = append(out, GattService{ServiceUUID: r.ServiceUUID, CharUUID: r.CharUUID, CharHandle: r.CharHandle})
	}
	return out, nil
}

// WriteChar writes bytes to handle. withResponse is passed to the proxy
// in the request; WriteChar returns once the request is written and
// does not wait for an acknowledgement.
func (l *Link) WriteChar(ctx context.Context, addr uint64, handle uint16, data []byte, withResponse bool) error {
	if err := l.WaitReady(ctx); err != nil {
		return err
	}
	req := bleWriteCharRequest{Address: addr, Handle: handle, Data: data, WithResponse: withResponse}
	if err := writeFrame(l.conn, msgBLEWriteChar, req.encode()); err != nil {
		return types.NewError(types.KindSocket, "proxyapi: write_char", err)
	}
	return nil
}

// ReadChar reads handle's current value.
func (l *Link) ReadChar(ctx context.Context, addr uint64, handle uint16) ([]byte, error) {
	if err := l.WaitReady(ctx); err != nil {
		return nil, err
	}

	resultCh := make(chan bleReadCharResult, 1)
	unsub := l.bus.SubscribeNotify(l.host, addr, func(n *events.NotifyEvent) {
		if n.Handle == handle {
			select {
			case resultCh <- bleReadCharResult{Address: addr, Handle: handle, Data: n.Data}:
			default:
			}
		}
	})
	defer unsub()

	req := bleReadCharRequest{Address: addr, Handle: handle}
	if err := writeFrame(l.conn, msgBLEReadChar, req.encode()); err != nil {
		return nil, types.NewError(types.KindSocket, "proxyapi: read_char", err)
	}

	select {
	case <-ctx.Done():
		return nil, types.NewError(types.KindBLETimeout, "proxyapi: read_char timed out", ctx.Err())
	case res := <-resultCh:
		return res.Data, nil
	}
}

// SubscribeNotify enables notifications on handle; incoming data is
// published as a NotifyEvent on the bus, filterable by address+handle.
func (l *Link) SubscribeNotify(ctx context.Context, addr uint64, handle uint16) error {
	if err := l.WaitReady(ctx); err != nil {
		return err
	}
	req := bleSubscribeNotifyRequest{Address: addr, Handle: handle}
	if err := writeFrame(l.conn, msgBLESubscribeNotify, req.encode()); err != nil {
		return types.NewError(types.KindSocket, "proxyapi: subscribe_notify", err)
	}
	return nil
}

// ParseNameMismatch extracts the reported server name from a "Server
// name mismatch, expected X, got Y" error message, enabling the outer
// retry layer to correct WithExpectedName for the next Open.
func ParseNameMismatch(msg string) (got string, ok bool) {
	const marker = ", got "
	idx := strings.Index(msg, marker)
	if idx < 0 || !strings.Contains(msg, "Server name mismatch") {
		return "", false
	}
	return strings.TrimSpace(msg[idx+len(marker):]), true
}

func (l *Link) teardown() {
	if l.conn != nil {
		_ = l.conn.Close()
	}
	l.pendingMu.Lock()
	l.connectWaiters = make(map[uint64]chan bleConnectResponse)
	l.services = make(map[uint64]*pendingServices)
	l.pendingMu.Unlock()
}

// Close tears down the socket and marks the link Closed. Cleanup
// discipline: a link that fails to authorize is torn down by Open
// itself (Open returns no link), and any link being disposed by the
// supervisor's outer loop must go through Close, so the proxy's
// single-subscriber slot is released before the next attempt.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closeCh)
		l.teardown()
		l.setState(StateClosed)
	})
	return err
}
