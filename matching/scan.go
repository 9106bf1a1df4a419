package matching

import (
	"context"
	"sync"
	"time"

	"github.com/smartbedmqtt/ble-bridge/proxyapi"
	"github.com/smartbedmqtt/ble-bridge/types"
)

// ScanResult is one deduplicated advertisement observed during a scan
// cycle, annotated with the proxy it arrived on.
type ScanResult struct {
	Name      string
	ProxyHost string
	Address   uint64
	RSSI      int
}

// Scan subscribes to advertisements on every link for up to window,
// deduplicating by address. If the window elapses with zero
// advertisements delivered across every link, it performs one
// self-heal reconnect of every link and restarts the scan once; this
// catches the silent-subscription failure class where the socket is
// up but no data flows (spec.md §4.3).
func Scan(ctx context.Context, links []*proxyapi.Link, window time.Duration, reconnect func(*proxyapi.Link) (*proxyapi.Link, error)) ([]ScanResult, error) {
	results, err := scanOnce(ctx, links, window)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results, nil
	}

	healed := make([]*proxyapi.Link, len(links))
	copy(healed, links)
	for i, link := range healed {
		if reconnect == nil {
			break
		}
		newLink, rerr := reconnect(link)
		if rerr != nil {
			continue
		}
		healed[i] = newLink
	}

	return scanOnce(ctx, healed, window)
}

func scanOnce(ctx context.Context, links []*proxyapi.Link, window time.Duration) ([]ScanResult, error) {
	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[uint64]ScanResult)
	)

	var unsubs []func()
	for _, link := range links {
		link := link
		unsub := link.SubscribeAdvertisements(func(name string, address uint64, rssi int) {
			displayName := name
			if displayName == "" {
				displayName = types.FormatMAC(address)
			}
			mu.Lock()
			if existing, ok := seen[address]; !ok || rssi > existing.RSSI {
				seen[address] = ScanResult{Name: displayName, ProxyHost: link.Host(), Address: address, RSSI: rssi}
			}
			mu.Unlock()
		})
		unsubs = append(unsubs, unsub)
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	<-scanCtx.Done()

	mu.Lock()
	defer mu.Unlock()
	out := make([]ScanResult, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	return out, nil
}
