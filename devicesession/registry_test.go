package devicesession

import (
	"sync"
	"testing"

	"github.com/smartbedmqtt/ble-bridge/types"
)

func TestRegistryConnectSharesInFlightFuture(t *testing.T) {
	r := NewRegistry()
	key := types.DeviceKey{ProxyHost: "proxy-1", Address: 1}

	var calls int
	var callsMu sync.Mutex
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]ConnectOutcome, 2)
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Connect(key, func() (ConnectOutcome, error) {
				callsMu.Lock()
				calls++
				callsMu.Unlock()
				<-release
				return ConnectOutcome{Connected: true, MTU: 185}, nil
			})
		}(i)
	}

	close(release)
	wg.Wait()

	callsMu.Lock()
	defer callsMu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one underlying connect call, got %d", calls)
	}
	if !results[0].Connected || !results[1].Connected {
		t.Fatalf("expected both callers to observe the shared result, got %+v", results)
	}
}

func TestRegistryConnectRunsAgainAfterCompletion(t *testing.T) {
	r := NewRegistry()
	key := types.DeviceKey{ProxyHost: "proxy-1", Address: 1}

	var calls int
	fn := func() (ConnectOutcome, error) {
		calls++
		return ConnectOutcome{Connected: true}, nil
	}

	if _, err := r.Connect(key, fn); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	if _, err := r.Connect(key, fn); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls across sequential connects, got %d", calls)
	}
}

func TestRegistryRegisterCleansUpPriorSession(t *testing.T) {
	r := NewRegistry()
	key := types.DeviceKey{ProxyHost: "proxy-1", Address: 1}

	first := &Session{notifyListeners: make(map[uint16]func())}
	cleaned := false
	first.notifyListeners[1] = func() { cleaned = true }

	r.Register(key, first)
	second := &Session{notifyListeners: make(map[uint16]func())}
	r.Register(key, second)

	if !cleaned {
		t.Fatalf("expected prior session to be cleaned up on Register")
	}
}
