package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueuePreservesFIFOOrdering(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var mu sync.Mutex
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		err := q.Submit(&Command{
			Data:          []byte{byte(i)},
			StayConnected: true,
			Write: func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			},
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order 0..4, got %v", order)
		}
	}
}

func TestQueueRetriesTransientFailureOnce(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var writeAttempts, disconnects, reconnects int

	err := q.Submit(&Command{
		Data:          []byte("retry"),
		StayConnected: true,
		Write: func(ctx context.Context) error {
			writeAttempts++
			if writeAttempts == 1 {
				return errors.New("device not connected")
			}
			return nil
		},
		Disconnect: func(ctx context.Context) error {
			disconnects++
			return nil
		},
		Reconnect: func(ctx context.Context) error {
			reconnects++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if writeAttempts != 2 {
		t.Fatalf("expected exactly 2 write attempts, got %d", writeAttempts)
	}
	if disconnects != 1 || reconnects != 1 {
		t.Fatalf("expected one disconnect and one reconnect, got disconnects=%d reconnects=%d", disconnects, reconnects)
	}
}

func TestQueueSurfacesNonTransientFailureImmediately(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var writeAttempts int
	err := q.Submit(&Command{
		Data:          []byte("bad"),
		StayConnected: true,
		Write: func(ctx context.Context) error {
			writeAttempts++
			return errors.New("invalid argument")
		},
	})
	if err == nil {
		t.Fatalf("expected error to surface")
	}
	if writeAttempts != 1 {
		t.Fatalf("expected no retry for non-transient error, got %d attempts", writeAttempts)
	}
}

func TestQueueCoalescesMatchingRepeatingCommand(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var mu sync.Mutex
	var ticks int
	data := []byte("blink")

	err := q.Submit(&Command{
		Data:          data,
		Count:         3,
		Interval:      20 * time.Millisecond,
		StayConnected: true,
		Write: func(ctx context.Context) error {
			mu.Lock()
			ticks++
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("initial submit: %v", err)
	}

	// Extend the pending repeat with an identical command before it
	// drains; this should add to the remaining count rather than
	// starting a second independent timer.
	if err := q.Submit(&Command{Data: data, Count: 2}); err != nil {
		t.Fatalf("coalescing submit: %v", err)
	}

	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// 1 initial write + (3-1+2) extended repeat ticks = 5 total.
	if ticks != 5 {
		t.Fatalf("expected 5 total writes after coalescing, got %d", ticks)
	}
}

func TestQueueReplacesPendingRepeatOnDifferentData(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var mu sync.Mutex
	var firstTicks, secondTicks int

	if err := q.Submit(&Command{
		Data:          []byte("a"),
		Count:         5,
		Interval:      20 * time.Millisecond,
		StayConnected: true,
		Write: func(ctx context.Context) error {
			mu.Lock()
			firstTicks++
			mu.Unlock()
			return nil
		},
	}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if err := q.Submit(&Command{
		Data:          []byte("b"),
		Count:         1,
		StayConnected: true,
		Write: func(ctx context.Context) error {
			mu.Lock()
			secondTicks++
			mu.Unlock()
			return nil
		},
	}); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if firstTicks != 1 {
		t.Fatalf("expected the replaced repeat to stop after its initial write, got %d", firstTicks)
	}
	if secondTicks != 1 {
		t.Fatalf("expected the replacement command to run once, got %d", secondTicks)
	}
}

func TestQueueArmsIdleDisconnectWhenNotStayConnected(t *testing.T) {
	origDelay := idleDisconnectDelay
	t.Cleanup(func() { setIdleDisconnectDelayForTest(origDelay) })
	setIdleDisconnectDelayForTest(30 * time.Millisecond)

	q := NewQueue()
	defer q.Close()

	disconnected := make(chan struct{}, 1)
	err := q.Submit(&Command{
		Data: []byte("x"),
		Write: func(ctx context.Context) error {
			return nil
		},
		Disconnect: func(ctx context.Context) error {
			select {
			case disconnected <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-disconnected:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("expected idle disconnect to fire")
	}
}

func TestQueueClearsIdleDisconnectOnNextWrite(t *testing.T) {
	origDelay := idleDisconnectDelay
	t.Cleanup(func() { setIdleDisconnectDelayForTest(origDelay) })
	setIdleDisconnectDelayForTest(60 * time.Millisecond)

	q := NewQueue()
	defer q.Close()

	var disconnects int
	var mu sync.Mutex
	cmd := func() *Command {
		return &Command{
			Data: []byte("x"),
			Write: func(ctx context.Context) error {
				return nil
			},
			Disconnect: func(ctx context.Context) error {
				mu.Lock()
				disconnects++
				mu.Unlock()
				return nil
			},
		}
	}

	if err := q.Submit(cmd()); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := q.Submit(cmd()); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if disconnects != 1 {
		t.Fatalf("expected exactly 1 idle disconnect across 2 writes, got %d", disconnects)
	}
}
