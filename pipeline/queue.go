package pipeline

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// Command is one unit of work submitted to a controller's Queue. A
// Command with Count > 1 is a repeating command: Write fires Count
// times, Interval apart.
type Command struct {
	Write         func(ctx context.Context) error
	Reconnect     func(ctx context.Context) error
	Disconnect    func(ctx context.Context) error
	Data          []byte
	Count         int
	Interval      time.Duration
	StayConnected bool
}

// idleDisconnectDelay is the duration after which a queue with
// StayConnected=false disconnects following the last successful write.
// It is a var (not a const) so tests can shrink it instead of waiting
// out the real 60s window.
var idleDisconnectDelay = 60 * time.Second

// setIdleDisconnectDelayForTest overrides idleDisconnectDelay; it is
// exported only to package-internal tests via queue_test.go.
func setIdleDisconnectDelayForTest(d time.Duration) {
	idleDisconnectDelay = d
}

// transientRetryPause is the pause between forcing a disconnect and
// reconnecting once to retry a transient write failure.
const transientRetryPause = 300 * time.Millisecond

type submission struct {
	cmd      *Command
	resultCh chan error
}

type pendingRepeat struct {
	timer     *time.Timer
	write     func(ctx context.Context) error
	data      []byte
	remaining int
	interval  time.Duration
}

// Queue is the strict-FIFO command queue for one controller. Every
// exported operation is routed through a single goroutine so ordering
// and coalescing decisions never race each other.
type Queue struct {
	submitCh chan submission
	closeCh  chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending *pendingRepeat
	idle    *time.Timer
}

// NewQueue starts a Queue's processing goroutine.
func NewQueue() *Queue {
	q := &Queue{
		submitCh: make(chan submission),
		closeCh:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues cmd and blocks until its first write (including the
// single transient-error retry, if one is taken) has completed — the
// prior entry must fully complete first. It returns the outcome of that
// first write only; subsequent repeat ticks run in the background.
func (q *Queue) Submit(cmd *Command) error {
	resultCh := make(chan error, 1)
	select {
	case q.submitCh <- submission{cmd: cmd, resultCh: resultCh}:
	case <-q.closeCh:
		return context.Canceled
	}
	return <-resultCh
}

func (q *Queue) run() {
	for {
		select {
		case sub := <-q.submitCh:
			q.handle(sub)
		case <-q.closeCh:
			return
		}
	}
}

func (q *Queue) handle(sub submission) {
	cmd := sub.cmd

	q.mu.Lock()
	if q.pending != nil && bytes.Equal(q.pending.data, cmd.Data) {
		q.pending.remaining += cmd.Count
		q.mu.Unlock()
		sub.resultCh <- nil
		return
	}
	if q.pending != nil {
		q.pending.timer.Stop()
		q.pending = nil
	}
	q.mu.Unlock()

	err := q.executeWithRetry(cmd)
	sub.resultCh <- err
	if err != nil {
		return
	}

	q.armIdleDisconnect(cmd)

	if cmd.Count > 1 {
		q.mu.Lock()
		q.pending = &pendingRepeat{data: cmd.Data, remaining: cmd.Count - 1, interval: cmd.Interval, write: cmd.Write}
		q.scheduleNextTickLocked(cmd.Interval)
		q.mu.Unlock()
	}
}

// scheduleNextTickLocked must be called with q.mu held.
func (q *Queue) scheduleNextTickLocked(interval time.Duration) {
	q.pending.timer = time.AfterFunc(interval, q.fireTick)
}

func (q *Queue) fireTick() {
	q.mu.Lock()
	p := q.pending
	if p == nil || p.remaining <= 0 {
		q.pending = nil
		q.mu.Unlock()
		return
	}
	p.remaining--
	remaining := p.remaining
	write := p.write
	interval := p.interval
	q.mu.Unlock()

	_ = write(context.Background())

	q.mu.Lock()
	if remaining <= 0 {
		q.pending = nil
		q.mu.Unlock()
		return
	}
	if q.pending == p {
		q.scheduleNextTickLocked(interval)
	}
	q.mu.Unlock()
}

// executeWithRetry runs cmd.Write, retrying once per spec.md §4.4 on
// a transient failure: force disconnect, sleep 300ms, reconnect once,
// retry the write once. A non-transient error surfaces immediately.
func (q *Queue) executeWithRetry(cmd *Command) error {
	err := cmd.Write(context.Background())
	if err == nil {
		return nil
	}
	if !IsTransientWriteError(err) {
		return err
	}

	if cmd.Disconnect != nil {
		_ = cmd.Disconnect(context.Background())
	}
	time.Sleep(transientRetryPause)
	if cmd.Reconnect != nil {
		if rerr := cmd.Reconnect(context.Background()); rerr != nil {
			return rerr
		}
	}
	return cmd.Write(context.Background())
}

func (q *Queue) armIdleDisconnect(cmd *Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.idle != nil {
		q.idle.Stop()
		q.idle = nil
	}
	if cmd.StayConnected || cmd.Disconnect == nil {
		return
	}
	disconnect := cmd.Disconnect
	q.idle = time.AfterFunc(idleDisconnectDelay, func() {
		_ = disconnect(context.Background())
	})
}

// Close stops the queue's processing goroutine and any pending
// repeat/idle timers.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closeCh)
		q.mu.Lock()
		if q.pending != nil {
			q.pending.timer.Stop()
		}
		if q.idle != nil {
			q.idle.Stop()
		}
		q.mu.Unlock()
	})
}
