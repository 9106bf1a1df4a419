package pipeline

import "sync"

// Manager owns one Queue per controller key, creating queues lazily
// and tearing them all down together on Close.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{queues: make(map[string]*Queue)}
}

// Queue returns the Queue for controllerKey, creating it on first use.
func (m *Manager) Queue(controllerKey string) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[controllerKey]; ok {
		return q
	}
	q := NewQueue()
	m.queues[controllerKey] = q
	return q
}

// Submit is shorthand for Queue(controllerKey).Submit(cmd).
func (m *Manager) Submit(controllerKey string, cmd *Command) error {
	return m.Queue(controllerKey).Submit(cmd)
}

// Remove closes and forgets the queue for controllerKey, if any.
func (m *Manager) Remove(controllerKey string) {
	m.mu.Lock()
	q, ok := m.queues[controllerKey]
	delete(m.queues, controllerKey)
	m.mu.Unlock()
	if ok {
		q.Close()
	}
}

// Close tears down every queue the Manager owns.
func (m *Manager) Close() {
	m.mu.Lock()
	queues := m.queues
	m.queues = make(map[string]*Queue)
	m.mu.Unlock()
	for _, q := range queues {
		q.Close()
	}
}
