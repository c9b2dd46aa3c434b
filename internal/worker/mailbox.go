package worker

import "sync"

// mailbox is an unbounded FIFO of commands. Pushing never blocks, so callers
// hand off work without waiting for the actor.
type mailbox struct {
	mu     sync.Mutex
	queue  []command
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(cmd command) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, cmd)
	m.mu.Unlock()
	m.wake()
	return true
}

// take returns everything queued so far and whether the mailbox is closed.
func (m *mailbox) take() ([]command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.queue
	m.queue = nil
	return batch, m.closed
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}
