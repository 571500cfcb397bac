package broker

import (
	"context"
	"sync"

	"github.com/briefloop/researchcore/core/message"
)

// InMemory is a Broker backed by a plain slice, used by unit and scenario
// tests that need real dedup/ack/nack semantics without a Redis dependency.
// It honors message.HeaderDedupKey exactly like the Redis broker: Produce is
// a no-op for a key that is already queued or currently in flight.
type InMemory struct {
	mu       sync.Mutex
	queue    []queued
	inFlight map[message.ID]queued
	dedup    map[string]struct{}
	nextID   int
}

type queued struct {
	id  message.ID
	msg *message.Msg
}

func NewInMemory() *InMemory {
	return &InMemory{
		inFlight: make(map[message.ID]queued),
		dedup:    make(map[string]struct{}),
	}
}

func (m *InMemory) Produce(_ context.Context, msgs ...*message.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		if key, ok := msg.DedupKey(); ok {
			if _, exists := m.dedup[key]; exists {
				continue
			}
			m.dedup[key] = struct{}{}
		}
		m.nextID++
		m.queue = append(m.queue, queued{id: m.nextID, msg: msg})
	}
	return nil
}

func (m *InMemory) Consume(_ context.Context) (*message.Msg, message.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, nil, nil
	}
	q := m.queue[0]
	m.queue = m.queue[1:]
	m.inFlight[q.id] = q
	return q.msg, q.id, nil
}

func (m *InMemory) Ack(_ context.Context, id message.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.inFlight[id]
	if ok {
		if key, ok2 := q.msg.DedupKey(); ok2 {
			delete(m.dedup, key)
		}
	}
	delete(m.inFlight, id)
	return nil
}

func (m *InMemory) Nack(_ context.Context, id message.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.inFlight[id]
	if !ok {
		return nil
	}
	delete(m.inFlight, id)
	m.queue = append(m.queue, q)
	return nil
}

func (m *InMemory) Close() error { return nil }

// Len reports the number of messages waiting to be consumed, for assertions
// in scheduler-idempotence tests.
func (m *InMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
