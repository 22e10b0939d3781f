package mq

import (
	"context"
	"strconv"
	"sync"
)

// Memory is an in-process Broker. Publish delivers synchronously to every
// active subscriber of the topic and keeps a copy for Messages.
type Memory struct {
	mu          sync.Mutex
	seq         int
	published   map[string][]Message
	subscribers map[string][]Handler
	closed      bool
}

func NewMemory() *Memory {
	return &Memory{
		published:   make(map[string][]Message),
		subscribers: make(map[string][]Handler),
	}
}

func (m *Memory) Publish(ctx context.Context, topic string, msg Message) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	m.seq++
	if msg.ID == "" {
		msg.ID = strconv.Itoa(m.seq)
	}
	m.published[topic] = append(m.published[topic], msg)
	handlers := append([]Handler(nil), m.subscribers[topic]...)
	m.mu.Unlock()

	for _, handler := range handlers {
		_ = handler(ctx, msg)
	}
	return msg.ID, nil
}

// Subscribe registers handler and blocks until ctx is done.
func (m *Memory) Subscribe(ctx context.Context, topic string, handler Handler) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.subscribers[topic] = append(m.subscribers[topic], handler)
	index := len(m.subscribers[topic]) - 1
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	m.subscribers[topic][index] = func(context.Context, Message) error { return nil }
	m.mu.Unlock()
	return ctx.Err()
}

// Messages returns what has been published to topic so far.
func (m *Memory) Messages(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.published[topic]...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
