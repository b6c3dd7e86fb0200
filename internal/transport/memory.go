package transport

import (
	"context"
	"errors"
	"sync"
)

// Broker is an in-process topic fan-out used by tests and single-process
// demos. Delivery is best-effort: slow consumers drop messages rather than
// block publishers, matching the at-least-once, no-flow-control transport
// the protocol assumes.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*Memory]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*Memory]struct{})}
}

func (b *Broker) publish(topic string, payload []byte) {
	b.mu.RLock()
	members := make([]*Memory, 0, len(b.subs[topic]))
	for m := range b.subs[topic] {
		members = append(members, m)
	}
	b.mu.RUnlock()
	for _, m := range members {
		m.deliver(Message{Topic: topic, Payload: payload})
	}
}

// Publish lets server-side code broadcast without holding a client.
func (b *Broker) Publish(topic string, payload []byte) {
	b.publish(topic, payload)
}

func (b *Broker) add(topic string, m *Memory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[topic]
	if set == nil {
		set = make(map[*Memory]struct{})
		b.subs[topic] = set
	}
	set[m] = struct{}{}
}

func (b *Broker) remove(topic string, m *Memory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[topic]
	delete(set, m)
	if len(set) == 0 {
		delete(b.subs, topic)
	}
}

func (b *Broker) removeAll(m *Memory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, set := range b.subs {
		delete(set, m)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
}

var errNotConnected = errors.New("transport: not connected")

// Memory is one client endpoint of a Broker. Drop and Restore simulate
// link failures so tests can exercise status flaps and resubscription.
type Memory struct {
	broker *Broker
	msgs   chan Message
	events chan Status

	mu        sync.Mutex
	connected bool
	closed    bool
	subs      map[string]struct{}
}

// NewClient creates a disconnected endpoint on the broker.
func (b *Broker) NewClient() *Memory {
	return &Memory{
		broker: b,
		msgs:   make(chan Message, 64),
		events: make(chan Status, 8),
		subs:   make(map[string]struct{}),
	}
}

func (m *Memory) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("transport: closed")
	}
	m.connected = true
	m.events <- Connected
	m.mu.Unlock()
	return nil
}

func (m *Memory) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	ok := m.connected
	m.mu.Unlock()
	if !ok {
		return errNotConnected
	}
	m.broker.publish(topic, payload)
	return nil
}

func (m *Memory) Subscribe(topic string) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return errNotConnected
	}
	m.subs[topic] = struct{}{}
	m.mu.Unlock()
	m.broker.add(topic, m)
	return nil
}

func (m *Memory) Unsubscribe(topic string) error {
	m.mu.Lock()
	delete(m.subs, topic)
	m.mu.Unlock()
	m.broker.remove(topic, m)
	return nil
}

func (m *Memory) Messages() <-chan Message { return m.msgs }
func (m *Memory) Events() <-chan Status    { return m.events }

func (m *Memory) deliver(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected || m.closed {
		return
	}
	select {
	case m.msgs <- msg:
	default:
		// slow consumer, drop
	}
}

// Drop simulates a connection loss. Broker-side subscriptions are lost,
// as with an MQTT clean session.
func (m *Memory) Drop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.connected = false
	m.subs = make(map[string]struct{})
	m.events <- Disconnected
	m.mu.Unlock()
	m.broker.removeAll(m)
}

// Restore simulates the transport's automatic reconnect completing.
func (m *Memory) Restore() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.connected = true
	m.events <- Connected
	m.mu.Unlock()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.events)
	close(m.msgs)
	m.mu.Unlock()
	m.broker.removeAll(m)
	return nil
}
