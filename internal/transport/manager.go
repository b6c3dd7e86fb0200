package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/henriqu3-99/Lehgo/internal/observability"
)

// HandlerFunc consumes messages for one subscribed topic. Dispatch is keyed
// by topic name, so handlers never re-check topic identity.
type HandlerFunc func(msg Message)

// Manager owns the single transport connection of a process. Sessions get
// it injected rather than reaching for ambient global state, so tests can
// substitute a fake transport.
//
// Invariants: at most one underlying connection exists; Connect is
// idempotent; transport errors never escape as errors, only as status
// transitions.
type Manager struct {
	tr  Transport
	log *slog.Logger

	mu        sync.Mutex
	status    Status
	started   bool
	listeners map[int]func(Status)
	handlers  map[string]map[int]HandlerFunc
	nextID    int
	done      chan struct{}
}

func NewManager(tr Transport, log *slog.Logger) *Manager {
	return &Manager{
		tr:        tr,
		log:       log,
		status:    Disconnected,
		listeners: make(map[int]func(Status)),
		handlers:  make(map[string]map[int]HandlerFunc),
		done:      make(chan struct{}),
	}
}

// Connect establishes the transport connection if none exists. Calling it
// while already connected or connecting is a no-op. Listeners are notified
// at each transition; the Connected notification arrives once the transport
// reports the link up.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.setStatusLocked(Connecting)
	m.mu.Unlock()

	if err := m.tr.Connect(ctx); err != nil {
		m.mu.Lock()
		m.started = false
		m.setStatusLocked(Disconnected)
		m.mu.Unlock()
		return err
	}

	go m.pump()
	return nil
}

// pump moves transport events into manager state until Close.
func (m *Manager) pump() {
	msgs := m.tr.Messages()
	events := m.tr.Events()
	for {
		select {
		case <-m.done:
			return
		case st, ok := <-events:
			if !ok {
				return
			}
			m.onTransportStatus(st)
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			m.dispatch(msg)
		}
	}
}

func (m *Manager) onTransportStatus(st Status) {
	m.mu.Lock()
	if st == Connected {
		m.setStatusLocked(Connected)
		topics := make([]string, 0, len(m.handlers))
		for t := range m.handlers {
			topics = append(topics, t)
		}
		m.mu.Unlock()
		// The broker forgets subscriptions across a drop; restore them.
		for _, t := range topics {
			if err := m.tr.Subscribe(t); err != nil {
				m.log.Warn("resubscribe failed", "topic", t, "error", err)
			}
		}
		return
	}
	m.setStatusLocked(Disconnected)
	m.mu.Unlock()
}

func (m *Manager) dispatch(msg Message) {
	m.mu.Lock()
	hs := make([]HandlerFunc, 0, len(m.handlers[msg.Topic]))
	for _, h := range m.handlers[msg.Topic] {
		hs = append(hs, h)
	}
	m.mu.Unlock()
	for _, h := range hs {
		h(msg)
	}
}

// setStatusLocked updates status and notifies listeners synchronously.
// Callers hold m.mu; listener callbacks must not call back into the
// Manager from the same goroutine.
func (m *Manager) setStatusLocked(st Status) {
	if m.status == st {
		return
	}
	m.status = st
	if st == Connected {
		observability.ConnectionUp.Set(1)
	} else {
		observability.ConnectionUp.Set(0)
	}
	for _, fn := range m.listeners {
		fn(st)
	}
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// AddStatusListener registers fn, invokes it immediately with the current
// status, and returns a handle that removes exactly that listener.
func (m *Manager) AddStatusListener(fn func(Status)) (remove func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	st := m.status
	m.mu.Unlock()

	fn(st)
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Publish sends payload to topic. While not Connected the message is
// dropped, not queued: the protocol has no outbox or retry semantics, so
// the drop is logged and counted but never surfaced to the caller.
func (m *Manager) Publish(topic string, payload []byte) {
	m.mu.Lock()
	st := m.status
	m.mu.Unlock()
	if st != Connected {
		observability.PublishesDropped.Inc()
		m.log.Warn("publish dropped while disconnected", "topic", topic)
		return
	}
	if err := m.tr.Publish(topic, payload); err != nil {
		m.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

// Subscribe registers h for topic and returns a handle that removes it.
// The underlying topic subscription is created on the first handler and
// torn down when the last handler is removed; repeated subscribe calls for
// the same topic are therefore idempotent at the transport level.
func (m *Manager) Subscribe(topic string, h HandlerFunc) (remove func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	set, ok := m.handlers[topic]
	if !ok {
		set = make(map[int]HandlerFunc)
		m.handlers[topic] = set
	}
	set[id] = h
	first := len(set) == 1
	m.mu.Unlock()

	if first {
		if err := m.tr.Subscribe(topic); err != nil {
			m.log.Warn("subscribe failed", "topic", topic, "error", err)
		}
	}
	return func() {
		m.mu.Lock()
		set := m.handlers[topic]
		delete(set, id)
		last := len(set) == 0
		if last {
			delete(m.handlers, topic)
		}
		m.mu.Unlock()
		if last {
			if err := m.tr.Unsubscribe(topic); err != nil {
				m.log.Warn("unsubscribe failed", "topic", topic, "error", err)
			}
		}
	}
}

// Close tears the connection down. The manager is not reusable afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	select {
	case <-m.done:
		m.mu.Unlock()
		return nil
	default:
	}
	close(m.done)
	m.setStatusLocked(Disconnected)
	m.mu.Unlock()
	return m.tr.Close()
}
