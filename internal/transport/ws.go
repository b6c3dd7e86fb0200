package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is the envelope exchanged with the websocket hub. Ops: "sub",
// "unsub", "pub". Payloads are JSON and travel verbatim.
type Frame struct {
	Op      string          `json:"op"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WS connects to the gateway's /ws hub and speaks the Frame protocol.
// After a drop it redials on a fixed interval; the hub keeps no state for
// dead connections, so the Manager's resubscription restores topics.
type WS struct {
	url    string
	msgs   chan Message
	events chan Status

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

const wsRetryInterval = time.Second

func NewWS(url string) *WS {
	return &WS{
		url:    url,
		msgs:   make(chan Message, 256),
		events: make(chan Status, 8),
		done:   make(chan struct{}),
	}
}

func (t *WS) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.emit(Connected)
	go t.readLoop(conn)
	return nil
}

func (t *WS) readLoop(conn *websocket.Conn) {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.emit(Disconnected)
			t.redial()
			return
		}
		if f.Op != "pub" {
			continue
		}
		select {
		case t.msgs <- Message{Topic: f.Topic, Payload: f.Payload}:
		default:
			// slow consumer, drop
		}
	}
}

func (t *WS) redial() {
	for {
		select {
		case <-t.done:
			return
		case <-time.After(wsRetryInterval):
		}
		conn, _, err := websocket.DefaultDialer.Dial(t.url, nil)
		if err != nil {
			continue
		}
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.conn = conn
		t.mu.Unlock()
		t.emit(Connected)
		go t.readLoop(conn)
		return
	}
}

func (t *WS) emit(st Status) {
	select {
	case t.events <- st:
	default:
	}
}

func (t *WS) write(f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return errNotConnected
	}
	return t.conn.WriteJSON(f)
}

func (t *WS) Publish(topic string, payload []byte) error {
	return t.write(Frame{Op: "pub", Topic: topic, Payload: payload})
}

func (t *WS) Subscribe(topic string) error {
	return t.write(Frame{Op: "sub", Topic: topic})
}

func (t *WS) Unsubscribe(topic string) error {
	return t.write(Frame{Op: "unsub", Topic: topic})
}

func (t *WS) Messages() <-chan Message { return t.msgs }
func (t *WS) Events() <-chan Status    { return t.events }

func (t *WS) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	close(t.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}
