package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/henriqu3-99/Lehgo/internal/transport"
)

// Hub is the gateway's built-in broker. Clients connect over websocket and
// exchange transport.Frame envelopes: "sub"/"unsub" manage topic
// subscriptions, "pub" fans the payload out to every subscriber of the
// topic, the sender included. Server handlers publish through the same
// fan-out path.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	subs  map[string]map[*hubClient]struct{}
	conns map[*hubClient]struct{}
}

type hubClient struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	topics map[string]struct{}
}

func (c *hubClient) send(f transport.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		subs:  make(map[string]map[*hubClient]struct{}),
		conns: make(map[*hubClient]struct{}),
	}
}

var upgrader = websocket.Upgrader{
	// the mobile clients connect from file:// and app origins
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleWS upgrades the connection and serves frames until the peer drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	c := &hubClient{conn: conn, topics: make(map[string]struct{})}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	go h.readLoop(c)
}

func (h *Hub) readLoop(c *hubClient) {
	defer h.drop(c)
	for {
		var f transport.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Op {
		case "sub":
			h.subscribe(c, f.Topic)
		case "unsub":
			h.unsubscribe(c, f.Topic)
		case "pub":
			h.Publish(f.Topic, f.Payload)
		default:
			h.log.Debug("hub: unknown op", "op", f.Op)
		}
	}
}

func (h *Hub) subscribe(c *hubClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[topic]
	if !ok {
		set = make(map[*hubClient]struct{})
		h.subs[topic] = set
	}
	set[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

func (h *Hub) unsubscribe(c *hubClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, topic)
		}
	}
	delete(c.topics, topic)
}

func (h *Hub) drop(c *hubClient) {
	h.mu.Lock()
	for topic := range c.topics {
		if set, ok := h.subs[topic]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.subs, topic)
			}
		}
	}
	delete(h.conns, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Publish fans payload out to every current subscriber of topic. Slow or
// dead peers are dropped on write error; there is no retained state.
func (h *Hub) Publish(topic string, payload []byte) error {
	h.mu.RLock()
	targets := make([]*hubClient, 0, len(h.subs[topic]))
	for c := range h.subs[topic] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	f := transport.Frame{Op: "pub", Topic: topic, Payload: payload}
	for _, c := range targets {
		if err := c.send(f); err != nil {
			h.log.Warn("hub: write failed, dropping peer", "topic", topic, "err", err)
			h.drop(c)
		}
	}
	return nil
}
