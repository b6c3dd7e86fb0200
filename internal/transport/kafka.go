package transport

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka adapts Kafka topics to the Transport interface. Each subscription
// runs its own reader under a group id unique to this process, so every
// subscriber observes every message: consumer-group load balancing would
// otherwise break the pub/sub fan-out the protocol assumes.
type Kafka struct {
	brokers []string
	group   string
	msgs    chan Message
	events  chan Status

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	cancels map[string]context.CancelFunc
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func NewKafka(brokers []string) *Kafka {
	return &Kafka{
		brokers: brokers,
		group:   fmt.Sprintf("lehgo-%08x", rand.Uint32()),
		msgs:    make(chan Message, 256),
		events:  make(chan Status, 8),
		writers: make(map[string]*kafka.Writer),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Connect is nominal: kafka-go dials lazily per reader/writer. The link is
// reported up immediately and individual read errors are retried with
// backoff inside the read loops.
func (t *Kafka) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.mu.Unlock()
	t.events <- Connected
	return nil
}

func (t *Kafka) Publish(topic string, payload []byte) error {
	t.mu.Lock()
	w, ok := t.writers[topic]
	if !ok {
		w = &kafka.Writer{
			Addr:         kafka.TCP(t.brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		}
		t.writers[topic] = w
	}
	t.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return w.WriteMessages(ctx, kafka.Message{Value: payload})
}

func (t *Kafka) Subscribe(topic string) error {
	t.mu.Lock()
	if _, ok := t.cancels[topic]; ok {
		t.mu.Unlock()
		return nil
	}
	if t.ctx == nil {
		t.mu.Unlock()
		return errNotConnected
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.cancels[topic] = cancel
	t.mu.Unlock()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  t.brokers,
		Topic:    topic,
		GroupID:  t.group + "-" + topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  250 * time.Millisecond,
	})
	go t.readLoop(ctx, topic, r)
	return nil
}

func (t *Kafka) readLoop(ctx context.Context, topic string, r *kafka.Reader) {
	defer r.Close()
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		select {
		case t.msgs <- Message{Topic: topic, Payload: m.Value}:
		case <-ctx.Done():
			return
		}
	}
}

func (t *Kafka) Unsubscribe(topic string) error {
	t.mu.Lock()
	cancel, ok := t.cancels[topic]
	delete(t.cancels, topic)
	t.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (t *Kafka) Messages() <-chan Message { return t.msgs }
func (t *Kafka) Events() <-chan Status    { return t.events }

func (t *Kafka) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	writers := t.writers
	t.writers = make(map[string]*kafka.Writer)
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	var err error
	for _, w := range writers {
		if cerr := w.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}
