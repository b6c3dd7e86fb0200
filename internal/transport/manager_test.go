package transport

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConnectIsIdempotent(t *testing.T) {
	broker := NewBroker()
	cli := broker.NewClient()
	m := NewManager(cli, testLogger())
	defer m.Close()

	var mu sync.Mutex
	var seen []Status
	m.AddStatusListener(func(st Status) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Status() == Connected })

	mu.Lock()
	defer mu.Unlock()
	// immediate fire (Disconnected), then Connecting, then exactly one Connected
	var connected int
	for _, st := range seen {
		if st == Connected {
			connected++
		}
	}
	if connected != 1 {
		t.Fatalf("expected exactly one Connected notification, got %d (%v)", connected, seen)
	}
	if seen[0] != Disconnected || seen[1] != Connecting {
		t.Fatalf("unexpected transition order: %v", seen)
	}
}

func TestStatusListenerImmediateFireAndRemoval(t *testing.T) {
	broker := NewBroker()
	m := NewManager(broker.NewClient(), testLogger())
	defer m.Close()

	var got []Status
	remove := m.AddStatusListener(func(st Status) { got = append(got, st) })
	if len(got) != 1 || got[0] != Disconnected {
		t.Fatalf("expected immediate fire with Disconnected, got %v", got)
	}
	remove()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Status() == Connected })
	if len(got) != 1 {
		t.Fatalf("removed listener still notified: %v", got)
	}
}

func TestPublishWhileDisconnectedIsDropped(t *testing.T) {
	broker := NewBroker()
	receiver := broker.NewClient()
	rm := NewManager(receiver, testLogger())
	defer rm.Close()
	if err := rm.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rm.Status() == Connected })

	var mu sync.Mutex
	var delivered [][]byte
	rm.Subscribe("t", func(msg Message) {
		mu.Lock()
		delivered = append(delivered, msg.Payload)
		mu.Unlock()
	})

	sender := broker.NewClient()
	sm := NewManager(sender, testLogger())
	defer sm.Close()

	// Not connected yet: dropped silently, no error surfaced.
	sm.Publish("t", []byte("lost"))

	if err := sm.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return sm.Status() == Connected })
	sm.Publish("t", []byte("kept"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if string(delivered[0]) != "kept" {
		t.Fatalf("unexpected delivery %q", delivered[0])
	}
}

func TestResubscribeAfterFlap(t *testing.T) {
	broker := NewBroker()
	receiver := broker.NewClient()
	rm := NewManager(receiver, testLogger())
	defer rm.Close()
	if err := rm.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rm.Status() == Connected })

	var mu sync.Mutex
	var n int
	rm.Subscribe("flappy", func(Message) {
		mu.Lock()
		n++
		mu.Unlock()
	})

	receiver.Drop()
	waitFor(t, func() bool { return rm.Status() == Disconnected })
	receiver.Restore()
	waitFor(t, func() bool { return rm.Status() == Connected })

	// The broker forgot the subscription on drop; the manager must have
	// restored it for this delivery to happen.
	broker.Publish("flappy", []byte("{}"))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return n == 1
	})
}

func TestDispatchIsKeyedByTopic(t *testing.T) {
	broker := NewBroker()
	cli := broker.NewClient()
	m := NewManager(cli, testLogger())
	defer m.Close()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Status() == Connected })

	var mu sync.Mutex
	counts := map[string]int{}
	m.Subscribe("a", func(msg Message) {
		mu.Lock()
		counts["a"]++
		mu.Unlock()
	})
	removeB := m.Subscribe("b", func(msg Message) {
		mu.Lock()
		counts["b"]++
		mu.Unlock()
	})

	broker.Publish("a", []byte("1"))
	broker.Publish("b", []byte("2"))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["a"] == 1 && counts["b"] == 1
	})

	removeB()
	broker.Publish("b", []byte("3"))
	broker.Publish("a", []byte("4"))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["a"] == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if counts["b"] != 1 {
		t.Fatalf("handler for b still receiving after removal: %d", counts["b"])
	}
}
