package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/henriqu3-99/Lehgo/internal/transport"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) transport.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f transport.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestHubFansOutToSubscribers(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	sub := dialHub(t, srv)
	other := dialHub(t, srv)
	pub := dialHub(t, srv)

	if err := sub.WriteJSON(transport.Frame{Op: "sub", Topic: "rides/bids/global"}); err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err := other.WriteJSON(transport.Frame{Op: "sub", Topic: "driver/x/requests"}); err != nil {
		t.Fatalf("sub other: %v", err)
	}
	// subscription frames race the publish; give the hub a beat
	time.Sleep(50 * time.Millisecond)

	payload := json.RawMessage(`{"rideId":"r1","amount":150,"driverName":"Moses","ts":1}`)
	if err := pub.WriteJSON(transport.Frame{Op: "pub", Topic: "rides/bids/global", Payload: payload}); err != nil {
		t.Fatalf("pub: %v", err)
	}

	f := readFrame(t, sub)
	if f.Op != "pub" || f.Topic != "rides/bids/global" {
		t.Fatalf("frame = %+v", f)
	}
	if string(f.Payload) != string(payload) {
		t.Fatalf("payload = %s", f.Payload)
	}

	// the other topic's subscriber must not see it
	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray transport.Frame
	if err := other.ReadJSON(&stray); err == nil {
		t.Fatalf("unexpected frame on other topic: %+v", stray)
	}
}

func TestHubServerSidePublish(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	sub := dialHub(t, srv)
	if err := sub.WriteJSON(transport.Frame{Op: "sub", Topic: "rides/request/global"}); err != nil {
		t.Fatalf("sub: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := hub.Publish("rides/request/global", []byte(`{"pickup":"A","destination":"B","price":100,"ts":1}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	f := readFrame(t, sub)
	if f.Topic != "rides/request/global" {
		t.Fatalf("topic = %q", f.Topic)
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	sub := dialHub(t, srv)
	if err := sub.WriteJSON(transport.Frame{Op: "sub", Topic: "t"}); err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err := sub.WriteJSON(transport.Frame{Op: "unsub", Topic: "t"}); err != nil {
		t.Fatalf("unsub: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	_ = hub.Publish("t", []byte(`{}`))
	sub.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var f transport.Frame
	if err := sub.ReadJSON(&f); err == nil {
		t.Fatalf("unexpected frame after unsub: %+v", f)
	}
}
