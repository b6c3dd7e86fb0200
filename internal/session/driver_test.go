package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/models"
	"github.com/henriqu3-99/Lehgo/internal/transport"
	"github.com/henriqu3-99/Lehgo/internal/wire"
)

type fakeDriverGateway struct {
	bids []models.BidRecord
	fail bool
}

func (f *fakeDriverGateway) CreateBid(ctx context.Context, rideID, driverID string, amount int64) (models.BidRecord, error) {
	if f.fail {
		return models.BidRecord{}, errors.New("gateway down")
	}
	rec := models.BidRecord{ID: "b1", RideID: rideID, DriverID: driverID, Amount: amount, Status: models.BidPending}
	f.bids = append(f.bids, rec)
	return rec, nil
}

func publishRequest(t *testing.T, b *transport.Broker, topic string, req models.RideRequest) {
	t.Helper()
	_, payload, err := wire.EncodeRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	b.Publish(topic, payload)
}

func TestDriverDiscoversRequestsMostRecentFirst(t *testing.T) {
	broker := transport.NewBroker()
	m := connectedManager(t, broker)
	s := NewDriverSession(m, &fakeDriverGateway{}, "2", "Moses", testLogger())
	defer s.Close()

	first, _ := models.NewRideRequest("A", "Market", models.VehicleBike, 150, models.RequestOptions{})
	second, _ := models.NewRideRequest("B", "Airport", models.VehicleTaxi, 900, models.RequestOptions{})

	publishRequest(t, broker, wire.TopicRequests, first)
	waitFor(t, func() bool { return len(s.Requests()) == 1 })
	publishRequest(t, broker, wire.TopicRequests, second)
	waitFor(t, func() bool { return len(s.Requests()) == 2 })

	reqs := s.Requests()
	if reqs[0].RequestID != second.RequestID || reqs[1].RequestID != first.RequestID {
		t.Fatalf("expected most-recent-first ordering, got %+v", reqs)
	}
}

func TestDriverDedupesTargetedAndGlobalCopies(t *testing.T) {
	broker := transport.NewBroker()
	m := connectedManager(t, broker)
	s := NewDriverSession(m, &fakeDriverGateway{}, "2", "Moses", testLogger())
	defer s.Close()

	req, _ := models.NewRideRequest("A", "Market", models.VehicleBike, 150, models.RequestOptions{})
	publishRequest(t, broker, wire.DriverInbox("2"), req)
	publishRequest(t, broker, wire.TopicRequests, req)

	waitFor(t, func() bool { return len(s.Requests()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if n := len(s.Requests()); n != 1 {
		t.Fatalf("expected the duplicate to be dropped, got %d requests", n)
	}
}

func TestSubmitBidWritesGatewayThenPublishes(t *testing.T) {
	broker := transport.NewBroker()
	m := connectedManager(t, broker)
	gw := &fakeDriverGateway{}
	s := NewDriverSession(m, gw, "2", "Moses", testLogger())
	defer s.Close()

	spy := broker.NewClient()
	if err := spy.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := spy.Subscribe(wire.TopicBids); err != nil {
		t.Fatal(err)
	}

	req, _ := models.NewRideRequest("A", "Market", models.VehicleBike, 150, models.RequestOptions{})
	bid, err := s.SubmitBid(context.Background(), req, 140)
	if err != nil {
		t.Fatal(err)
	}
	if bid.RequestID != req.RequestID || bid.DriverName != "Moses" {
		t.Fatalf("unexpected bid %+v", bid)
	}
	if len(gw.bids) != 1 || gw.bids[0].Amount != 140 {
		t.Fatalf("expected authoritative gateway write, got %+v", gw.bids)
	}

	select {
	case msg := <-spy.Messages():
		v, err := wire.Decode(msg.Payload)
		if err != nil {
			t.Fatal(err)
		}
		got := v.(*models.Bid)
		if got.Amount != 140 || got.RequestID != req.RequestID {
			t.Fatalf("unexpected wire bid %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("bid notification never reached the bus")
	}
}

func TestSubmitBidGatewayFailureSuppressesPublish(t *testing.T) {
	broker := transport.NewBroker()
	m := connectedManager(t, broker)
	s := NewDriverSession(m, &fakeDriverGateway{fail: true}, "2", "Moses", testLogger())
	defer s.Close()

	spy := broker.NewClient()
	if err := spy.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := spy.Subscribe(wire.TopicBids); err != nil {
		t.Fatal(err)
	}

	req, _ := models.NewRideRequest("A", "Market", models.VehicleBike, 150, models.RequestOptions{})
	if _, err := s.SubmitBid(context.Background(), req, 140); err == nil {
		t.Fatal("expected gateway error")
	}
	time.Sleep(50 * time.Millisecond)
	select {
	case msg := <-spy.Messages():
		t.Fatalf("no notification should follow a failed record write, got %+v", msg)
	default:
	}
}

func TestSubmitBidValidatesBeforeGateway(t *testing.T) {
	broker := transport.NewBroker()
	m := connectedManager(t, broker)
	gw := &fakeDriverGateway{}
	s := NewDriverSession(m, gw, "2", "Moses", testLogger())
	defer s.Close()

	req, _ := models.NewRideRequest("A", "Market", models.VehicleBike, 150, models.RequestOptions{})
	_, err := s.SubmitBid(context.Background(), req, -5)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(gw.bids) != 0 {
		t.Fatal("invalid bid must never reach the gateway")
	}
}

func TestSubmitCounterCarriesOptions(t *testing.T) {
	broker := transport.NewBroker()
	m := connectedManager(t, broker)
	s := NewDriverSession(m, &fakeDriverGateway{}, "2", "Sarah", testLogger())
	defer s.Close()

	spy := broker.NewClient()
	if err := spy.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := spy.Subscribe(wire.TopicBids); err != nil {
		t.Fatal(err)
	}

	req, _ := models.NewRideRequest("A", "Market", models.VehicleTaxi, 500, models.RequestOptions{})
	if _, err := s.SubmitCounter(context.Background(), req, 650, models.RequestOptions{AirConditioning: true}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-spy.Messages():
		v, err := wire.Decode(msg.Payload)
		if err != nil {
			t.Fatal(err)
		}
		got := v.(*models.Bid)
		if got.Amount != 650 || !got.Options.AirConditioning {
			t.Fatalf("counter offer lost its terms: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("counter offer never reached the bus")
	}
}
