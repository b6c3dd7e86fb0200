package wire

import (
	"errors"
	"testing"

	"github.com/henriqu3-99/Lehgo/internal/models"
)

func TestRequestRoundTrip(t *testing.T) {
	req, err := models.NewRideRequest("Current Location", "Market", models.VehicleTaxi, 150, models.RequestOptions{AirConditioning: true})
	if err != nil {
		t.Fatal(err)
	}
	topic, payload, err := EncodeRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if topic != TopicRequests {
		t.Fatalf("unexpected topic %s", topic)
	}
	v, err := Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := v.(*models.RideRequest)
	if !ok {
		t.Fatalf("decoded %T, want *models.RideRequest", v)
	}
	if got.RequestID != req.RequestID || got.Pickup != req.Pickup || got.Destination != req.Destination ||
		got.Vehicle != req.Vehicle || got.Price != req.Price || got.Options != req.Options {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, req)
	}
	if !got.CreatedAt.Equal(req.CreatedAt) {
		t.Fatalf("timestamp drift: %v vs %v", got.CreatedAt, req.CreatedAt)
	}
}

func TestBidRoundTrip(t *testing.T) {
	bid, err := models.NewBid("req-42", "d2", "Moses", 140, models.RequestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	topic, payload, err := EncodeBid(bid)
	if err != nil {
		t.Fatal(err)
	}
	if topic != TopicBids {
		t.Fatalf("unexpected topic %s", topic)
	}
	v, err := Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := v.(*models.Bid)
	if !ok {
		t.Fatalf("decoded %T, want *models.Bid", v)
	}
	if got.RequestID != "req-42" || got.Amount != 140 || got.DriverName != "Moses" || got.DriverID != "d2" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(bid.CreatedAt) {
		t.Fatalf("timestamp drift: %v vs %v", got.CreatedAt, bid.CreatedAt)
	}
}

func TestDecodeStringNumbers(t *testing.T) {
	// The mobile client sends price and amount as quoted strings.
	v, err := Decode([]byte(`{"pickup":"Current Location","destination":"Market","vehicleType":"Bike","price":"150","ts":1700000000000}`))
	if err != nil {
		t.Fatal(err)
	}
	req := v.(*models.RideRequest)
	if req.Price != 150 {
		t.Fatalf("expected price 150, got %d", req.Price)
	}

	v, err = Decode([]byte(`{"rideId":"abc","amount":"160","driverName":"Sarah","ts":1700000000001}`))
	if err != nil {
		t.Fatal(err)
	}
	bid := v.(*models.Bid)
	if bid.Amount != 160 {
		t.Fatalf("expected amount 160, got %d", bid.Amount)
	}
}

func TestDecodeRejectsUnknownShapes(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`123`,
		`{"hello":"world"}`,
		`{"pickup":"only half a request"}`,
		`[]`,
	} {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrParse) {
			t.Fatalf("payload %q: expected ErrParse, got %v", payload, err)
		}
	}
}

func TestAddressingHelpers(t *testing.T) {
	if got := DriverInbox("2"); got != "driver/2/requests" {
		t.Fatalf("unexpected inbox topic %s", got)
	}
	if got := RequestBids("r9"); got != "rides/bid/r9" {
		t.Fatalf("unexpected bid topic %s", got)
	}
}
