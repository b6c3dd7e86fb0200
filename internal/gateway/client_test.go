package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/models"
)

func TestCreateRideRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rides" || r.Method != http.MethodPost {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var p RideParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(models.Ride{
			ID:      p.RequestID,
			RiderID: p.RiderID,
			Price:   p.Price,
			Status:  models.RideRequested,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ride, err := c.CreateRide(context.Background(), RideParams{
		RequestID: "req-1", RiderID: "u1", PickupAddress: "A", DropoffAddress: "B",
		VehicleType: models.VehicleBike, Price: 150,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ride.ID != "req-1" || ride.Status != models.RideRequested {
		t.Fatalf("unexpected ride %+v", ride)
	}
}

func TestServerErrorSurfacesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.CreateBid(context.Background(), "r1", "d1", 100)
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *gateway.Error, got %v", err)
	}
	if gerr.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", gerr.Status)
	}
}

func TestVerifyOTPDistinguishesRejectionFromFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Code string `json:"code"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Code == "123456" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "Invalid Code", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ok, err := c.VerifyOTP(context.Background(), "+231770000000", "123456")
	if err != nil || !ok {
		t.Fatalf("expected verified, got ok=%v err=%v", ok, err)
	}
	ok, err = c.VerifyOTP(context.Background(), "+231770000000", "000000")
	if err != nil || ok {
		t.Fatalf("expected explicit rejection without error, got ok=%v err=%v", ok, err)
	}

	srv.Close()
	_, err = c.VerifyOTP(context.Background(), "+231770000000", "123456")
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected network failure as *gateway.Error, got %v", err)
	}
}

func TestNearbyDrivers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("long") == "" {
			t.Fatalf("missing coordinates: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]models.DriverLocation{{ID: "d1", Name: "Moses", DistanceM: 420}})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	got, err := c.NearbyDrivers(context.Background(), 6.3, -10.8)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Moses" {
		t.Fatalf("unexpected result %+v", got)
	}
}
