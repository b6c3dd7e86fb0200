package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VehicleClass enumerates the vehicle types a rider can request.
type VehicleClass string

const (
	VehicleBike VehicleClass = "Bike"
	VehicleKeke VehicleClass = "Keke"
	VehicleTaxi VehicleClass = "Taxi"
)

func (v VehicleClass) Valid() bool {
	switch v {
	case VehicleBike, VehicleKeke, VehicleTaxi:
		return true
	}
	return false
}

// RequestOptions are the feature flags a rider can attach to a request.
// AC only makes sense for taxis; the constructor rejects it elsewhere.
type RequestOptions struct {
	AirConditioning bool `json:"ac,omitempty"`
}

// ValidationError reports a locally constructed value that violates an
// invariant. It is always raised before anything is published or sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RideRequest is a rider's broadcast intent to travel at a proposed price.
// Immutable once published.
type RideRequest struct {
	RequestID   string
	Pickup      string
	Destination string
	Vehicle     VehicleClass
	Price       int64 // LRD, whole units
	Options     RequestOptions
	CreatedAt   time.Time
}

// NewRideRequest validates the inputs and mints a request with a fresh id.
// Timestamps carry millisecond precision, matching the wire format.
func NewRideRequest(pickup, destination string, vehicle VehicleClass, price int64, opts RequestOptions) (RideRequest, error) {
	if strings.TrimSpace(pickup) == "" {
		return RideRequest{}, &ValidationError{Field: "pickup", Reason: "must not be empty"}
	}
	if strings.TrimSpace(destination) == "" {
		return RideRequest{}, &ValidationError{Field: "destination", Reason: "must not be empty"}
	}
	if !vehicle.Valid() {
		return RideRequest{}, &ValidationError{Field: "vehicleType", Reason: fmt.Sprintf("unknown class %q", string(vehicle))}
	}
	if price <= 0 {
		return RideRequest{}, &ValidationError{Field: "price", Reason: "must be positive"}
	}
	if opts.AirConditioning && vehicle != VehicleTaxi {
		return RideRequest{}, &ValidationError{Field: "options", Reason: "ac is only available for taxis"}
	}
	return RideRequest{
		RequestID:   uuid.NewString(),
		Pickup:      pickup,
		Destination: destination,
		Vehicle:     vehicle,
		Price:       price,
		Options:     opts,
		CreatedAt:   time.Now().Truncate(time.Millisecond),
	}, nil
}

// Bid is a driver's response to a request. RequestID is a back-reference,
// not an ownership relation: several bids may answer the same request, and
// one driver may bid more than once.
type Bid struct {
	RequestID  string
	DriverID   string
	DriverName string
	Amount     int64
	Options    RequestOptions
	CreatedAt  time.Time
}

func NewBid(requestID, driverID, driverName string, amount int64, opts RequestOptions) (Bid, error) {
	if strings.TrimSpace(requestID) == "" {
		return Bid{}, &ValidationError{Field: "rideId", Reason: "must not be empty"}
	}
	if amount <= 0 {
		return Bid{}, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return Bid{
		RequestID:  requestID,
		DriverID:   driverID,
		DriverName: driverName,
		Amount:     amount,
		Options:    opts,
		CreatedAt:  time.Now().Truncate(time.Millisecond),
	}, nil
}

// Roles for user records.
const (
	RoleRider  = "rider"
	RoleDriver = "driver"
)

// Ride statuses as persisted by the gateway.
const (
	RideRequested = "requested"
	RideAccepted  = "accepted"
	RideCancelled = "cancelled"
	RideCompleted = "completed"
)

// Bid record statuses.
const (
	BidPending  = "pending"
	BidAccepted = "accepted"
)

// NewID returns a fresh uuid string for entity ids.
func NewID() string { return uuid.NewString() }

// User is the gateway's persisted identity record.
type User struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	LastLat   float64   `json:"last_lat"`
	LastLong  float64   `json:"last_long"`
	CreatedAt time.Time `json:"created_at"`
}

// Ride is the authoritative ride record. Its id equals the client-generated
// request id so the pub/sub and API views of a negotiation never diverge.
type Ride struct {
	ID             string       `json:"id"`
	RiderID        string       `json:"rider_id"`
	DriverID       string       `json:"driver_id,omitempty"`
	PickupAddress  string       `json:"pickup_address"`
	DropoffAddress string       `json:"dropoff_address"`
	PickupLat      float64      `json:"pickup_lat"`
	PickupLong     float64      `json:"pickup_long"`
	DropoffLat     float64      `json:"dropoff_lat"`
	DropoffLong    float64      `json:"dropoff_long"`
	VehicleType    VehicleClass `json:"vehicle_type"`
	Price          int64        `json:"price"`
	Status         string       `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// BidRecord is the authoritative bid row, distinct from the wire-level Bid.
type BidRecord struct {
	ID        string    `json:"id"`
	RideID    string    `json:"ride_id"`
	DriverID  string    `json:"driver_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// DriverLocation is a presence entry returned by nearby-driver lookups.
type DriverLocation struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Long       float64 `json:"long"`
	DistanceM  float64 `json:"distance_m"`
	ETASeconds float64 `json:"eta_seconds,omitempty"`
}
