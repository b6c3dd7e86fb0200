// Package wire maps negotiation concepts to pub/sub topic names and
// encodes/decodes the JSON payloads that travel on them. It is pure and
// stateless: swapping the prototype's global topics for geohash- or
// ride-scoped sharding should touch nothing outside this package.
package wire

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/models"
)

// Global broadcast topics. Every client receives every message and filters
// locally; acceptable at prototype scale.
const (
	TopicRequests = "rides/request/global"
	TopicBids     = "rides/bids/global"
)

// DriverInbox is the targeted alternative to TopicRequests; same payload
// shape. The gateway publishes here when it knows which drivers are nearby.
func DriverInbox(driverID string) string { return "driver/" + driverID + "/requests" }

// RequestBids is the per-ride alternative to TopicBids; same payload shape.
// Unused by the default flow but supported as an addressing scheme.
func RequestBids(requestID string) string { return "rides/bid/" + requestID }

// ErrParse flags a payload that matches neither expected shape. Callers
// must treat it as "ignore this message", never as fatal.
var ErrParse = errors.New("wire: unrecognized payload")

// flexInt64 tolerates both JSON numbers and quoted numbers: the mobile
// client historically sent price and amount as strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		var q string
		if err := json.Unmarshal(b, &q); err != nil {
			return err
		}
		s = q
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// tolerate "150.0" style values
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		v = int64(fv)
	}
	*f = flexInt64(v)
	return nil
}

type requestPayload struct {
	RequestID   string    `json:"requestId,omitempty"`
	Pickup      string    `json:"pickup"`
	Destination string    `json:"destination"`
	VehicleType string    `json:"vehicleType"`
	Price       flexInt64 `json:"price"`
	AC          bool      `json:"ac,omitempty"`
	TS          int64     `json:"ts"`
}

type bidPayload struct {
	RideID     string    `json:"rideId"`
	DriverID   string    `json:"driverId,omitempty"`
	DriverName string    `json:"driverName"`
	Amount     flexInt64 `json:"amount"`
	AC         bool      `json:"ac,omitempty"`
	TS         int64     `json:"ts"`
}

// EncodeRequest projects a RideRequest onto its wire topic and payload.
func EncodeRequest(r models.RideRequest) (topic string, payload []byte, err error) {
	p := requestPayload{
		RequestID:   r.RequestID,
		Pickup:      r.Pickup,
		Destination: r.Destination,
		VehicleType: string(r.Vehicle),
		Price:       flexInt64(r.Price),
		AC:          r.Options.AirConditioning,
		TS:          r.CreatedAt.UnixMilli(),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", nil, err
	}
	return TopicRequests, b, nil
}

// EncodeBid projects a Bid onto the shared bids topic. All bids for all
// requests travel on one topic; consumers filter by rideId.
func EncodeBid(b models.Bid) (topic string, payload []byte, err error) {
	p := bidPayload{
		RideID:     b.RequestID,
		DriverID:   b.DriverID,
		DriverName: b.DriverName,
		Amount:     flexInt64(b.Amount),
		AC:         b.Options.AirConditioning,
		TS:         b.CreatedAt.UnixMilli(),
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return "", nil, err
	}
	return TopicBids, buf, nil
}

// Decode parses a payload into a *models.RideRequest or *models.Bid.
// Shape detection is by field presence: requests carry pickup/destination,
// bids carry rideId/amount. Anything else yields ErrParse.
func Decode(payload []byte) (any, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, ErrParse
	}
	_, hasPickup := probe["pickup"]
	_, hasDest := probe["destination"]
	if hasPickup && hasDest {
		var p requestPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, ErrParse
		}
		return &models.RideRequest{
			RequestID:   p.RequestID,
			Pickup:      p.Pickup,
			Destination: p.Destination,
			Vehicle:     models.VehicleClass(p.VehicleType),
			Price:       int64(p.Price),
			Options:     models.RequestOptions{AirConditioning: p.AC},
			CreatedAt:   time.UnixMilli(p.TS),
		}, nil
	}
	_, hasRide := probe["rideId"]
	_, hasAmount := probe["amount"]
	if hasRide && hasAmount {
		var p bidPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, ErrParse
		}
		return &models.Bid{
			RequestID:  p.RideID,
			DriverID:   p.DriverID,
			DriverName: p.DriverName,
			Amount:     int64(p.Amount),
			Options:    models.RequestOptions{AirConditioning: p.AC},
			CreatedAt:  time.UnixMilli(p.TS),
		}, nil
	}
	return nil, ErrParse
}
