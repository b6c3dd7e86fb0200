package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/henriqu3-99/Lehgo/internal/models"
	"github.com/henriqu3-99/Lehgo/internal/observability"
	"github.com/henriqu3-99/Lehgo/internal/storage"
	"github.com/henriqu3-99/Lehgo/internal/wire"
)

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string  `json:"phone"`
		Name  string  `json:"name"`
		Role  string  `json:"role"`
		Lat   float64 `json:"last_lat"`
		Long  float64 `json:"last_long"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Phone) == "" || strings.TrimSpace(body.Name) == "" {
		http.Error(w, "phone and name are required", http.StatusBadRequest)
		return
	}
	if body.Role != models.RoleRider && body.Role != models.RoleDriver {
		http.Error(w, "role must be rider or driver", http.StatusBadRequest)
		return
	}

	u := models.User{
		ID:        models.NewID(),
		Phone:     body.Phone,
		Name:      body.Name,
		Role:      body.Role,
		LastLat:   body.Lat,
		LastLong:  body.Long,
		CreatedAt: time.Now(),
	}
	if err := s.Store.CreateUser(r.Context(), &u); err != nil {
		s.logger.Error("create user failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	// drivers become targetable for nearby requests immediately
	if u.Role == models.RoleDriver {
		s.Presence.Upsert(u.ID, u.Name, u.LastLat, u.LastLong)
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID      string              `json:"request_id"`
		RiderID        string              `json:"rider_id"`
		PickupAddress  string              `json:"pickup_address"`
		DropoffAddress string              `json:"dropoff_address"`
		PickupLat      float64             `json:"pickup_lat"`
		PickupLong     float64             `json:"pickup_long"`
		DropoffLat     float64             `json:"dropoff_lat"`
		DropoffLong    float64             `json:"dropoff_long"`
		VehicleType    models.VehicleClass `json:"vehicle_type"`
		Price          int64               `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Price <= 0 {
		http.Error(w, "price must be positive", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.PickupAddress) == "" || strings.TrimSpace(body.DropoffAddress) == "" {
		http.Error(w, "pickup and dropoff are required", http.StatusBadRequest)
		return
	}
	if !body.VehicleType.Valid() {
		http.Error(w, "unknown vehicle type", http.StatusBadRequest)
		return
	}

	// the ride id is the client-generated negotiation id, so the API and
	// pub/sub views of a ride never diverge
	id := body.RequestID
	if id == "" {
		id = models.NewID()
	}
	now := time.Now()
	ride := models.Ride{
		ID:             id,
		RiderID:        body.RiderID,
		PickupAddress:  body.PickupAddress,
		DropoffAddress: body.DropoffAddress,
		PickupLat:      body.PickupLat,
		PickupLong:     body.PickupLong,
		DropoffLat:     body.DropoffLat,
		DropoffLong:    body.DropoffLong,
		VehicleType:    body.VehicleType,
		Price:          body.Price,
		Status:         models.RideRequested,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.CreateRide(r.Context(), &ride); err != nil {
		s.logger.Error("create ride failed", "ride", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.broadcastRequest(ride)
	writeJSON(w, http.StatusCreated, ride)
}

// broadcastRequest targets nearby driver inboxes when presence knows any,
// falling back to the global request topic otherwise.
func (s *Server) broadcastRequest(ride models.Ride) {
	req := models.RideRequest{
		RequestID:   ride.ID,
		Pickup:      ride.PickupAddress,
		Destination: ride.DropoffAddress,
		Vehicle:     ride.VehicleType,
		Price:       ride.Price,
		CreatedAt:   ride.CreatedAt,
	}
	_, payload, err := wire.EncodeRequest(req)
	if err != nil {
		s.logger.Error("encode request failed", "ride", ride.ID, "err", err)
		return
	}

	nearby := s.Presence.Nearby(ride.PickupLat, ride.PickupLong, s.NearbyLimit)
	if len(nearby) == 0 {
		if err := s.Bus.Publish(wire.TopicRequests, payload); err != nil {
			s.logger.Warn("broadcast request failed", "ride", ride.ID, "err", err)
			return
		}
		observability.RequestsPublished.Inc()
		return
	}
	for _, d := range nearby {
		if err := s.Bus.Publish(wire.DriverInbox(d.ID), payload); err != nil {
			s.logger.Warn("targeted request failed", "ride", ride.ID, "driver", d.ID, "err", err)
			continue
		}
		observability.RequestsPublished.Inc()
	}
}

func (s *Server) handleCreateBid(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RideID   string `json:"ride_id"`
		DriverID string `json:"driver_id"`
		Amount   int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	if body.RideID == "" {
		http.Error(w, "ride_id is required", http.StatusBadRequest)
		return
	}

	rec := models.BidRecord{
		ID:        models.NewID(),
		RideID:    body.RideID,
		DriverID:  body.DriverID,
		Amount:    body.Amount,
		Status:    models.BidPending,
		CreatedAt: time.Now(),
	}
	if err := s.Store.CreateBid(r.Context(), &rec); err != nil {
		s.logger.Error("create bid failed", "ride", body.RideID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// rebroadcast so riders connected through the hub see bids submitted
	// over plain HTTP too
	name := ""
	if u, err := s.Store.GetUser(r.Context(), body.DriverID); err == nil {
		name = u.Name
	}
	bid := models.Bid{
		RequestID:  body.RideID,
		DriverID:   body.DriverID,
		DriverName: name,
		Amount:     body.Amount,
		CreatedAt:  rec.CreatedAt,
	}
	if topic, payload, err := wire.EncodeBid(bid); err == nil {
		if err := s.Bus.Publish(topic, payload); err != nil {
			s.logger.Warn("broadcast bid failed", "ride", body.RideID, "err", err)
		} else {
			observability.BidsPublished.Inc()
		}
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["id"]
	var body struct {
		DriverID string `json:"driver_id"`
		Amount   int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.DriverID == "" || body.Amount <= 0 {
		http.Error(w, "driver_id and positive amount are required", http.StatusBadRequest)
		return
	}

	if err := s.Store.AcceptRide(r.Context(), rideID, body.DriverID, body.Amount); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "ride not found", http.StatusNotFound)
			return
		}
		s.logger.Error("accept ride failed", "ride", rideID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// card riders get a hold at the agreed amount; a failure here never
	// blocks the accept, cash settles the ride instead
	if s.Payments != nil {
		if holdID, err := s.Payments.Hold(r.Context(), body.Amount, "usd", ""); err != nil {
			s.logger.Warn("payment hold failed, falling back to cash", "ride", rideID, "err", err)
		} else {
			s.logger.Info("payment held", "ride", rideID, "hold", holdID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleNearbyDrivers(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	long, longErr := strconv.ParseFloat(r.URL.Query().Get("long"), 64)
	if latErr != nil || longErr != nil {
		http.Error(w, "lat and long are required", http.StatusBadRequest)
		return
	}

	out := s.Presence.Nearby(lat, long, s.NearbyLimit)
	if out == nil {
		out = []models.DriverLocation{}
	}
	if s.ETA != nil {
		for i := range out {
			if secs, err := s.ETA.EstimateSeconds(out[i].Lat, out[i].Long, lat, long); err == nil {
				out[i].ETASeconds = secs
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Phone) == "" {
		http.Error(w, "phone is required", http.StatusBadRequest)
		return
	}
	code, err := s.OTP.Issue(r.Context(), body.Phone)
	if err != nil {
		s.logger.Error("otp issue failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	// dev_code lets credential-less local setups complete the flow
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent", "dev_code": code})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.OTP.Verify(r.Context(), body.Phone, body.Code) {
		http.Error(w, "invalid code", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
