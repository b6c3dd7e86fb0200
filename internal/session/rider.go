// Package session holds the per-participant negotiation state machines.
// A session is owned by the UI flow that created it and is discarded when
// that flow ends; nothing here survives a process restart.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/henriqu3-99/Lehgo/internal/models"
	"github.com/henriqu3-99/Lehgo/internal/observability"
	"github.com/henriqu3-99/Lehgo/internal/transport"
	"github.com/henriqu3-99/Lehgo/internal/wire"
)

// RiderState of the rider's negotiation.
type RiderState int

const (
	RiderIdle RiderState = iota
	RiderSearching
	RiderConfirmed
)

func (s RiderState) String() string {
	switch s {
	case RiderSearching:
		return "searching"
	case RiderConfirmed:
		return "confirmed"
	default:
		return "idle"
	}
}

// ErrNotSearching is returned by Cancel and AcceptBid outside Searching,
// and by SubmitRequest while a request is already outstanding.
var ErrNotSearching = errors.New("session: no request outstanding")

// ErrBusy is returned by SubmitRequest while not Idle.
var ErrBusy = errors.New("session: request already outstanding")

// RiderGateway is the slice of the backend the rider side needs.
type RiderGateway interface {
	AcceptBid(ctx context.Context, rideID, driverID string, amount int64) error
}

// RiderSession drives one outstanding ride request: Idle → Searching →
// Confirmed, with Cancel returning to Idle. Collected bids are ordered
// most-recent-first and filtered to the active request id; stray bids on
// the shared topic (answers to other riders, or late arrivals after
// cancel/accept) are discarded silently.
type RiderSession struct {
	conn *transport.Manager
	gw   RiderGateway
	log  *slog.Logger

	// OnBid, if set before the first SubmitRequest, is called for every
	// collected bid. Invoked from the transport goroutine without the
	// session lock held.
	OnBid func(models.Bid)

	mu         sync.Mutex
	state      RiderState
	active     *models.RideRequest
	bids       []models.Bid
	connStatus transport.Status

	unsubBids   func()
	unsubStatus func()
}

// NewRiderSession wires a session to the shared connection. It subscribes
// to the bids topic for its whole life (the screen's lifetime); state
// decides whether arriving bids matter.
func NewRiderSession(conn *transport.Manager, gw RiderGateway, log *slog.Logger) *RiderSession {
	s := &RiderSession{conn: conn, gw: gw, log: log, state: RiderIdle}
	s.unsubStatus = conn.AddStatusListener(func(st transport.Status) {
		s.mu.Lock()
		s.connStatus = st
		s.mu.Unlock()
	})
	s.unsubBids = conn.Subscribe(wire.TopicBids, s.handleBid)
	return s
}

func (s *RiderSession) handleBid(msg transport.Message) {
	v, err := wire.Decode(msg.Payload)
	if err != nil {
		observability.ParseErrors.Inc()
		return
	}
	bid, ok := v.(*models.Bid)
	if !ok {
		// a request echoed on the wrong topic; not ours to act on
		return
	}

	s.mu.Lock()
	if s.state != RiderSearching || s.active == nil || bid.RequestID != s.active.RequestID {
		s.mu.Unlock()
		return
	}
	s.bids = append([]models.Bid{*bid}, s.bids...)
	cb := s.OnBid
	s.mu.Unlock()

	observability.BidsCollected.Inc()
	s.log.Info("bid collected", "request_id", bid.RequestID, "driver", bid.DriverName, "amount", bid.Amount)
	if cb != nil {
		cb(*bid)
	}
}

// SubmitRequest validates, constructs and broadcasts a new ride request,
// transitioning Idle → Searching. Validation failures surface before
// anything is published. The publish itself is best-effort: while
// disconnected the request is dropped by the connection manager and the
// session still enters Searching, degraded until reconnection.
func (s *RiderSession) SubmitRequest(pickup, destination string, vehicle models.VehicleClass, price int64, opts models.RequestOptions) (models.RideRequest, error) {
	req, err := models.NewRideRequest(pickup, destination, vehicle, price, opts)
	if err != nil {
		return models.RideRequest{}, err
	}

	s.mu.Lock()
	if s.state != RiderIdle {
		s.mu.Unlock()
		return models.RideRequest{}, ErrBusy
	}
	s.state = RiderSearching
	s.active = &req
	s.bids = nil
	s.mu.Unlock()

	topic, payload, err := wire.EncodeRequest(req)
	if err != nil {
		// unreachable for a validated request; reset rather than wedge
		s.mu.Lock()
		s.state = RiderIdle
		s.active = nil
		s.mu.Unlock()
		return models.RideRequest{}, err
	}
	s.conn.Publish(topic, payload)
	observability.RequestsPublished.Inc()
	s.log.Info("request published", "request_id", req.RequestID, "vehicle", string(req.Vehicle), "price", req.Price)
	return req, nil
}

// Cancel abandons the outstanding request and returns to Idle. Purely
// local: no message is published and drivers are not notified.
func (s *RiderSession) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != RiderSearching {
		return ErrNotSearching
	}
	s.state = RiderIdle
	s.active = nil
	s.bids = nil
	return nil
}

// AcceptBid records the acceptance with the backend and transitions to
// Confirmed. On gateway failure the session stays Searching so the rider
// can retry; competing drivers are never notified either way.
func (s *RiderSession) AcceptBid(ctx context.Context, bid models.Bid) error {
	s.mu.Lock()
	if s.state != RiderSearching || s.active == nil {
		s.mu.Unlock()
		return ErrNotSearching
	}
	rideID := s.active.RequestID
	s.mu.Unlock()

	if err := s.gw.AcceptBid(ctx, rideID, bid.DriverID, bid.Amount); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = RiderConfirmed
	s.active = nil
	s.bids = nil
	s.mu.Unlock()
	s.log.Info("ride confirmed", "request_id", rideID, "driver", bid.DriverName, "amount", bid.Amount)
	return nil
}

// State returns the current negotiation state.
func (s *RiderSession) State() RiderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveRequest returns the outstanding request, if any.
func (s *RiderSession) ActiveRequest() *models.RideRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	cp := *s.active
	return &cp
}

// Bids returns the collected bids, most recent first.
func (s *RiderSession) Bids() []models.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Bid, len(s.bids))
	copy(out, s.bids)
	return out
}

// ConnectionStatus mirrors the manager's status as last observed.
func (s *RiderSession) ConnectionStatus() transport.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connStatus
}

// Close detaches the session from the connection. The connection itself
// stays up for other sessions.
func (s *RiderSession) Close() {
	s.unsubBids()
	s.unsubStatus()
}
