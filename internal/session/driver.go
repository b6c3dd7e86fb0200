package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/henriqu3-99/Lehgo/internal/models"
	"github.com/henriqu3-99/Lehgo/internal/observability"
	"github.com/henriqu3-99/Lehgo/internal/transport"
	"github.com/henriqu3-99/Lehgo/internal/wire"
)

// DriverGateway is the slice of the backend the driver side needs.
type DriverGateway interface {
	CreateBid(ctx context.Context, rideID, driverID string, amount int64) (models.BidRecord, error)
}

// DriverSession listens for ride requests and submits bids. There is one
// steady state, Listening; each request the driver engages with is an
// independent negotiation.
//
// Requests arrive on both the global topic and the driver's targeted inbox,
// so the same request id can be seen twice; the session de-duplicates.
type DriverSession struct {
	conn       *transport.Manager
	gw         DriverGateway
	log        *slog.Logger
	driverID   string
	driverName string

	// OnRequest, if set before requests start flowing, is called for every
	// newly discovered request. Invoked from the transport goroutine
	// without the session lock held.
	OnRequest func(models.RideRequest)

	mu       sync.Mutex
	requests []models.RideRequest
	seen     map[string]struct{}

	unsubGlobal func()
	unsubInbox  func()
}

// NewDriverSession subscribes to the global request topic and the driver's
// targeted inbox.
func NewDriverSession(conn *transport.Manager, gw DriverGateway, driverID, driverName string, log *slog.Logger) *DriverSession {
	s := &DriverSession{
		conn:       conn,
		gw:         gw,
		log:        log,
		driverID:   driverID,
		driverName: driverName,
		seen:       make(map[string]struct{}),
	}
	s.unsubGlobal = conn.Subscribe(wire.TopicRequests, s.handleRequest)
	s.unsubInbox = conn.Subscribe(wire.DriverInbox(driverID), s.handleRequest)
	return s
}

func (s *DriverSession) handleRequest(msg transport.Message) {
	v, err := wire.Decode(msg.Payload)
	if err != nil {
		observability.ParseErrors.Inc()
		return
	}
	req, ok := v.(*models.RideRequest)
	if !ok {
		return
	}

	s.mu.Lock()
	if req.RequestID != "" {
		if _, dup := s.seen[req.RequestID]; dup {
			s.mu.Unlock()
			return
		}
		s.seen[req.RequestID] = struct{}{}
	}
	s.requests = append([]models.RideRequest{*req}, s.requests...)
	cb := s.OnRequest
	s.mu.Unlock()

	s.log.Info("request discovered", "request_id", req.RequestID, "destination", req.Destination, "price", req.Price)
	if cb != nil {
		cb(*req)
	}
}

// SubmitBid answers req at amount. The bid of record is written through
// the gateway first; only then is the pub/sub notification sent so the
// rider's live screen sees it. If the gateway write fails nothing is
// published and the error propagates.
func (s *DriverSession) SubmitBid(ctx context.Context, req models.RideRequest, amount int64) (models.Bid, error) {
	return s.submit(ctx, req, amount, models.RequestOptions{})
}

// SubmitCounter is SubmitBid with a different proposal: another price
// and/or feature set than the request asked for. Channel semantics are
// identical.
func (s *DriverSession) SubmitCounter(ctx context.Context, req models.RideRequest, amount int64, opts models.RequestOptions) (models.Bid, error) {
	return s.submit(ctx, req, amount, opts)
}

func (s *DriverSession) submit(ctx context.Context, req models.RideRequest, amount int64, opts models.RequestOptions) (models.Bid, error) {
	bid, err := models.NewBid(req.RequestID, s.driverID, s.driverName, amount, opts)
	if err != nil {
		return models.Bid{}, err
	}

	if _, err := s.gw.CreateBid(ctx, bid.RequestID, bid.DriverID, bid.Amount); err != nil {
		return models.Bid{}, err
	}

	topic, payload, err := wire.EncodeBid(bid)
	if err != nil {
		return models.Bid{}, err
	}
	s.conn.Publish(topic, payload)
	observability.BidsPublished.Inc()
	s.log.Info("bid submitted", "request_id", bid.RequestID, "amount", bid.Amount)
	return bid, nil
}

// Requests returns the discovered requests, most recent first.
func (s *DriverSession) Requests() []models.RideRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RideRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Close detaches the session from the connection.
func (s *DriverSession) Close() {
	s.unsubGlobal()
	s.unsubInbox()
}
