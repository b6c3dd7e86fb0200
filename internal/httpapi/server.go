// Package httpapi is the backend gateway: the HTTP source of truth for
// users, rides and bids, plus the built-in websocket broker that carries
// the live negotiation traffic.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/henriqu3-99/Lehgo/internal/auth"
	"github.com/henriqu3-99/Lehgo/internal/eta"
	"github.com/henriqu3-99/Lehgo/internal/geo"
	"github.com/henriqu3-99/Lehgo/internal/payments"
	"github.com/henriqu3-99/Lehgo/internal/storage"
)

// Publisher pushes a payload onto a pub/sub topic. The Hub satisfies it;
// deployments with an external broker wrap it together with a broker
// publisher so both sets of clients see the same traffic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Server struct {
	Store    storage.Store
	Presence geo.Presence
	Bus      Publisher
	OTP      *auth.OTP
	Payments payments.Holder // nil disables card holds, cash is the default
	ETA      eta.Client      // nil skips eta annotation
	Hub      *Hub

	NearbyLimit int

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires routes and middleware around the provided dependencies.
func NewServer(store storage.Store, presence geo.Presence, bus Publisher, otp *auth.OTP, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		Store:       store,
		Presence:    presence,
		Bus:         bus,
		OTP:         otp,
		Hub:         hub,
		NearbyLimit: 10,
		logger:      logger,
		mux:         mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/users", s.handleCreateUser).Methods("POST")
	s.mux.HandleFunc("/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/accept", s.handleAcceptRide).Methods("POST")
	s.mux.HandleFunc("/bids", s.handleCreateBid).Methods("POST")
	s.mux.HandleFunc("/drivers/nearby", s.handleNearbyDrivers).Methods("GET")
	s.mux.HandleFunc("/auth/send-otp", s.handleSendOTP).Methods("POST")
	s.mux.HandleFunc("/auth/verify-otp", s.handleVerifyOTP).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	if s.Hub != nil {
		s.mux.HandleFunc("/ws", s.Hub.HandleWS)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
