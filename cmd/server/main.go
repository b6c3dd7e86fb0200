package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/auth"
	"github.com/henriqu3-99/Lehgo/internal/config"
	"github.com/henriqu3-99/Lehgo/internal/eta"
	"github.com/henriqu3-99/Lehgo/internal/geo"
	"github.com/henriqu3-99/Lehgo/internal/httpapi"
	"github.com/henriqu3-99/Lehgo/internal/logging"
	"github.com/henriqu3-99/Lehgo/internal/payments"
	"github.com/henriqu3-99/Lehgo/internal/storage"
	"github.com/henriqu3-99/Lehgo/internal/transport"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("error").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.LogLevel)

	var store storage.Store = storage.NewMemoryStore()
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Error("postgres unavailable", "err", err)
			os.Exit(1)
		}
		defer ps.Close()
		if cfg.RunMigrations {
			path := filepath.Join(cfg.MigrationsDir, "001_create_schema.sql")
			if err := ps.Migrate(context.Background(), path); err != nil {
				log.Error("migration failed", "path", path, "err", err)
				os.Exit(1)
			}
			log.Info("migration applied", "path", path)
		}
		store = ps
	}

	var presence geo.Presence = geo.NewIndex()
	if cfg.RedisAddr != "" {
		presence = geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	}

	var codes auth.CodeStore = auth.NewMemoryStore()
	if cfg.RedisAddr != "" {
		codes = auth.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
	}
	var sender auth.Sender = auth.LogSender{Log: log}
	if cfg.TwilioFrom != "" {
		sender = auth.NewTwilioSender(cfg.TwilioFrom)
	}
	otp := auth.New(codes, sender, cfg.OTPTTL, log)

	hub := httpapi.NewHub(log)
	var bus httpapi.Publisher = hub
	if cfg.BrokerURL != "" {
		// mirror server broadcasts onto the external broker so MQTT
		// clients and hub clients see the same traffic
		mgr := transport.NewManager(transport.NewMQTT(cfg.BrokerURL, "lehgo-server"), log)
		if err := mgr.Connect(context.Background()); err != nil {
			log.Error("broker connect failed", "url", cfg.BrokerURL, "err", err)
			os.Exit(1)
		}
		defer mgr.Close()
		bus = multiBus{hub, managerBus{mgr}}
	}

	srv := httpapi.NewServer(store, presence, bus, otp, hub, log)
	srv.NearbyLimit = cfg.NearbyLimit

	var est eta.Client = eta.Naive{SpeedMps: cfg.DefaultSpeedMps}
	if cfg.OSRMEndpoint != "" {
		est = &eta.Cached{Inner: eta.NewOSRMClient(cfg.OSRMEndpoint), Cache: eta.NewCache(time.Minute)}
	}
	srv.ETA = est

	if os.Getenv("STRIPE_API_KEY") != "" {
		srv.Payments = payments.NewStripeClient()
	}

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("gateway listening", "addr", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "err", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}
}

// managerBus adapts the client transport manager to the server Publisher.
type managerBus struct{ m *transport.Manager }

func (b managerBus) Publish(topic string, payload []byte) error {
	b.m.Publish(topic, payload)
	return nil
}

type multiBus []httpapi.Publisher

func (m multiBus) Publish(topic string, payload []byte) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
