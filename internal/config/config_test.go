package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.OTPTTL != 5*time.Minute {
		t.Fatalf("OTPTTL = %v", cfg.OTPTTL)
	}
	if cfg.NearbyLimit != 10 {
		t.Fatalf("NearbyLimit = %d", cfg.NearbyLimit)
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("MIGRATE", "TRUE")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.OTPTTL != 90*time.Second {
		t.Fatalf("OTPTTL = %v", cfg.OTPTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.RunMigrations {
		t.Fatal("RunMigrations not set")
	}
}

func TestLoadServerConfigBadValues(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("NEARBY_LIMIT", "0")

	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for bad values")
	}
}

func TestLoadClientConfigTransport(t *testing.T) {
	t.Setenv("BROKER_TRANSPORT", "carrier-pigeon")
	if _, err := LoadClientConfig(); err == nil {
		t.Fatal("expected error for unknown transport")
	}

	t.Setenv("BROKER_TRANSPORT", "ws")
	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.Transport != "ws" {
		t.Fatalf("Transport = %q", cfg.Transport)
	}
}
