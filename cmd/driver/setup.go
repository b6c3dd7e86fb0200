package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/config"
	"github.com/henriqu3-99/Lehgo/internal/gateway"
	"github.com/henriqu3-99/Lehgo/internal/profile"
	"github.com/henriqu3-99/Lehgo/internal/transport"
)

// ensureProfile loads the saved identity, registering a new user through
// the OTP flow on first run. Dev gateways echo the code back, so the flow
// completes without a real SMS.
func ensureProfile(path, phone, name, role string, gw *gateway.Client) (profile.Profile, error) {
	prof, ok, err := profile.Load(path)
	if err != nil {
		return profile.Profile{}, err
	}
	if ok {
		return prof, nil
	}
	if phone == "" || name == "" {
		return profile.Profile{}, fmt.Errorf("first run: -phone and -name are required to register")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := gw.SendOTP(ctx, phone)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("send otp: %w", err)
	}
	code := res.DevCode
	if code == "" {
		fmt.Print("enter the code sent to your phone: ")
		if _, err := fmt.Scanln(&code); err != nil {
			return profile.Profile{}, err
		}
	}
	verified, err := gw.VerifyOTP(ctx, phone, code)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("verify otp: %w", err)
	}
	if !verified {
		return profile.Profile{}, fmt.Errorf("verification code rejected")
	}

	u, err := gw.CreateUser(ctx, gateway.UserParams{Phone: phone, Name: name, Role: role})
	if err != nil {
		return profile.Profile{}, fmt.Errorf("create user: %w", err)
	}
	prof = profile.Profile{UserID: u.ID, Phone: phone, Name: name, Role: role}
	if err := profile.Save(path, prof); err != nil {
		return profile.Profile{}, err
	}
	return prof, nil
}

func buildTransport(cfg config.ClientConfig, clientID string) (transport.Transport, error) {
	switch cfg.Transport {
	case "mqtt":
		return transport.NewMQTT(cfg.BrokerURL, clientID), nil
	case "ws":
		return transport.NewWS(cfg.BrokerURL), nil
	case "kafka":
		return transport.NewKafka(strings.Split(cfg.BrokerURL, ",")), nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}
