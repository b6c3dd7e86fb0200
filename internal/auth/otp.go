// Package auth issues and verifies one-time phone verification codes.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/henriqu3-99/Lehgo/internal/observability"
)

// CodeStore holds issued codes until they are verified or expire.
// Verification consumes the code; a second attempt with the same code fails.
type CodeStore interface {
	Put(ctx context.Context, phone, code string, ttl time.Duration) error
	Take(ctx context.Context, phone string) (string, bool)
}

// Sender delivers the code to the phone.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// OTP ties a store and a sender together.
type OTP struct {
	store  CodeStore
	sender Sender
	ttl    time.Duration
	log    *slog.Logger
}

func New(store CodeStore, sender Sender, ttl time.Duration, log *slog.Logger) *OTP {
	return &OTP{store: store, sender: sender, ttl: ttl, log: log}
}

// Issue generates a 6-digit code, stores it and sends it. A send failure
// does not invalidate the stored code: dev setups without SMS credentials
// read the code from the log.
func (o *OTP) Issue(ctx context.Context, phone string) (string, error) {
	code := fmt.Sprintf("%06d", rand.Intn(1000000))
	if err := o.store.Put(ctx, phone, code, o.ttl); err != nil {
		return "", err
	}
	observability.OTPIssued.Inc()
	if err := o.sender.Send(ctx, phone, code); err != nil {
		o.log.Warn("otp send failed, code kept", "phone", phone, "err", err)
	}
	return code, nil
}

// Verify checks the code and consumes it on success.
func (o *OTP) Verify(ctx context.Context, phone, code string) bool {
	stored, ok := o.store.Take(ctx, phone)
	return ok && stored == code
}

// MemoryStore keeps codes in-process with expiry. Single-gateway setups
// only; replicated gateways use RedisStore.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
}

type memoryCode struct {
	code    string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]memoryCode)}
}

func (m *MemoryStore) Put(_ context.Context, phone, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[phone] = memoryCode{code: code, expires: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, phone string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[phone]
	if !ok {
		return "", false
	}
	delete(m.codes, phone)
	if time.Now().After(c.expires) {
		return "", false
	}
	return c.code, true
}

// RedisStore keeps codes in Redis so any gateway replica can verify.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func (r *RedisStore) Put(ctx context.Context, phone, code string, ttl time.Duration) error {
	return r.client.Set(ctx, otpKey(phone), code, ttl).Err()
}

func (r *RedisStore) Take(ctx context.Context, phone string) (string, bool) {
	code, err := r.client.GetDel(ctx, otpKey(phone)).Result()
	if err != nil {
		return "", false
	}
	return code, true
}

func otpKey(phone string) string { return "otp:" + phone }

// TwilioSender sends the code by SMS.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(from string) *TwilioSender {
	return &TwilioSender{client: twilio.NewRestClient(), from: from}
}

func (t *TwilioSender) Send(_ context.Context, phone, code string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(t.from)
	params.SetBody(fmt.Sprintf("Your LehGo verification code is: %s", code))
	_, err := t.client.Api.CreateMessage(params)
	return err
}

// LogSender writes the code to the log instead of sending SMS.
type LogSender struct {
	Log *slog.Logger
}

func (l LogSender) Send(_ context.Context, phone, code string) error {
	l.Log.Info("dev mode otp", "phone", phone, "code", code)
	return nil
}
