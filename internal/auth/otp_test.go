package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

type recordingSender struct {
	phone string
	code  string
}

func (r *recordingSender) Send(_ context.Context, phone, code string) error {
	r.phone = phone
	r.code = code
	return nil
}

func TestIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	o := New(NewMemoryStore(), sender, time.Minute, slog.New(slog.DiscardHandler))

	code, err := o.Issue(ctx, "+231770000001")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code = %q, want 6 digits", code)
	}
	if sender.phone != "+231770000001" || sender.code != code {
		t.Fatalf("sender got %q/%q", sender.phone, sender.code)
	}

	if !o.Verify(ctx, "+231770000001", code) {
		t.Fatal("valid code rejected")
	}
	// consumed: same code fails on replay
	if o.Verify(ctx, "+231770000001", code) {
		t.Fatal("replayed code accepted")
	}
}

func TestVerifyWrongCode(t *testing.T) {
	ctx := context.Background()
	o := New(NewMemoryStore(), &recordingSender{}, time.Minute, slog.New(slog.DiscardHandler))

	code, _ := o.Issue(ctx, "+231770000002")
	if o.Verify(ctx, "+231770000002", "000000") && code != "000000" {
		t.Fatal("wrong code accepted")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Put(ctx, "+1", "123456", -time.Second); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := s.Take(ctx, "+1"); ok {
		t.Fatal("expired code returned")
	}
}
