package eta

import (
	"errors"
	"testing"
	"time"
)

func TestNaiveEstimate(t *testing.T) {
	n := Naive{SpeedMps: 10}
	// ~1 degree of latitude is ~111km, so 0.01 deg is ~1.11km -> ~111s at 10 m/s.
	secs, err := n.EstimateSeconds(6.30, -10.80, 6.31, -10.80)
	if err != nil {
		t.Fatalf("EstimateSeconds: %v", err)
	}
	if secs < 100 || secs > 125 {
		t.Fatalf("eta = %f, want ~111", secs)
	}
}

type countingClient struct {
	calls int
	err   error
}

func (c *countingClient) EstimateSeconds(_, _, _, _ float64) (float64, error) {
	c.calls++
	return 42, c.err
}

func TestCachedAvoidsRepeatLookups(t *testing.T) {
	inner := &countingClient{}
	c := &Cached{Inner: inner, Cache: NewCache(time.Minute)}

	for i := 0; i < 3; i++ {
		v, err := c.EstimateSeconds(1, 2, 3, 4)
		if err != nil || v != 42 {
			t.Fatalf("EstimateSeconds = %f, %v", v, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	inner := &countingClient{err: errors.New("boom")}
	c := &Cached{Inner: inner, Cache: NewCache(time.Minute)}

	if _, err := c.EstimateSeconds(1, 2, 3, 4); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.EstimateSeconds(1, 2, 3, 4); err == nil {
		t.Fatal("expected error on retry")
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
}
