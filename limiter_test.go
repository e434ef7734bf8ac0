package bulletin

import (
	"testing"
	"time"
)

func TestLoginLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewLoginLimiter(2, 200*time.Millisecond)
	defer limiter.Close()
	ip := "203.0.113.10"

	for i := 0; i < 2; i++ {
		if !limiter.Check(ip) {
			t.Fatalf("attempt %d: expected to be allowed", i+1)
		}
		limiter.Record(ip)
	}
	if limiter.Check(ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestLoginLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewLoginLimiter(1, 150*time.Millisecond)
	defer limiter.Close()
	ip := "203.0.113.20"

	if !limiter.Check(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	limiter.Record(ip)
	if limiter.Check(ip) {
		t.Fatalf("expected second attempt to be blocked")
	}

	time.Sleep(200 * time.Millisecond)
	if !limiter.Check(ip) {
		t.Fatalf("expected attempt after window to be allowed")
	}
}

func TestLoginLimiterCheckDoesNotRecord(t *testing.T) {
	limiter := NewLoginLimiter(1, time.Minute)
	defer limiter.Close()
	ip := "203.0.113.30"

	for i := 0; i < 3; i++ {
		if !limiter.Check(ip) {
			t.Fatalf("check %d: expected ip to be allowed", i)
		}
	}
	limiter.Record(ip)
	if limiter.Check(ip) {
		t.Fatalf("expected ip to be blocked after a recorded failure")
	}
	if !limiter.Check("203.0.113.31") {
		t.Fatalf("expected other ip to be allowed independently")
	}
}

func TestLoginLimiterCloseIsIdempotent(t *testing.T) {
	limiter := NewLoginLimiter(1, time.Millisecond)
	if err := limiter.Close(); err != nil {
		t.Fatal(err)
	}
	if err := limiter.Close(); err != nil {
		t.Fatal(err)
	}
}
