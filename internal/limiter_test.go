package internal

import (
	"testing"
	"time"
)

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(2)
	now := time.Now()

	if !l.Allow("10.0.0.1", now) || !l.Allow("10.0.0.1", now) {
		t.Fatal("expected the burst to be allowed")
	}
	if l.Allow("10.0.0.1", now) {
		t.Error("expected the third attempt in the same instant to be limited")
	}
	if !l.Allow("10.0.0.2", now) {
		t.Error("expected other addresses to be unaffected")
	}
	if !l.Allow("10.0.0.1", now.Add(time.Second)) {
		t.Error("expected the limiter to refill")
	}
}

func TestIPLimiter_Disabled(t *testing.T) {
	l := newIPLimiter(0)
	for i := 0; i < 100; i++ {
		if !l.Allow("10.0.0.1", time.Now()) {
			t.Fatal("expected a zero rate to disable limiting")
		}
	}
}

func TestIPLimiter_Prune(t *testing.T) {
	l := newIPLimiter(1)
	now := time.Now()
	l.Allow("10.0.0.1", now)
	l.Allow("10.0.0.2", now.Add(limiterIdleTTL))

	l.prune(now.Add(limiterIdleTTL + time.Second))
	if _, ok := l.limiters["10.0.0.1"]; ok {
		t.Error("expected the idle address to be forgotten")
	}
	if _, ok := l.limiters["10.0.0.2"]; !ok {
		t.Error("expected the recent address to be kept")
	}
}
