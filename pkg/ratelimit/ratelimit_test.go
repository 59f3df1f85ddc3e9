package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalFallbackEnforcesCapacity(t *testing.T) {
	l := New(nil, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "client-a") {
			t.Fatalf("request %d denied under capacity", i)
		}
	}
	if l.Allow(ctx, "client-a") {
		t.Error("request over capacity allowed")
	}
	// Other keys are unaffected.
	if !l.Allow(ctx, "client-b") {
		t.Error("independent key denied")
	}
}

func TestLocalFallbackWindowReset(t *testing.T) {
	l := newLocalLimiter(1, 10*time.Millisecond)
	if !l.allow("k") {
		t.Fatal("first request denied")
	}
	if l.allow("k") {
		t.Fatal("second request in window allowed")
	}
	time.Sleep(15 * time.Millisecond)
	if !l.allow("k") {
		t.Error("request after window reset denied")
	}
}
