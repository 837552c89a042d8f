package ratelimit

import (
	"testing"
	"time"
)

func TestAllowPermitsUpToBurstThenRejects(t *testing.T) {
	l, err := New(time.Minute, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Allow("1.2.3.4") || !l.Allow("1.2.3.4") {
		t.Fatalf("expected the first two requests within burst to be allowed")
	}
	if l.Allow("1.2.3.4") {
		t.Fatalf("expected the third request to be rejected")
	}
}

func TestAllowTracksIPsIndependently(t *testing.T) {
	l, err := New(time.Minute, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Allow("1.2.3.4") {
		t.Fatalf("expected first IP's first request to be allowed")
	}
	if !l.Allow("5.6.7.8") {
		t.Fatalf("expected a different IP to have its own bucket")
	}
}

func TestNewSetBuildsBothLimiters(t *testing.T) {
	set, err := NewSet(time.Minute, 120, time.Minute, 40)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if set.General == nil || set.Submit == nil {
		t.Fatalf("expected both limiters to be constructed")
	}
}
