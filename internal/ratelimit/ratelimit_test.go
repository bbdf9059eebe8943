package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(3, 10*time.Second)
	for i := 0; i < 3; i++ {
		if !l.Allow("u1") {
			t.Fatalf("event %d denied", i)
		}
	}
	if l.Allow("u1") {
		t.Fatal("fourth event allowed")
	}
}

func TestSendersIndependent(t *testing.T) {
	l := New(1, 10*time.Second)
	if !l.Allow("a") {
		t.Fatal("a denied")
	}
	if !l.Allow("b") {
		t.Fatal("b denied")
	}
	if l.Allow("a") {
		t.Fatal("a second event allowed")
	}
}

func TestWindowSlides(t *testing.T) {
	now := time.Now()
	l := New(2, 10*time.Second)
	l.now = func() time.Time { return now }

	if !l.Allow("u") || !l.Allow("u") {
		t.Fatal("initial events denied")
	}
	if l.Allow("u") {
		t.Fatal("over-limit event allowed")
	}

	now = now.Add(11 * time.Second)
	if !l.Allow("u") {
		t.Fatal("event denied after window passed")
	}
}

func TestDeniedEventsNotRecorded(t *testing.T) {
	now := time.Now()
	l := New(1, 10*time.Second)
	l.now = func() time.Time { return now }

	l.Allow("u")
	for i := 0; i < 5; i++ {
		l.Allow("u")
	}
	// Only the accepted event must age out for recovery.
	now = now.Add(11 * time.Second)
	if !l.Allow("u") {
		t.Fatal("denied events extended the window")
	}
}

func TestZeroLimitDisables(t *testing.T) {
	l := New(0, time.Second)
	for i := 0; i < 100; i++ {
		if !l.Allow("u") {
			t.Fatal("disabled limiter denied")
		}
	}
}
