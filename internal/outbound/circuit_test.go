package outbound

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	b := NewBreaker("paypal", 4, 0.5, time.Minute, zerolog.Nop())

	b.Report(true)
	b.Report(false)
	b.Report(false)
	if got := b.CurrentState(); got != Closed {
		t.Fatalf("expected closed before min requests, got %s", got)
	}
	b.Report(false)
	if got := b.CurrentState(); got != Open {
		t.Fatalf("expected open, got %s", got)
	}
	if b.Allow() {
		t.Fatal("open breaker must refuse requests")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker("pesapal", 1, 0.5, 10*time.Millisecond, zerolog.Nop())
	b.Report(false)
	if got := b.CurrentState(); got != Open {
		t.Fatalf("expected open, got %s", got)
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should allow a probe after cool-off")
	}
	if got := b.CurrentState(); got != HalfOpen {
		t.Fatalf("expected half_open, got %s", got)
	}

	b.Report(true)
	if got := b.CurrentState(); got != Closed {
		t.Fatalf("expected closed after successful probe, got %s", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("pesapal", 1, 0.5, 10*time.Millisecond, zerolog.Nop())
	b.Report(false)
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected probe permitted")
	}
	b.Report(false)
	if got := b.CurrentState(); got != Open {
		t.Fatalf("expected reopened breaker, got %s", got)
	}
}

func TestNilBreakerAlwaysAllows(t *testing.T) {
	var b *Breaker
	if !b.Allow() {
		t.Fatal("nil breaker must allow")
	}
	b.Report(false)
}
