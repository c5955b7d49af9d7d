package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"portfolioSwap/internal/events"
)

func TestEmitterCountsByType(t *testing.T) {
	m := NewEmitter(prometheus.NewRegistry())
	m.Emit(events.Event{Type: events.TypePortfolioPurchased})
	m.Emit(events.Event{Type: events.TypePortfolioPurchased})
	m.Emit(events.Event{Type: events.TypeActionsMinted})
	m.Emit(events.Event{})

	if got := testutil.ToFloat64(m.Counter("portfolio", events.TypePortfolioPurchased)); got != 2 {
		t.Fatalf("expected 2 purchases, got %v", got)
	}
	if got := testutil.ToFloat64(m.Counter("actions", events.TypeActionsMinted)); got != 1 {
		t.Fatalf("expected 1 mint, got %v", got)
	}
	if got := testutil.ToFloat64(m.Counter("unknown", "unknown")); got != 1 {
		t.Fatalf("expected 1 unknown event, got %v", got)
	}
}

func TestNilEmitterIgnoresEvents(t *testing.T) {
	var m *Emitter
	m.Emit(events.Event{Type: events.TypeWithdrawn})
}
