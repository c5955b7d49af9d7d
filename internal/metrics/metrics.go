// Package metrics exposes engine events as Prometheus counters.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"portfolioSwap/internal/events"
)

// Emitter counts committed events by type and engine.
type Emitter struct {
	events *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultEmitter *Emitter
)

// Default returns an Emitter registered with the default Prometheus registry.
func Default() *Emitter {
	defaultOnce.Do(func() {
		defaultEmitter = NewEmitter(prometheus.DefaultRegisterer)
	})
	return defaultEmitter
}

// NewEmitter builds an Emitter and registers its collectors with reg.
func NewEmitter(reg prometheus.Registerer) *Emitter {
	m := &Emitter{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Count of committed engine events segmented by engine and type.",
		}, []string{"engine", "type"}),
	}
	if reg != nil {
		reg.MustRegister(m.events)
	}
	return m
}

// Emit implements events.Emitter.
func (m *Emitter) Emit(ev events.Event) {
	if m == nil {
		return
	}
	eventType := strings.TrimSpace(ev.Type)
	if eventType == "" {
		eventType = "unknown"
	}
	engine := eventType
	if idx := strings.IndexByte(eventType, '.'); idx > 0 {
		engine = eventType[:idx]
	}
	m.events.WithLabelValues(engine, eventType).Inc()
}

// Counter returns the counter for an event type, for inspection.
func (m *Emitter) Counter(engine, eventType string) prometheus.Counter {
	return m.events.WithLabelValues(engine, eventType)
}
