// Package metrics records reorder outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/ordinal/internal/engine"
)

const (
	namespace = "ordinal"
	subsystem = "reorder"
)

// Recorder implements engine.Notifier.
type Recorder struct {
	outcomes *prometheus.CounterVec
	writes   prometheus.Counter
	changes  prometheus.Histogram
	duration prometheus.Histogram
}

// NewRecorder registers the reorder metrics on reg.
// Registering twice on the same registry panics.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "outcomes_total",
				Help:      "Settled reorder calls by outcome kind",
			},
			[]string{"kind"},
		),
		writes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "writes_total",
				Help:      "Successful position writes",
			},
		),
		changes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "changes",
				Help:      "Items changed per planned reorder",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds",
				Help:      "Wall time of a reorder call",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// Report implements engine.Notifier.
func (r *Recorder) Report(_ context.Context, _ string, o engine.Outcome) {
	r.outcomes.WithLabelValues(string(o.Kind)).Inc()
	r.writes.Add(float64(o.Writes))
	if o.Kind == engine.KindSuccess || o.Kind == engine.KindPartialFailure {
		r.changes.Observe(float64(o.Changes))
	}
	r.duration.Observe(o.Duration.Seconds())
}

// WriteText writes everything g gathers in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
