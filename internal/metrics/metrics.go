// Package metrics counts relocation, rewrite, localisation, and orphan
// outcomes on a private prometheus registry. mediafold runs as a short-lived
// command, so the registry is exported to a node-exporter textfile instead of
// being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediafold"

// Recorder holds the counters. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	relocations        *prometheus.CounterVec
	variantFailures    prometheus.Counter
	documentsRewritten prometheus.Counter
	unresolved         prometheus.Counter
	orphans            *prometheus.CounterVec
	localized          *prometheus.CounterVec
	syncDuration       prometheus.Histogram
	lastRun            prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		relocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relocations_total",
			Help:      "Media relocation attempts by outcome",
		}, []string{"outcome"}),
		variantFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variant_failures_total",
			Help:      "Size variant or original moves that failed after the main file moved",
		}),
		documentsRewritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rewritten_total",
			Help:      "Content bodies written back after reference repair",
		}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_unresolved_total",
			Help:      "Body references left untouched because no owner was found",
		}),
		orphans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphans_total",
			Help:      "Orphan checks by verdict",
		}, []string{"verdict"}),
		localized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "localized_total",
			Help:      "Remote image references by localisation result",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of one content sync",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last sync finished",
		}),
	}
	r.registry.MustRegister(
		r.relocations,
		r.variantFailures,
		r.documentsRewritten,
		r.unresolved,
		r.orphans,
		r.localized,
		r.syncDuration,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Relocation counts one media relocation attempt by outcome label.
func (r *Recorder) Relocation(outcome string) {
	if r == nil {
		return
	}
	r.relocations.WithLabelValues(outcome).Inc()
}

// VariantFailures adds n variant files that failed to move.
func (r *Recorder) VariantFailures(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.variantFailures.Add(float64(n))
}

// DocumentsRewritten adds n documents whose references were rewritten.
func (r *Recorder) DocumentsRewritten(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.documentsRewritten.Add(float64(n))
}

// Unresolved adds n references that could not be mapped to a file.
func (r *Recorder) Unresolved(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.unresolved.Add(float64(n))
}

// Orphan counts one orphan check by its verdict, e.g. deleted or retained.
func (r *Recorder) Orphan(verdict string) {
	if r == nil {
		return
	}
	r.orphans.WithLabelValues(verdict).Inc()
}

// Localized counts one remote image localization by result.
func (r *Recorder) Localized(result string) {
	if r == nil {
		return
	}
	r.localized.WithLabelValues(result).Inc()
}

// SyncFinished observes one sync's duration and stamps the last-run gauge.
func (r *Recorder) SyncFinished(elapsed time.Duration) {
	if r == nil {
		return
	}
	r.syncDuration.Observe(elapsed.Seconds())
	r.lastRun.SetToCurrentTime()
}

// WriteTextfile writes the registry in text exposition format. An empty
// path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
