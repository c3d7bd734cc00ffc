// internal/metrics/recorder.go
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/deye-bridge/internal/fault"
	"github.com/tamzrod/deye-bridge/internal/status"
)

const namespace = "deye"

// Recorder turns poll outcomes into Prometheus series.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	cycles         *prometheus.CounterVec
	chunkFailures  *prometheus.CounterVec
	publishErrors  prometheus.Counter
	cycleDuration  prometheus.Histogram
	lastSuccess    prometheus.Gauge
	observations   prometheus.Gauge
	health         prometheus.Gauge
	secondsInError prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by result (ok or the failure kind).",
		}, []string{"result"}),
		chunkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_failures_total",
			Help:      "Failed register range reads by range and failure kind.",
		}, []string{"range", "kind"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Observation batches that failed to publish.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of one poll cycle.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful cycle.",
		}),
		observations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observations",
			Help:      "Observations produced by the last cycle.",
		}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_code",
			Help:      "0 unknown, 1 ok, 2 error, 3 stale.",
		}),
		secondsInError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seconds_in_error",
			Help:      "Duration of the current error streak.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.cycles, r.chunkFailures, r.publishErrors, r.cycleDuration,
		r.lastSuccess, r.observations, r.health, r.secondsInError,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return r, nil
}

// ObserveCycle records a finished cycle.
func (r *Recorder) ObserveCycle(at time.Time, took time.Duration, observations int, err error) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(fault.Label(err)).Inc()
	r.cycleDuration.Observe(took.Seconds())
	r.observations.Set(float64(observations))
	if err == nil {
		r.lastSuccess.Set(float64(at.Unix()))
	}
}

// ObserveChunkFailure records one failed range read.
func (r *Recorder) ObserveChunkFailure(first, last uint16, err error) {
	if r == nil {
		return
	}
	r.chunkFailures.WithLabelValues(fmt.Sprintf("0x%02x-0x%02x", first, last), fault.Label(err)).Inc()
}

func (r *Recorder) ObservePublishError() {
	if r == nil {
		return
	}
	r.publishErrors.Inc()
}

func (r *Recorder) SetStatus(s status.Snapshot) {
	if r == nil {
		return
	}
	r.health.Set(float64(s.Health))
	r.secondsInError.Set(float64(s.SecondsInError))
}
