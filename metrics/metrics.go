// Package metrics collects Prometheus metrics for a run and optionally pushes
// them to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "greeting_e2e"

// Recorder implements verify.Recorder on a private registry, so repeated runs
// in one process never collide with the global default registry.
type Recorder struct {
	registry *prometheus.Registry

	generated       *prometheus.CounterVec
	sent            *prometheus.CounterVec
	sendDuration    prometheus.Histogram
	polls           prometheus.Counter
	polledEntries   prometheus.Counter
	verifyLatency   prometheus.Histogram
	offset          prometheus.Gauge
	runSuccess      prometheus.Gauge
	runDuration     prometheus.Gauge
	lastRunUnixtime prometheus.Gauge
}

// NewRecorder creates and registers the run collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_generated_total",
			Help:      "Generated greeting payloads by result.",
		}, []string{"result"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Greeting send attempts by result.",
		}, []string{"result"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Receiver round trip per greeting.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_polls_total",
			Help:      "Log API page requests during verification.",
		}),
		polledEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_entries_consumed_total",
			Help:      "Log entries consumed during verification, matched or not.",
		}),
		verifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_latency_seconds",
			Help:      "Time from send acknowledgement to observation in the log.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		offset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_offset",
			Help:      "Current verification watermark in the log.",
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last run verified every tracked greeting, else 0.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRunUnixtime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the last run.",
		}),
	}

	r.registry.MustRegister(
		r.generated, r.sent, r.sendDuration,
		r.polls, r.polledEntries, r.verifyLatency, r.offset,
		r.runSuccess, r.runDuration, r.lastRunUnixtime,
	)
	return r
}

// Registry exposes the collectors, e.g. for a /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ObserveGenerated counts one generation attempt.
func (r *Recorder) ObserveGenerated(ok bool) {
	r.generated.WithLabelValues(result(ok)).Inc()
}

// ObserveSent counts one send attempt and its duration.
func (r *Recorder) ObserveSent(ok bool, d time.Duration) {
	r.sent.WithLabelValues(result(ok)).Inc()
	r.sendDuration.Observe(d.Seconds())
}

// ObservePoll counts one log page.
func (r *Recorder) ObservePoll(entries int) {
	r.polls.Inc()
	r.polledEntries.Add(float64(entries))
}

// ObserveVerified records the latency of one verified greeting.
func (r *Recorder) ObserveVerified(latency time.Duration) {
	r.verifyLatency.Observe(latency.Seconds())
}

// SetOffset records the watermark.
func (r *Recorder) SetOffset(offset int64) {
	r.offset.Set(float64(offset))
}

// ObserveRun records the run verdict.
func (r *Recorder) ObserveRun(success bool, duration time.Duration, finished time.Time) {
	if success {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}
	r.runDuration.Set(duration.Seconds())
	r.lastRunUnixtime.Set(float64(finished.Unix()))
}

// Push sends every collected metric to the Pushgateway at url under job,
// replacing the previous push for the same grouping.
func (r *Recorder) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(r.registry)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
