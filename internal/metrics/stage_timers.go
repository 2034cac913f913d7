package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StageTimers holds one latency histogram per named pipeline stage. It
// stands in for the source's Instrumentation.hpp counters, which only
// tally throughput; per-stage wall-clock latency has no equivalent there,
// so this is built to the Prometheus histogram convention the teacher's
// own collector uses rather than translated from C++.
type StageTimers struct {
	histograms map[string]prometheus.Histogram
}

// NewStageTimers builds one histogram per stage name, registered under
// "<prefix>_stage_duration_seconds" with a constant "stage" label.
func NewStageTimers(prefix string, stages []string) *StageTimers {
	t := &StageTimers{histograms: make(map[string]prometheus.Histogram, len(stages))}
	for _, stage := range stages {
		t.histograms[stage] = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        prefix + "_stage_duration_seconds",
			Help:        "Wall-clock time spent processing one buffer in a pipeline stage.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"stage": stage},
		})
	}
	return t
}

// Collectors returns every stage histogram for prometheus.MustRegister.
func (t *StageTimers) Collectors() []prometheus.Collector {
	cs := make([]prometheus.Collector, 0, len(t.histograms))
	for _, h := range t.histograms {
		cs = append(cs, h)
	}
	return cs
}

// Observe records the duration of one invocation of the named stage,
// silently doing nothing for an unregistered stage name.
func (t *StageTimers) Observe(stage string, d time.Duration) {
	if h, ok := t.histograms[stage]; ok {
		h.Observe(d.Seconds())
	}
}

// Time wraps fn, observing its wall-clock duration under stage.
func (t *StageTimers) Time(stage string, fn func()) {
	start := time.Now()
	fn()
	t.Observe(stage, time.Since(start))
}
