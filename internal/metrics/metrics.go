// Package metrics records operational metrics for a magload run behind a
// small, backend-agnostic interface.
//
// A global, pluggable backend defaults to a no-op, so instrumentation is
// always safe to call. Concrete systems live in subpackages (prompush for a
// Prometheus Pushgateway, datadog for DogStatsD); the run only depends on
// this package.
//
// A batch run is short-lived, so backends buffer and the caller invokes
// Flush once before exiting.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal           = "magload_step_total"
	StepDurationSeconds = "magload_step_duration_seconds"
	RecordsTotal        = "magload_records_total"
	RunsTotal           = "magload_runs_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep measures latency and outcome of one stage (extract, transform,
// load).
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta to the record counter of the given kind. Kinds mirror
// the run summary:
//   - "read"
//   - "remapped"
//   - "amount_dropped"
//   - "status_dropped"
//   - "inserted"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordRun counts one finished run. kind is the error category of a failed
// run and empty on success.
func RecordRun(job, kind string, err error) {
	lbls := Labels{"job": job, "status": status(err)}
	if kind != "" {
		lbls["error_kind"] = kind
	}
	backend.IncCounter(RunsTotal, 1, lbls)
}
