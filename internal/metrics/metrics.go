// Package metrics decouples the generator from any concrete metrics vendor.
// Call sites emit counters and histograms through the package-level default
// backend; main wires a real backend (or leaves the nop in place).
package metrics

import "sync/atomic"

// Labels are free-form metric dimensions. Backends pick the labels they know
// and ignore the rest.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush submits anything buffered. Close flushes once more and releases
	// resources; treat it as call-once.
	Flush() error
	Close() error
}

// NopBackend discards everything. It is the default so library code never
// has to nil-check.
type NopBackend struct{}

func (NopBackend) IncCounter(string, float64, Labels)       {}
func (NopBackend) ObserveHistogram(string, float64, Labels) {}
func (NopBackend) Flush() error                             { return nil }
func (NopBackend) Close() error                             { return nil }

var current atomic.Value

func init() {
	current.Store(Backend(NopBackend{}))
}

// SetBackend swaps the process-wide backend. Call it once at startup, before
// concurrent emitters run.
func SetBackend(b Backend) {
	if b == nil {
		b = NopBackend{}
	}
	current.Store(b)
}

func Default() Backend { return current.Load().(Backend) }

func IncCounter(name string, delta float64, labels Labels) {
	Default().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	Default().ObserveHistogram(name, value, labels)
}

// Metric names emitted by the generation pipeline.
const (
	MetricRowsTotal        = "sttm_rows_total"         // label kind: master|xref|target
	MetricStatementsTotal  = "sttm_statements_total"   // label kind: view|table|insert
	MetricGroupErrorsTotal = "sttm_group_errors_total" // label group
	MetricDiagnostics      = "sttm_diagnostics_total"
	MetricRunSeconds       = "sttm_run_duration_seconds"
	MetricValidateSeconds  = "sttm_validate_duration_seconds"
)
