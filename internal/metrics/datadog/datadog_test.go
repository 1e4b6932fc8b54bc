package datadog

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"sttmgen/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "test",
		FlushEvery: time.Hour, // the loop never fires during a test
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func TestFlush_SubmitsBufferedCounters(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.MetricRowsTotal, 3, metrics.Labels{"kind": "MASTER"})
	b.IncCounter(metrics.MetricRowsTotal, 2, metrics.Labels{"kind": "MASTER"})
	b.IncCounter(metrics.MetricStatementsTotal, 1, metrics.Labels{"kind": "view"})

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	payload, ok := sub.last()
	if !ok {
		t.Fatalf("nothing submitted")
	}
	if len(payload.Series) != 2 {
		t.Fatalf("series = %+v", payload.Series)
	}

	// Deltas to the same series accumulate into one point.
	var rows *datadogV2.MetricSeries
	for i := range payload.Series {
		if payload.Series[i].Metric == "sttm.rows.total" {
			rows = &payload.Series[i]
		}
	}
	if rows == nil {
		t.Fatalf("sttm.rows.total missing: %+v", payload.Series)
	}
	if got := *rows.Points[0].Value; got != 5 {
		t.Fatalf("accumulated value = %v; want 5", got)
	}
	joined := strings.Join(rows.Tags, ",")
	if !strings.Contains(joined, "job:test") || !strings.Contains(joined, "kind:MASTER") {
		t.Fatalf("tags = %v", rows.Tags)
	}
}

func TestFlush_EmptyBufferSubmitsNothing(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := sub.last(); ok {
		t.Fatalf("empty flush should not submit")
	}
}

func TestFlush_ResetsBuffers(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.MetricDiagnostics, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	sub.mu.Lock()
	n := len(sub.payloads)
	sub.mu.Unlock()
	if n != 1 {
		t.Fatalf("second flush must be a no-op; got %d payloads", n)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestIncCounter_IgnoresNonPositiveDelta(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.MetricDiagnostics, 0, nil)
	b.IncCounter(metrics.MetricDiagnostics, -4, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := sub.last(); ok {
		t.Fatalf("non-positive deltas should not be buffered")
	}
}

func TestBuildSeries_HistogramPercentiles(t *testing.T) {
	t.Parallel()

	b := &Backend{baseTags: []string{"job:test"}}
	key := seriesKey{name: metrics.MetricRunSeconds}
	s := snapshot{
		counters: map[seriesKey]float64{},
		samples: map[seriesKey][]float64{
			key: {0.4, 0.1, 0.2, 0.3},
		},
	}

	series := b.buildSeries(s, 1700000000)
	got := map[string]float64{}
	for _, sr := range series {
		got[sr.Metric] = *sr.Points[0].Value
	}
	want := map[string]float64{
		"sttm.run.duration.seconds.p50":   0.2,
		"sttm.run.duration.seconds.p95":   0.4,
		"sttm.run.duration.seconds.max":   0.4,
		"sttm.run.duration.seconds.count": 4,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("series = %v; want %v", got, want)
	}
}

func TestEncodeLabels_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := encodeLabels(metrics.Labels{"kind": "view", "group": "cust"})
	b := encodeLabels(metrics.Labels{"group": "cust", "kind": "view"})
	if a != b || a != "group:cust,kind:view" {
		t.Fatalf("encodeLabels = %q vs %q", a, b)
	}
	if encodeLabels(nil) != "" {
		t.Fatalf("nil labels must encode empty")
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	got := ParseTagsCSV(" env:prod , team:data ,,")
	if !reflect.DeepEqual(got, []string{"env:prod", "team:data"}) {
		t.Fatalf("ParseTagsCSV = %v", got)
	}
	if ParseTagsCSV("") != nil {
		t.Fatalf("empty input must give nil")
	}
}
