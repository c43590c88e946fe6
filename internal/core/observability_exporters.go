package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"specimentrack/internal/lineage"
)

// PrometheusMetricsRecorder exports operation outcomes, operation latency and
// lineage repair counts. It implements both MetricsRecorder and
// lineage.Observer, so a single value passed to WithMetricsRecorder covers both.
type PrometheusMetricsRecorder struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	repairsTotal      *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewPrometheusMetricsRecorder creates the recorder and registers it with
// registry. A nil registry gets a fresh one.
func NewPrometheusMetricsRecorder(registry *prometheus.Registry) (*PrometheusMetricsRecorder, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &PrometheusMetricsRecorder{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PrometheusMetricsRecorder) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specimentrack_operations_total",
			Help: "Total number of service operations",
		},
		[]string{"operation", "status"}, // status: success, error
	)
	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "specimentrack_operation_duration_seconds",
			Help:    "Time taken by service operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"operation"},
	)
	m.repairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specimentrack_lineage_repairs_total",
			Help: "Lineage repairs and anomalies observed on the read path",
		},
		[]string{"kind"},
	)
	m.collectors = []prometheus.Collector{m.operationsTotal, m.operationDuration, m.repairsTotal}
}

// Describe implements prometheus.Collector.
func (m *PrometheusMetricsRecorder) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *PrometheusMetricsRecorder) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Registry returns the registry the recorder is registered with.
func (m *PrometheusMetricsRecorder) Registry() *prometheus.Registry {
	return m.registry
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveRepair implements lineage.Observer.
func (m *PrometheusMetricsRecorder) ObserveRepair(_ context.Context, kind lineage.RepairKind) {
	m.repairsTotal.WithLabelValues(string(kind)).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *PrometheusMetricsRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// JSONTraceEntry represents a serialized trace span emitted by JSONTraceTracer.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes spans as JSON lines and keeps them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
	now     func() time.Time
}

// NewJSONTracer constructs a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: t.now()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := s.tracer.now()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}
