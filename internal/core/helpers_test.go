package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"specimentrack/internal/idcodec"
	"specimentrack/pkg/domain"
)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

// tickingClock advances by one minute on every call.
type tickingClock struct{ t time.Time }

func (c *tickingClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }

func (c *captureLogger) has(call string) bool {
	for _, got := range c.calls {
		if got == call {
			return true
		}
	}
	return false
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func newTestCodec(t *testing.T) *idcodec.Codec {
	t.Helper()
	codec, err := idcodec.New("test-secret")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return codec
}

func newTestService(t *testing.T, opts ...Option) (*Service, *idcodec.Codec) {
	t.Helper()
	codec := newTestCodec(t)
	return NewInMemoryService(nil, codec, opts...), codec
}

func mustProject(t *testing.T, svc *Service, codec *idcodec.Codec, name string, roleID int64) ProjectView {
	t.Helper()
	view, err := svc.CreateProject(context.Background(), ProjectInput{Name: name, RoleID: codec.Encode(roleID)})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return view
}

func mustSpecimen(t *testing.T, svc *Service, input SpecimenInput) SpecimenView {
	t.Helper()
	view, err := svc.CreateSpecimen(context.Background(), input)
	if err != nil {
		t.Fatalf("create specimen %s: %v", input.Barcode, err)
	}
	return view
}

// seedSpecimens writes raw records straight into the store, bypassing the
// service so legacy parent references can be fabricated.
func seedSpecimens(t *testing.T, store PersistentStore, specimens ...Specimen) []Specimen {
	t.Helper()
	out := make([]Specimen, 0, len(specimens))
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		for _, sp := range specimens {
			created, err := tx.CreateSpecimen(sp)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	}); err != nil {
		t.Fatalf("seed specimens: %v", err)
	}
	return out
}

func decodeID(t *testing.T, codec *idcodec.Codec, token string) int64 {
	t.Helper()
	id, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("decode %s: %v", token, err)
	}
	return id
}

func storedSpecimen(t *testing.T, svc *Service, id int64) Specimen {
	t.Helper()
	sp, ok := svc.Store().GetSpecimen(id)
	if !ok {
		t.Fatalf("specimen %d not stored", id)
	}
	return sp
}

func attrs(values map[string]any) domain.Attributes {
	return domain.NewAttributes(values)
}

func joinCalls(calls []string) string {
	return strings.Join(calls, ",")
}
