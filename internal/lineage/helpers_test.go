package lineage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"specimentrack/internal/idcodec"
	"specimentrack/pkg/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[int64]domain.Specimen
	saves   int
	now     time.Time
	failGet error
}

func newFakeStore(specimens ...domain.Specimen) *fakeStore {
	s := &fakeStore{
		records: make(map[int64]domain.Specimen),
		now:     time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, sp := range specimens {
		sp.CreatedAt = s.now
		sp.UpdatedAt = s.now
		s.records[sp.ID] = sp
	}
	return s
}

func (s *fakeStore) GetSpecimen(_ context.Context, id int64) (domain.Specimen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return domain.Specimen{}, s.failGet
	}
	sp, ok := s.records[id]
	if !ok {
		return domain.Specimen{}, domain.NotFound(domain.EntitySpecimen, id)
	}
	return sp, nil
}

func (s *fakeStore) SaveSpecimen(_ context.Context, sp domain.Specimen) (domain.Specimen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[sp.ID]; !ok {
		return domain.Specimen{}, domain.NotFound(domain.EntitySpecimen, sp.ID)
	}
	s.now = s.now.Add(time.Minute)
	sp.UpdatedAt = s.now
	s.records[sp.ID] = sp
	s.saves++
	return sp, nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *fakeStore) record(t *testing.T, id int64) domain.Specimen {
	t.Helper()
	sp, err := s.GetSpecimen(context.Background(), id)
	if err != nil {
		t.Fatalf("load specimen %d: %v", id, err)
	}
	return sp
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(entry string) {
	c.mu.Lock()
	c.calls = append(c.calls, entry)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

func (c *captureLogger) has(entry string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call == entry {
			return true
		}
	}
	return false
}

type captureObserver struct {
	mu    sync.Mutex
	kinds map[RepairKind]int
}

func (c *captureObserver) ObserveRepair(_ context.Context, kind RepairKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kinds == nil {
		c.kinds = make(map[RepairKind]int)
	}
	c.kinds[kind]++
}

func (c *captureObserver) count(kind RepairKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kinds[kind]
}

// singleOnlyCodec hides the legacy decoder of the wrapped codec.
type singleOnlyCodec struct{ inner *idcodec.Codec }

func (c singleOnlyCodec) Encode(id int64) string             { return c.inner.Encode(id) }
func (c singleOnlyCodec) Decode(token string) (int64, error) { return c.inner.Decode(token) }

func newCodec(t *testing.T) *idcodec.Codec {
	t.Helper()
	c, err := idcodec.New("lineage-test-secret")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return c
}

type harness struct {
	codec    *idcodec.Codec
	store    *fakeStore
	logger   *captureLogger
	observer *captureObserver
	engine   *Engine
}

func newHarness(t *testing.T, specimens ...domain.Specimen) harness {
	t.Helper()
	h := harness{
		codec:    newCodec(t),
		store:    newFakeStore(specimens...),
		logger:   &captureLogger{},
		observer: &captureObserver{},
	}
	h.engine = NewEngine(h.codec, h.store, WithLogger(h.logger), WithObserver(h.observer))
	return h
}

func specimen(id int64, attrs map[string]any) domain.Specimen {
	return domain.Specimen{
		Base:       domain.Base{ID: id},
		Barcode:    "BC" + string(rune('A'+id%26)),
		ProjectID:  1,
		Attributes: domain.NewAttributes(attrs),
	}
}

var errBoom = errors.New("boom")
