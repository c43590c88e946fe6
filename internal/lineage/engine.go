// Package lineage keeps specimen parent links and pedigree attributes
// consistent. It classifies and repairs stored parent references, copies the
// inheritable attributes from parent to child, and walks ancestor chains.
//
// Repairs happen lazily on read: every verified specimen converges towards
// canonical data and re-verifying canonical data performs no writes.
package lineage

import (
	"context"

	"specimentrack/pkg/domain"
)

// Codec converts between internal ids and external tokens.
type Codec interface {
	Encode(id int64) string
	Decode(token string) (int64, error)
}

// LegacyDecoder undoes the historical double encoding of parent references.
type LegacyDecoder interface {
	DecodeDoubleEncoded(token string) (int64, error)
}

// RecordStore loads and persists specimens. GetSpecimen returns an error
// matching domain.ErrNotFound when the id does not exist. SaveSpecimen
// refreshes the update timestamp.
type RecordStore interface {
	GetSpecimen(ctx context.Context, id int64) (domain.Specimen, error)
	SaveSpecimen(ctx context.Context, specimen domain.Specimen) (domain.Specimen, error)
}

// Logger is the structured logger used for repair events.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// RepairKind labels an observed repair or anomaly.
type RepairKind string

const (
	RepairParentID         RepairKind = "parent_id_normalized"
	RepairAttributes       RepairKind = "attributes_reconciled"
	RepairDanglingParent   RepairKind = "dangling_parent"
	RepairIntegrityFailure RepairKind = "integrity_failure"
	RepairCycle            RepairKind = "cycle_detected"
)

// Observer receives repair events, typically to increment counters.
type Observer interface {
	ObserveRepair(ctx context.Context, kind RepairKind)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopObserver struct{}

func (noopObserver) ObserveRepair(context.Context, RepairKind) {}

// Engine bundles the collaborators shared by the resolver, reconciler, path
// builder and verifier. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	codec    Codec
	legacy   LegacyDecoder
	store    RecordStore
	logger   Logger
	observer Observer
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger overrides the default no-op logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a repair observer.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// WithLegacyDecoder sets the decoder used for double-encoded references.
// When the codec itself implements LegacyDecoder it is used by default.
func WithLegacyDecoder(legacy LegacyDecoder) Option {
	return func(e *Engine) {
		e.legacy = legacy
	}
}

// NewEngine builds an engine over the supplied codec and record store.
func NewEngine(codec Codec, store RecordStore, opts ...Option) *Engine {
	e := &Engine{
		codec:    codec,
		store:    store,
		logger:   noopLogger{},
		observer: noopObserver{},
	}
	if legacy, ok := codec.(LegacyDecoder); ok {
		e.legacy = legacy
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) observe(ctx context.Context, kind RepairKind) {
	e.observer.ObserveRepair(ctx, kind)
}
