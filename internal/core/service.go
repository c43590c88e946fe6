package core

import (
	"context"
	"time"

	"specimentrack/internal/blob"
	"specimentrack/internal/infra/persistence/memory"
	"specimentrack/internal/lineage"
	"specimentrack/pkg/domain"
)

// Operation names reported to metrics, traces and audit entries.
const (
	opCreateProject       = "create_project"
	opListProjects        = "list_projects"
	opShowProject         = "show_project"
	opCreateSpecimen      = "create_specimen"
	opShowSpecimen        = "show_specimen"
	opFindSpecimen        = "find_specimen"
	opListSpecimens       = "list_specimens"
	opUpdateSpecimen      = "update_specimen"
	opLineagePath         = "lineage_path"
	opExportProjectReport = "export_project_report"
)

// Service exposes the specimen tracking operations. Reads run the lineage
// verification so stored data converges towards canonical form.
type Service struct {
	store      PersistentStore
	records    *RecordStore
	codec      lineage.Codec
	lineage    *lineage.Engine
	vocabulary domain.Vocabulary
	access     AccessChecker
	blobs      blob.Store
	logger     Logger
	metrics    MetricsRecorder
	tracer     Tracer
	audit      AuditRecorder
	clock      Clock
	observer   lineage.Observer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger overrides the default no-op logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder registers the operation metrics sink. When the
// recorder also implements lineage.Observer it receives repair events too.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder == nil {
			return
		}
		s.metrics = recorder
		if observer, ok := recorder.(lineage.Observer); ok && s.observer == nil {
			s.observer = observer
		}
	}
}

// WithRepairObserver registers a dedicated lineage repair observer.
func WithRepairObserver(observer lineage.Observer) Option {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithTracer registers a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder registers an audit sink for mutating operations.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithClock overrides the wall clock. Stores exposing SetNowFunc stamp
// records with the same clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock == nil {
			return
		}
		s.clock = clock
		if setter, ok := s.store.(interface{ SetNowFunc(func() time.Time) }); ok {
			setter.SetNowFunc(clock.Now)
		}
	}
}

// WithVocabulary replaces the default allow-lists.
func WithVocabulary(vocabulary domain.Vocabulary) Option {
	return func(s *Service) {
		s.vocabulary = vocabulary
	}
}

// WithAccessChecker installs the role checks. The default grants everything.
func WithAccessChecker(access AccessChecker) Option {
	return func(s *Service) {
		if access != nil {
			s.access = access
		}
	}
}

// WithBlobStore sets the destination for exported reports.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) {
		s.blobs = store
	}
}

// NewService constructs a service backed by the supplied store and codec.
func NewService(store PersistentStore, codec lineage.Codec, opts ...Option) *Service {
	svc := &Service{
		store:      store,
		records:    NewRecordStore(store),
		codec:      codec,
		vocabulary: domain.DefaultVocabulary(),
		access:     AdminAccess{},
		logger:     noopLogger{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		audit:      noopAuditRecorder{},
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	lineageOpts := []lineage.Option{lineage.WithLogger(svc.logger)}
	if svc.observer != nil {
		lineageOpts = append(lineageOpts, lineage.WithObserver(svc.observer))
	}
	svc.lineage = lineage.NewEngine(codec, svc.records, lineageOpts...)
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, codec lineage.Codec, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), codec, opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Lineage returns the lineage engine used on the read path.
func (s *Service) Lineage() *lineage.Engine {
	return s.lineage
}

// run instruments one operation. fn returns the external id of the entity
// it touched, used for audit entries.
func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, operation)
	start := s.clock.Now()
	entityID, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	span.End(err)
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "entity_id", entityID, "error", err)
		s.recordAuditError(ctx, operation, entityID, duration, err)
		return err
	}
	s.logger.Debug("operation completed", "operation", operation, "entity_id", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, operation, entityID, duration)
	return nil
}
