package logging

import (
	"context"

	"go.uber.org/zap"

	"specimentrack/internal/core"
)

// ServiceLogger satisfies the key/value Logger interfaces of the core and
// lineage packages on top of a zap SugaredLogger.
type ServiceLogger struct {
	sugar *zap.SugaredLogger
}

// NewServiceLogger wraps logger. A nil logger discards everything.
func NewServiceLogger(logger *zap.Logger) *ServiceLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *ServiceLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ServiceLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ServiceLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ServiceLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// With returns a child logger that adds args to every entry.
func (l *ServiceLogger) With(args ...any) *ServiceLogger {
	return &ServiceLogger{sugar: l.sugar.With(args...)}
}

// AuditLogger writes audit entries as structured log lines under the
// "audit" logger name.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger returns an AuditRecorder backed by logger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{logger: logger.Named("audit")}
}

// Record implements core.AuditRecorder.
func (a *AuditLogger) Record(_ context.Context, entry core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("entity", string(entry.Entity)),
		zap.String("action", string(entry.Action)),
		zap.String("entity_id", entry.EntityID),
		zap.String("status", string(entry.Status)),
		zap.Duration("duration", entry.Duration),
		zap.Time("timestamp", entry.Timestamp),
	}
	if entry.Status == core.AuditStatusError {
		a.logger.Warn("audit", append(fields, zap.String("error", entry.Error))...)
		return
	}
	a.logger.Info("audit", fields...)
}
