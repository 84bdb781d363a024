package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger emits structured audit events for every mutation of persisted
// state. Events go through slog so collaborators can route them like any
// other log stream.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, action, resource, resourceID, status, details string) {
	al.logger.InfoContext(ctx, "audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("status", status),
		slog.String("details", details),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogUserCreated(ctx context.Context, username, status string) {
	al.LogAction(ctx, "create", "user", username, status, "")
}

func (al *Logger) LogPasswordReset(ctx context.Context, username, status string) {
	al.LogAction(ctx, "reset_password", "user", username, status, "")
}

func (al *Logger) LogBrandCreated(ctx context.Context, brandID, status, details string) {
	al.LogAction(ctx, "create", "brand", brandID, status, details)
}

func (al *Logger) LogBrandDeleted(ctx context.Context, brandID, status, details string) {
	al.LogAction(ctx, "delete", "brand", brandID, status, details)
}

func (al *Logger) LogIngest(ctx context.Context, brandID, status, details string) {
	al.LogAction(ctx, "ingest", "brand", brandID, status, details)
}
