package ports

import (
	"context"

	"github.com/skillboard/portal/internal/core/domain"
)

// AuditSink accepts login events without blocking the caller.
type AuditSink interface {
	Record(event domain.LoginEvent)
}

// AuditRepository persists the login audit trail.
type AuditRepository interface {
	InsertLoginEvent(ctx context.Context, event *domain.LoginEvent) error
}
