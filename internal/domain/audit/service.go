package audit

import "context"

type AuditService interface {
	// Record appends an entry; before and after are stored as JSON.
	Record(ctx context.Context, action Action, entityType, entityID, userID string, before, after any) error
	List(ctx context.Context, filter AuditFilter) ([]EntryResponse, error)
}
