package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/google/uuid"
)

type AuditServiceImpl struct {
	auditRepo audit.AuditRepository
	now       func() time.Time
}

func NewAuditService(auditRepo audit.AuditRepository) audit.AuditService {
	return &AuditServiceImpl{
		auditRepo: auditRepo,
		now:       time.Now,
	}
}

func marshalState(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *AuditServiceImpl) Record(ctx context.Context, action audit.Action, entityType, entityID, userID string, before, after any) error {
	beforeJSON, err := marshalState(before)
	if err != nil {
		return fmt.Errorf("failed to encode audit before state: %w", err)
	}
	afterJSON, err := marshalState(after)
	if err != nil {
		return fmt.Errorf("failed to encode audit after state: %w", err)
	}

	_, err = s.auditRepo.Create(ctx, audit.Entry{
		ID:         uuid.NewString(),
		Timestamp:  s.now().UTC(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Before:     beforeJSON,
		After:      afterJSON,
	})
	return err
}

func (s *AuditServiceImpl) List(ctx context.Context, filter audit.AuditFilter) ([]audit.EntryResponse, error) {
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}

	entries, err := s.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := make([]audit.EntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, audit.NewEntryResponse(e))
	}
	return result, nil
}
