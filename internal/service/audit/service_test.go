package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAuditRepo struct {
	entries    []audit.Entry
	lastFilter audit.AuditFilter
}

func (r *memoryAuditRepo) Create(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *memoryAuditRepo) List(_ context.Context, filter audit.AuditFilter) ([]audit.Entry, error) {
	r.lastFilter = filter
	var out []audit.Entry
	for _, e := range r.entries {
		if filter.EntityID != nil && e.EntityID != *filter.EntityID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func TestRecord(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := &AuditServiceImpl{auditRepo: repo, now: func() time.Time { return time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC) }}

	err := svc.Record(context.Background(), audit.ActionBonusAmountEdited, "signing_bonus", "sb-1", "user-1",
		map[string]string{"amount": "1000.00"},
		map[string]string{"amount": "1200.00"},
	)
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, audit.ActionBonusAmountEdited, entry.Action)
	assert.Equal(t, "sb-1", entry.EntityID)
	assert.Equal(t, "user-1", entry.UserID)
	assert.JSONEq(t, `{"amount":"1000.00"}`, string(entry.Before))
	assert.JSONEq(t, `{"amount":"1200.00"}`, string(entry.After))
	assert.Equal(t, 2024, entry.Timestamp.Year())
}

func TestRecord_NilStates(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)

	require.NoError(t, svc.Record(context.Background(), audit.ActionRunUnfrozen, "payroll_run", "run-1", "user-1", nil, json.RawMessage(`{"status":"APPROVED"}`)))

	assert.Nil(t, repo.entries[0].Before)
	assert.JSONEq(t, `{"status":"APPROVED"}`, string(repo.entries[0].After))
}

func TestList_FiltersAndClampsLimit(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, audit.ActionBonusDecided, "signing_bonus", "sb-1", "u", nil, nil))
	require.NoError(t, svc.Record(ctx, audit.ActionPayslipEdited, "payslip", "ps-1", "u", nil, nil))

	entityID := "ps-1"
	got, err := svc.List(ctx, audit.AuditFilter{EntityID: &entityID, Limit: 10000})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, audit.ActionPayslipEdited, got[0].Action)
	assert.Equal(t, 100, repo.lastFilter.Limit)
}
