package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type auditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) audit.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO audit_entries (id, timestamp, action, entity_type, entity_id, user_id, before, after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, timestamp, action, entity_type, entity_id, user_id, before, after
	`

	var saved audit.Entry
	err := q.QueryRow(ctx, query,
		entry.ID, entry.Timestamp, entry.Action, entry.EntityType, entry.EntityID, entry.UserID,
		nullableJSON(entry.Before), nullableJSON(entry.After),
	).Scan(
		&saved.ID, &saved.Timestamp, &saved.Action, &saved.EntityType, &saved.EntityID, &saved.UserID,
		&saved.Before, &saved.After,
	)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("failed to create audit entry: %w", err)
	}

	return saved, nil
}

func (r *auditRepository) List(ctx context.Context, filter audit.AuditFilter) ([]audit.Entry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, timestamp, action, entity_type, entity_id, user_id, before, after
		FROM audit_entries
		WHERE 1 = 1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.EntityID != nil {
		query += fmt.Sprintf(" AND entity_id = $%d", argIdx)
		args = append(args, *filter.EntityID)
		argIdx++
	}
	if filter.Action != nil {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, *filter.Action)
		argIdx++
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d", argIdx)
	args = append(args, filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.EntityType, &e.EntityID, &e.UserID, &e.Before, &e.After); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// nullableJSON stores an absent state as SQL NULL rather than an empty document.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
