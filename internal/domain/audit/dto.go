package audit

import (
	"encoding/json"
	"time"
)

type AuditFilter struct {
	EntityID *string
	Action   *Action
	Limit    int
}

type EntryResponse struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	UserID     string          `json:"user_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

func NewEntryResponse(e Entry) EntryResponse {
	return EntryResponse{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		UserID:     e.UserID,
		Before:     e.Before,
		After:      e.After,
	}
}
