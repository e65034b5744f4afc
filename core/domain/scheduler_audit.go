package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one append-only entry in the audit log. Writes are
// best-effort everywhere: a failed audit write must never fail the
// operation being audited.
type AuditRecord struct {
	ID        string         `json:"id"`
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	Operation string         `json:"operation"`
	ErrorCode string         `json:"error_code,omitempty"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
