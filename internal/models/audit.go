package models

import (
	"encoding/gob"
	"time"
)

// Field snapshots are JSON-shaped maps; the stored encoding needs the nested
// container types registered to round-trip them as interface values.
func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// AuditAction is the kind of mutation an audit record documents.
type AuditAction string

const (
	AuditInsert AuditAction = "insert"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// AuditRecord is an append-only record of a tracked mutation: before/after
// field snapshots, the acting principal, and the moment it happened.
// OldFields is absent on insert; NewFields is absent on delete. Records are
// never mutated or deleted, and reference their subject by table+id only —
// a weak back-reference for traceability.
type AuditRecord struct {
	ID        string         `json:"id"`
	Table     string         `json:"table"`
	RecordID  string         `json:"record_id"`
	Action    AuditAction    `json:"action"`
	OldFields map[string]any `json:"old_fields,omitempty"`
	NewFields map[string]any `json:"new_fields,omitempty"`
	Actor     string         `json:"actor"`
	At        time.Time      `json:"at"`
}
