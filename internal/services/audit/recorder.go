// Package audit writes and reads the change log. Every mutation performed
// inside a ledger unit of work appends one audit row per touched record,
// committed in the same transaction as the change itself.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
)

// Recorder appends audit rows inside a unit of work.
type Recorder struct{}

// NewRecorder returns a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one audit row for a change to the given record. oldRec and
// newRec are full record snapshots; pass nil for the side that does not
// exist (no old record on insert, no new record on delete).
func (r *Recorder) Record(tx interfaces.LedgerTx, table, recordID string, action models.AuditAction, oldRec, newRec any, actor string) error {
	rec := &models.AuditRecord{
		ID:       uuid.New().String(),
		Table:    table,
		RecordID: recordID,
		Action:   action,
		Actor:    actor,
		At:       time.Now().UTC(),
	}

	var err error
	if rec.OldFields, err = fieldMap(oldRec); err != nil {
		return err
	}
	if rec.NewFields, err = fieldMap(newRec); err != nil {
		return err
	}

	return tx.AppendAudit(rec)
}

// fieldMap flattens a record into its stored field snapshot.
func fieldMap(rec any) (map[string]any, error) {
	if rec == nil {
		return nil, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, models.NewValidationError("failed to snapshot record for audit: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, models.NewValidationError("failed to snapshot record for audit: %v", err)
	}
	return fields, nil
}
