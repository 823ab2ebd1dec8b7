package audit

import (
	"context"
	"fmt"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
)

// Service is the read side of the audit log.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates an audit query service.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// List returns audit rows matching the given filters, newest first.
func (s *Service) List(ctx context.Context, opts interfaces.AuditListOptions) ([]*models.AuditRecord, error) {
	records, err := s.storage.Ledger().ListAudit(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	return records, nil
}

var _ interfaces.AuditService = (*Service)(nil)
