// Package storage provides the top-level StorageManager that coordinates
// the 2 storage areas: the ledger and the reference data store.
package storage

import (
	"fmt"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/storage/ledgerdb"
	"github.com/corvusfin/corvus/internal/storage/refdb"
)

// Manager implements interfaces.StorageManager over the 2 storage areas.
type Manager struct {
	ledger    *ledgerdb.Store
	reference *refdb.Store
	logger    *common.Logger
}

// NewManager opens both storage areas.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ledgerStore, err := ledgerdb.NewStore(logger, config.Storage.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger store: %w", err)
	}

	refStore, err := refdb.NewStore(logger, config.Storage.Reference.Path)
	if err != nil {
		ledgerStore.Close()
		return nil, fmt.Errorf("failed to create reference store: %w", err)
	}

	logger.Info().
		Str("ledger", config.Storage.Ledger.Path).
		Str("reference", config.Storage.Reference.Path).
		Msg("Storage manager initialized (2 areas)")

	return &Manager{
		ledger:    ledgerStore,
		reference: refStore,
		logger:    logger,
	}, nil
}

func (m *Manager) Ledger() interfaces.LedgerStore {
	return m.ledger
}

func (m *Manager) Reference() interfaces.ReferenceStore {
	return m.reference
}

func (m *Manager) Close() error {
	var firstErr error
	if err := m.ledger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.reference.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
