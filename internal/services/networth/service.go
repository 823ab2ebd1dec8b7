// Package networth aggregates an entity's financial position into dated
// snapshots: cash accounts plus holdings plus asset items, less liability
// items and loans, everything converted to the base currency.
package networth

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
	"github.com/corvusfin/corvus/internal/services/audit"
)

// Service implements net worth calculation and snapshot maintenance.
type Service struct {
	storage  interfaces.StorageManager
	config   *common.Config
	logger   *common.Logger
	recorder *audit.Recorder
	locks    *common.KeyedLocks
}

// NewService creates a net worth service.
func NewService(storage interfaces.StorageManager, config *common.Config, logger *common.Logger,
	recorder *audit.Recorder, locks *common.KeyedLocks) *Service {
	return &Service{
		storage:  storage,
		config:   config,
		logger:   logger,
		recorder: recorder,
		locks:    locks,
	}
}

// ComputeAndSnapshot derives the entity's net worth from current ledger state
// and upserts the snapshot for the asOf calendar date. The operation is
// idempotent: recomputing an unchanged ledger for the same date rewrites the
// same row with the same totals.
func (s *Service) ComputeAndSnapshot(ctx context.Context, entityID string, asOf time.Time,
	includeUnrealized bool, actor string) (*models.NetWorthSnapshot, error) {

	if entityID == "" {
		return nil, models.NewValidationError("entity id is required")
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	day := models.SnapshotDate(asOf)
	actor = common.ResolveActor(ctx, actor)

	entity, err := s.storage.Ledger().GetEntity(ctx, entityID)
	if models.IsNotFound(err) {
		return nil, models.NewValidationError("unknown entity '%s'", entityID)
	}
	if err != nil {
		return nil, err
	}
	if !entity.Active {
		return nil, models.NewValidationError("entity '%s' is inactive", entityID)
	}

	key := "snapshot:" + models.SnapshotKey(entityID, day)
	release, err := s.locks.Acquire(ctx, s.config.Ledger.GetLockWait(), key)
	if err != nil {
		return nil, err
	}
	defer release()

	assets, liabilities, err := s.aggregate(ctx, entityID, day, includeUnrealized)
	if err != nil {
		return nil, err
	}

	method := models.CalcMethodCostBasis
	if includeUnrealized {
		method = models.CalcMethodMarketValue
	}
	snapshot := &models.NetWorthSnapshot{
		EntityID:          entityID,
		CalculationDate:   day,
		TotalAssets:       models.RoundMoney(assets),
		TotalLiabilities:  models.RoundMoney(liabilities),
		CalculationMethod: method,
		IncludeUnrealized: includeUnrealized,
	}

	previous, err := s.storage.Ledger().GetSnapshot(ctx, entityID, day)
	if err != nil && !models.IsNotFound(err) {
		return nil, err
	}

	err = s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		if err := tx.SaveSnapshot(snapshot); err != nil {
			return err
		}
		auditAction := models.AuditUpdate
		var oldRec any = previous
		if previous == nil {
			auditAction = models.AuditInsert
			oldRec = nil
		}
		return s.recorder.Record(tx, "net_worth_snapshots", snapshot.Key(), auditAction, oldRec, snapshot, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("entity_id", entityID).
		Str("date", day.Format("2006-01-02")).
		Str("net_worth", snapshot.NetWorth().String()).
		Str("method", method).
		Msg("Computed net worth snapshot")

	return snapshot, nil
}

// aggregate sums the entity's positions in the base currency. Inactive
// records are excluded. All four record sets are read inside one read
// transaction so the totals reflect a single point-in-time ledger state even
// while postings commit concurrently.
func (s *Service) aggregate(ctx context.Context, entityID string, day time.Time, includeUnrealized bool) (assets, liabilities decimal.Decimal, err error) {
	var (
		accounts []*models.BankAccount
		holdings []*models.Holding
		items    []*models.AssetLiability
		loans    []*models.Loan
	)
	err = s.storage.Ledger().View(ctx, func(tx interfaces.LedgerTx) error {
		var err error
		if accounts, err = tx.ListAccounts(entityID); err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		if holdings, err = tx.ListHoldings(entityID); err != nil {
			return fmt.Errorf("failed to list holdings: %w", err)
		}
		if items, err = tx.ListAssetItems(entityID); err != nil {
			return fmt.Errorf("failed to list asset items: %w", err)
		}
		if loans, err = tx.ListLoans(entityID); err != nil {
			return fmt.Errorf("failed to list loans: %w", err)
		}
		return nil
	})
	if err != nil {
		return assets, liabilities, err
	}

	for _, account := range accounts {
		if !account.Active {
			continue
		}
		value, err := s.toBase(ctx, account.CurrentBalance, account.Currency, day)
		if err != nil {
			return assets, liabilities, err
		}
		// A negative cash balance is an overdraft, not a liability line; it
		// nets against assets directly.
		assets = assets.Add(value)
	}

	for _, holding := range holdings {
		if !holding.Active {
			continue
		}
		raw := holding.CostBasis()
		if includeUnrealized {
			raw = holding.MarketValue()
		}
		value, err := s.toBase(ctx, raw, holding.Currency, day)
		if err != nil {
			return assets, liabilities, err
		}
		assets = assets.Add(value)
	}

	for _, item := range items {
		if !item.Active {
			continue
		}
		value, err := s.toBase(ctx, item.CurrentValue, item.Currency, day)
		if err != nil {
			return assets, liabilities, err
		}
		if item.Category == models.AssetCategoryLiability {
			liabilities = liabilities.Add(value)
		} else {
			assets = assets.Add(value)
		}
	}

	for _, loan := range loans {
		if !loan.Active {
			continue
		}
		value, err := s.toBase(ctx, loan.OutstandingBalance, loan.Currency, day)
		if err != nil {
			return assets, liabilities, err
		}
		liabilities = liabilities.Add(value)
	}

	return assets, liabilities, nil
}

// toBase converts amount from its currency into the configured base currency
// using the stored rate at or before day.
func (s *Service) toBase(ctx context.Context, amount decimal.Decimal, currency string, day time.Time) (decimal.Decimal, error) {
	base := s.config.Ledger.BaseCurrency
	if currency == "" || currency == base {
		return amount, nil
	}
	rate, err := s.storage.Reference().GetRate(ctx, currency, base, day)
	if models.IsNotFound(err) {
		return decimal.Zero, models.NewValidationError("no exchange rate for %s/%s at or before %s",
			currency, base, day.Format("2006-01-02"))
	}
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate.Rate), nil
}

// GetSnapshot returns the stored snapshot for (entity, date).
func (s *Service) GetSnapshot(ctx context.Context, entityID string, date time.Time) (*models.NetWorthSnapshot, error) {
	return s.storage.Ledger().GetSnapshot(ctx, entityID, date)
}

// ListSnapshots returns an entity's snapshots, newest first.
func (s *Service) ListSnapshots(ctx context.Context, entityID string, limit int) ([]*models.NetWorthSnapshot, error) {
	return s.storage.Ledger().ListSnapshots(ctx, entityID, limit)
}

var _ interfaces.NetWorthService = (*Service)(nil)
