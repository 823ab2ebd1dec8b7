// Package registry manages the directory the ledger posts against: entities,
// bank accounts, asset/liability items, and loans. Creation seeds balances,
// deactivation is soft and cascades to owned records.
package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
	"github.com/corvusfin/corvus/internal/services/audit"
)

// Service implements the registry operations.
type Service struct {
	storage  interfaces.StorageManager
	config   *common.Config
	logger   *common.Logger
	recorder *audit.Recorder
	locks    *common.KeyedLocks
}

// NewService creates a registry service.
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

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// CreateEntity registers a new entity.
func (s *Service) CreateEntity(ctx context.Context, entity *models.Entity, actor string) (*models.Entity, error) {
	if entity == nil {
		return nil, models.NewValidationError("entity is required")
	}
	entity.Name = strings.TrimSpace(entity.Name)
	if entity.Name == "" {
		return nil, models.NewValidationError("entity name is required")
	}
	if !models.ValidEntityType(entity.Type) {
		return nil, models.NewValidationError("invalid entity type '%s'", entity.Type)
	}
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	entity.Active = true
	actor = common.ResolveActor(ctx, actor)

	err := s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		if _, err := tx.GetEntity(entity.ID); err == nil {
			return models.NewValidationError("entity '%s' already exists", entity.ID)
		} else if !models.IsNotFound(err) {
			return err
		}
		if err := tx.SaveEntity(entity); err != nil {
			return err
		}
		return s.recorder.Record(tx, "entities", entity.ID, models.AuditInsert, nil, entity, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("entity_id", entity.ID).Str("name", entity.Name).Msg("Created entity")
	return entity, nil
}

// GetEntity returns one entity by id.
func (s *Service) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return s.storage.Ledger().GetEntity(ctx, id)
}

// ListEntities returns entities, optionally only active ones.
func (s *Service) ListEntities(ctx context.Context, activeOnly bool) ([]*models.Entity, error) {
	return s.storage.Ledger().ListEntities(ctx, activeOnly)
}

// DeactivateEntity soft-deletes an entity and every account, holding, asset
// item, and loan it owns, in one unit of work with one audit row per record.
// Deactivating an already-inactive entity is a no-op.
func (s *Service) DeactivateEntity(ctx context.Context, id, actor string) error {
	if id == "" {
		return models.NewValidationError("entity id is required")
	}
	actor = common.ResolveActor(ctx, actor)

	release, err := s.locks.Acquire(ctx, s.config.Ledger.GetLockWait(), "entity:"+id)
	if err != nil {
		return err
	}
	defer release()

	deactivated := 0
	err = s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		entity, err := tx.GetEntity(id)
		if err != nil {
			return err
		}
		if !entity.Active {
			return nil
		}

		before := *entity
		entity.Active = false
		if err := tx.SaveEntity(entity); err != nil {
			return err
		}
		if err := s.recorder.Record(tx, "entities", entity.ID, models.AuditUpdate, before, entity, actor); err != nil {
			return err
		}
		deactivated++

		accounts, err := tx.ListAccounts(id)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			if !account.Active {
				continue
			}
			old := *account
			account.Active = false
			if err := tx.SaveAccount(account); err != nil {
				return err
			}
			if err := s.recorder.Record(tx, "bank_accounts", account.ID, models.AuditUpdate, old, account, actor); err != nil {
				return err
			}
			deactivated++
		}

		holdings, err := tx.ListHoldings(id)
		if err != nil {
			return err
		}
		for _, holding := range holdings {
			if !holding.Active {
				continue
			}
			old := *holding
			holding.Active = false
			if err := tx.SaveHolding(holding); err != nil {
				return err
			}
			if err := s.recorder.Record(tx, "holdings", holding.Key(), models.AuditUpdate, old, holding, actor); err != nil {
				return err
			}
			deactivated++
		}

		items, err := tx.ListAssetItems(id)
		if err != nil {
			return err
		}
		for _, item := range items {
			if !item.Active {
				continue
			}
			old := *item
			item.Active = false
			if err := tx.SaveAssetItem(item); err != nil {
				return err
			}
			if err := s.recorder.Record(tx, "assets_liabilities", item.ID, models.AuditUpdate, old, item, actor); err != nil {
				return err
			}
			deactivated++
		}

		loans, err := tx.ListLoans(id)
		if err != nil {
			return err
		}
		for _, loan := range loans {
			if !loan.Active {
				continue
			}
			old := *loan
			loan.Active = false
			if err := tx.SaveLoan(loan); err != nil {
				return err
			}
			if err := s.recorder.Record(tx, "loans", loan.ID, models.AuditUpdate, old, loan, actor); err != nil {
				return err
			}
			deactivated++
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Str("entity_id", id).Int("records", deactivated).Msg("Deactivated entity")
	return nil
}

// CreateAccount registers a bank account under an existing active entity.
// CurrentBalance starts at OpeningBalance.
func (s *Service) CreateAccount(ctx context.Context, account *models.BankAccount, actor string) (*models.BankAccount, error) {
	if account == nil {
		return nil, models.NewValidationError("account is required")
	}
	account.Name = strings.TrimSpace(account.Name)
	if account.Name == "" {
		return nil, models.NewValidationError("account name is required")
	}
	if account.EntityID == "" {
		return nil, models.NewValidationError("entity id is required")
	}
	account.Currency = strings.ToUpper(strings.TrimSpace(account.Currency))
	if account.Currency == "" {
		account.Currency = s.config.Ledger.BaseCurrency
	}
	if !validCurrency(account.Currency) {
		return nil, models.NewValidationError("invalid currency code '%s'", account.Currency)
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.OpeningBalance = models.RoundMoney(account.OpeningBalance)
	account.CurrentBalance = account.OpeningBalance
	account.Active = true
	actor = common.ResolveActor(ctx, actor)

	err := s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		if err := s.requireActiveEntity(tx, account.EntityID); err != nil {
			return err
		}
		if _, err := tx.GetAccount(account.ID); err == nil {
			return models.NewValidationError("account '%s' already exists", account.ID)
		} else if !models.IsNotFound(err) {
			return err
		}
		if err := tx.SaveAccount(account); err != nil {
			return err
		}
		return s.recorder.Record(tx, "bank_accounts", account.ID, models.AuditInsert, nil, account, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("account_id", account.ID).Str("entity_id", account.EntityID).Msg("Created account")
	return account, nil
}

// GetAccount returns one bank account by id.
func (s *Service) GetAccount(ctx context.Context, id string) (*models.BankAccount, error) {
	return s.storage.Ledger().GetAccount(ctx, id)
}

// ListAccounts returns an entity's bank accounts.
func (s *Service) ListAccounts(ctx context.Context, entityID string) ([]*models.BankAccount, error) {
	return s.storage.Ledger().ListAccounts(ctx, entityID)
}

// CreateAssetItem registers a non-tradable asset or liability item.
// CurrentValue defaults to OriginalValue when unset.
func (s *Service) CreateAssetItem(ctx context.Context, item *models.AssetLiability, actor string) (*models.AssetLiability, error) {
	if item == nil {
		return nil, models.NewValidationError("asset item is required")
	}
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, models.NewValidationError("asset item name is required")
	}
	if item.EntityID == "" {
		return nil, models.NewValidationError("entity id is required")
	}
	if item.Category != models.AssetCategoryAsset && item.Category != models.AssetCategoryLiability {
		return nil, models.NewValidationError("invalid asset category '%s'", item.Category)
	}
	if item.OriginalValue.IsNegative() {
		return nil, models.NewValidationError("original value must not be negative, got %s", item.OriginalValue)
	}
	item.Currency = strings.ToUpper(strings.TrimSpace(item.Currency))
	if item.Currency == "" {
		item.Currency = s.config.Ledger.BaseCurrency
	}
	if !validCurrency(item.Currency) {
		return nil, models.NewValidationError("invalid currency code '%s'", item.Currency)
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.OriginalValue = models.RoundMoney(item.OriginalValue)
	if item.CurrentValue.IsZero() {
		item.CurrentValue = item.OriginalValue
	}
	item.CurrentValue = models.RoundMoney(item.CurrentValue)
	item.Active = true
	actor = common.ResolveActor(ctx, actor)

	err := s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		if err := s.requireActiveEntity(tx, item.EntityID); err != nil {
			return err
		}
		if err := tx.SaveAssetItem(item); err != nil {
			return err
		}
		return s.recorder.Record(tx, "assets_liabilities", item.ID, models.AuditInsert, nil, item, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("item_id", item.ID).Str("category", string(item.Category)).Msg("Created asset item")
	return item, nil
}

// ListAssetItems returns an entity's asset/liability items.
func (s *Service) ListAssetItems(ctx context.Context, entityID string) ([]*models.AssetLiability, error) {
	return s.storage.Ledger().ListAssetItems(ctx, entityID)
}

// RevalueAssetItem sets a new current value on an item.
func (s *Service) RevalueAssetItem(ctx context.Context, id string, currentValue decimal.Decimal, actor string) (*models.AssetLiability, error) {
	if id == "" {
		return nil, models.NewValidationError("asset item id is required")
	}
	if currentValue.IsNegative() {
		return nil, models.NewValidationError("current value must not be negative, got %s", currentValue)
	}
	actor = common.ResolveActor(ctx, actor)

	release, err := s.locks.Acquire(ctx, s.config.Ledger.GetLockWait(), "asset_item:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	var item *models.AssetLiability
	err = s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		item, err = tx.GetAssetItem(id)
		if err != nil {
			return err
		}
		if !item.Active {
			return models.NewValidationError("asset item '%s' is inactive", id)
		}
		before := *item
		item.CurrentValue = models.RoundMoney(currentValue)
		if err := tx.SaveAssetItem(item); err != nil {
			return err
		}
		return s.recorder.Record(tx, "assets_liabilities", item.ID, models.AuditUpdate, before, item, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("item_id", id).Str("current_value", item.CurrentValue.String()).Msg("Revalued asset item")
	return item, nil
}

// CreateLoan registers a loan. OutstandingBalance defaults to Principal when
// unset.
func (s *Service) CreateLoan(ctx context.Context, loan *models.Loan, actor string) (*models.Loan, error) {
	if loan == nil {
		return nil, models.NewValidationError("loan is required")
	}
	loan.Name = strings.TrimSpace(loan.Name)
	if loan.Name == "" {
		return nil, models.NewValidationError("loan name is required")
	}
	if loan.EntityID == "" {
		return nil, models.NewValidationError("entity id is required")
	}
	if loan.Principal.LessThanOrEqual(decimal.Zero) {
		return nil, models.NewValidationError("principal must be positive, got %s", loan.Principal)
	}
	if loan.AnnualRatePct.IsNegative() {
		return nil, models.NewValidationError("annual rate must not be negative, got %s", loan.AnnualRatePct)
	}
	loan.Currency = strings.ToUpper(strings.TrimSpace(loan.Currency))
	if loan.Currency == "" {
		loan.Currency = s.config.Ledger.BaseCurrency
	}
	if !validCurrency(loan.Currency) {
		return nil, models.NewValidationError("invalid currency code '%s'", loan.Currency)
	}
	if loan.ID == "" {
		loan.ID = uuid.New().String()
	}
	loan.Principal = models.RoundMoney(loan.Principal)
	if loan.OutstandingBalance.IsZero() {
		loan.OutstandingBalance = loan.Principal
	}
	loan.OutstandingBalance = models.RoundMoney(loan.OutstandingBalance)
	loan.Active = true
	actor = common.ResolveActor(ctx, actor)

	err := s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		if err := s.requireActiveEntity(tx, loan.EntityID); err != nil {
			return err
		}
		if err := tx.SaveLoan(loan); err != nil {
			return err
		}
		return s.recorder.Record(tx, "loans", loan.ID, models.AuditInsert, nil, loan, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("loan_id", loan.ID).Str("principal", loan.Principal.String()).Msg("Created loan")
	return loan, nil
}

// ListLoans returns an entity's loans.
func (s *Service) ListLoans(ctx context.Context, entityID string) ([]*models.Loan, error) {
	return s.storage.Ledger().ListLoans(ctx, entityID)
}

// SetLoanBalance overwrites a loan's outstanding balance, e.g. after an
// out-of-band statement reconciliation.
func (s *Service) SetLoanBalance(ctx context.Context, id string, outstanding decimal.Decimal, actor string) (*models.Loan, error) {
	if id == "" {
		return nil, models.NewValidationError("loan id is required")
	}
	if outstanding.IsNegative() {
		return nil, models.NewValidationError("outstanding balance must not be negative, got %s", outstanding)
	}
	actor = common.ResolveActor(ctx, actor)

	release, err := s.locks.Acquire(ctx, s.config.Ledger.GetLockWait(), "loan:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	var loan *models.Loan
	err = s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		loan, err = tx.GetLoan(id)
		if err != nil {
			return err
		}
		if !loan.Active {
			return models.NewValidationError("loan '%s' is inactive", id)
		}
		before := *loan
		loan.OutstandingBalance = models.RoundMoney(outstanding)
		if err := tx.SaveLoan(loan); err != nil {
			return err
		}
		return s.recorder.Record(tx, "loans", loan.ID, models.AuditUpdate, before, loan, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("loan_id", id).Str("outstanding", loan.OutstandingBalance.String()).Msg("Set loan balance")
	return loan, nil
}

func (s *Service) requireActiveEntity(tx interfaces.LedgerTx, entityID string) error {
	entity, err := tx.GetEntity(entityID)
	if models.IsNotFound(err) {
		return models.NewValidationError("unknown entity '%s'", entityID)
	}
	if err != nil {
		return err
	}
	if !entity.Active {
		return models.NewValidationError("entity '%s' is inactive", entityID)
	}
	return nil
}

var _ interfaces.RegistryService = (*Service)(nil)
