// Package ledgerdb implements the ledger storage area using BadgerHold.
// It holds entities, bank accounts, holdings, asset/liability items, loans,
// transactions, net worth snapshots, and the audit trail. Multi-record
// postings run through Update, which wraps one badger write transaction so
// the whole unit of work commits or rolls back together.
package ledgerdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
)

// Store implements interfaces.LedgerStore using BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore opens the ledger storage area at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger db path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("LedgerDB opened")
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Update executes fn inside a single badger write transaction. A conflicting
// concurrent writer surfaces as a models.ConflictError so callers can retry.
func (s *Store) Update(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Badger().Update(func(btx *badger.Txn) error {
		return fn(&ledgerTx{db: s.db, btx: btx})
	})
	if errors.Is(err, badger.ErrConflict) {
		return &models.ConflictError{Key: "ledger"}
	}
	return err
}

// View executes fn inside a single read-only badger transaction, so every
// read observes the same point-in-time ledger state regardless of concurrent
// commits.
func (s *Store) View(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Badger().View(func(btx *badger.Txn) error {
		return fn(&ledgerTx{db: s.db, btx: btx})
	})
}

// --- Entities ---

func (s *Store) GetEntity(_ context.Context, id string) (*models.Entity, error) {
	var entity models.Entity
	if err := s.db.Get(id, &entity); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("entity '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get entity", Err: err}
	}
	return &entity, nil
}

func (s *Store) SaveEntity(_ context.Context, entity *models.Entity) error {
	now := time.Now()
	var existing models.Entity
	if err := s.db.Get(entity.ID, &existing); err == nil {
		entity.CreatedAt = existing.CreatedAt
	} else if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	if err := s.db.Upsert(entity.ID, entity); err != nil {
		return &models.StorageError{Op: "save entity", Err: err}
	}
	s.logger.Debug().Str("entity_id", entity.ID).Msg("Entity saved")
	return nil
}

func (s *Store) ListEntities(_ context.Context, activeOnly bool) ([]*models.Entity, error) {
	var entities []models.Entity
	var query *badgerhold.Query
	if activeOnly {
		query = badgerhold.Where("Active").Eq(true)
	}
	if err := s.db.Find(&entities, query); err != nil {
		return nil, &models.StorageError{Op: "list entities", Err: err}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
	result := make([]*models.Entity, len(entities))
	for i := range entities {
		result[i] = &entities[i]
	}
	return result, nil
}

// --- Bank accounts ---

func (s *Store) GetAccount(_ context.Context, id string) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := s.db.Get(id, &account); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("account '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get account", Err: err}
	}
	return &account, nil
}

func (s *Store) SaveAccount(_ context.Context, account *models.BankAccount) error {
	now := time.Now()
	var existing models.BankAccount
	if err := s.db.Get(account.ID, &existing); err == nil {
		account.CreatedAt = existing.CreatedAt
	} else if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	if err := s.db.Upsert(account.ID, account); err != nil {
		return &models.StorageError{Op: "save account", Err: err}
	}
	s.logger.Debug().Str("account_id", account.ID).Msg("Account saved")
	return nil
}

func (s *Store) ListAccounts(_ context.Context, entityID string) ([]*models.BankAccount, error) {
	var accounts []models.BankAccount
	if err := s.db.Find(&accounts, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list accounts", Err: err}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	result := make([]*models.BankAccount, len(accounts))
	for i := range accounts {
		result[i] = &accounts[i]
	}
	return result, nil
}

// --- Holdings ---

func (s *Store) GetHolding(_ context.Context, entityID, symbol string, securityType models.SecurityType) (*models.Holding, error) {
	var holding models.Holding
	key := models.HoldingKey(entityID, symbol, securityType)
	if err := s.db.Get(key, &holding); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("holding '%s/%s' %w", entityID, symbol, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get holding", Err: err}
	}
	return &holding, nil
}

func (s *Store) SaveHolding(_ context.Context, holding *models.Holding) error {
	now := time.Now()
	var existing models.Holding
	if err := s.db.Get(holding.Key(), &existing); err == nil {
		holding.CreatedAt = existing.CreatedAt
	} else if holding.CreatedAt.IsZero() {
		holding.CreatedAt = now
	}
	holding.UpdatedAt = now

	if err := s.db.Upsert(holding.Key(), holding); err != nil {
		return &models.StorageError{Op: "save holding", Err: err}
	}
	s.logger.Debug().Str("entity_id", holding.EntityID).Str("symbol", holding.Symbol).Msg("Holding saved")
	return nil
}

func (s *Store) ListHoldings(_ context.Context, entityID string) ([]*models.Holding, error) {
	var holdings []models.Holding
	if err := s.db.Find(&holdings, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list holdings", Err: err}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	result := make([]*models.Holding, len(holdings))
	for i := range holdings {
		result[i] = &holdings[i]
	}
	return result, nil
}

func (s *Store) ListHoldingsBySymbol(_ context.Context, symbol string, securityType models.SecurityType) ([]*models.Holding, error) {
	var holdings []models.Holding
	query := badgerhold.Where("Symbol").Eq(symbol).And("SecurityType").Eq(securityType)
	if err := s.db.Find(&holdings, query); err != nil {
		return nil, &models.StorageError{Op: "list holdings by symbol", Err: err}
	}
	result := make([]*models.Holding, len(holdings))
	for i := range holdings {
		result[i] = &holdings[i]
	}
	return result, nil
}

// --- Asset/liability items ---

func (s *Store) GetAssetItem(_ context.Context, id string) (*models.AssetLiability, error) {
	var item models.AssetLiability
	if err := s.db.Get(id, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("asset item '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get asset item", Err: err}
	}
	return &item, nil
}

func (s *Store) SaveAssetItem(_ context.Context, item *models.AssetLiability) error {
	now := time.Now()
	var existing models.AssetLiability
	if err := s.db.Get(item.ID, &existing); err == nil {
		item.CreatedAt = existing.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	if err := s.db.Upsert(item.ID, item); err != nil {
		return &models.StorageError{Op: "save asset item", Err: err}
	}
	s.logger.Debug().Str("item_id", item.ID).Msg("Asset item saved")
	return nil
}

func (s *Store) ListAssetItems(_ context.Context, entityID string) ([]*models.AssetLiability, error) {
	var items []models.AssetLiability
	if err := s.db.Find(&items, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list asset items", Err: err}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	result := make([]*models.AssetLiability, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

// --- Loans ---

func (s *Store) GetLoan(_ context.Context, id string) (*models.Loan, error) {
	var loan models.Loan
	if err := s.db.Get(id, &loan); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("loan '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get loan", Err: err}
	}
	return &loan, nil
}

func (s *Store) SaveLoan(_ context.Context, loan *models.Loan) error {
	now := time.Now()
	var existing models.Loan
	if err := s.db.Get(loan.ID, &existing); err == nil {
		loan.CreatedAt = existing.CreatedAt
	} else if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	if err := s.db.Upsert(loan.ID, loan); err != nil {
		return &models.StorageError{Op: "save loan", Err: err}
	}
	s.logger.Debug().Str("loan_id", loan.ID).Msg("Loan saved")
	return nil
}

func (s *Store) ListLoans(_ context.Context, entityID string) ([]*models.Loan, error) {
	var loans []models.Loan
	if err := s.db.Find(&loans, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list loans", Err: err}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].Name < loans[j].Name })
	result := make([]*models.Loan, len(loans))
	for i := range loans {
		result[i] = &loans[i]
	}
	return result, nil
}

// --- Transactions ---

func (s *Store) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.Get(id, &tx); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("transaction '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get transaction", Err: err}
	}
	return &tx, nil
}

func (s *Store) ListTransactions(_ context.Context, entityID string, opts interfaces.TransactionListOptions) ([]*models.Transaction, error) {
	query := badgerhold.Where("EntityID").Eq(entityID)
	if opts.AccountID != "" {
		query = query.And("AccountID").Eq(opts.AccountID)
	}
	if opts.Category != "" {
		query = query.And("Category").Eq(opts.Category)
	}
	if opts.Since != nil {
		query = query.And("Date").Ge(*opts.Since)
	}
	if opts.Until != nil {
		query = query.And("Date").Le(*opts.Until)
	}

	var txs []models.Transaction
	if err := s.db.Find(&txs, query); err != nil {
		return nil, &models.StorageError{Op: "list transactions", Err: err}
	}

	// Most recent first
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}

	result := make([]*models.Transaction, len(txs))
	for i := range txs {
		result[i] = &txs[i]
	}
	return result, nil
}

func (s *Store) FindReversal(_ context.Context, transactionID string) (*models.Transaction, error) {
	var txs []models.Transaction
	if err := s.db.Find(&txs, badgerhold.Where("ReversalOf").Eq(transactionID)); err != nil {
		return nil, &models.StorageError{Op: "find reversal", Err: err}
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("reversal of '%s' %w", transactionID, models.ErrNotFound)
	}
	return &txs[0], nil
}

// --- Net worth snapshots ---

func (s *Store) GetSnapshot(_ context.Context, entityID string, date time.Time) (*models.NetWorthSnapshot, error) {
	var snapshot models.NetWorthSnapshot
	key := models.SnapshotKey(entityID, date)
	if err := s.db.Get(key, &snapshot); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("snapshot '%s' %w", key, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get snapshot", Err: err}
	}
	return &snapshot, nil
}

func (s *Store) ListSnapshots(_ context.Context, entityID string, limit int) ([]*models.NetWorthSnapshot, error) {
	var snapshots []models.NetWorthSnapshot
	if err := s.db.Find(&snapshots, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list snapshots", Err: err}
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CalculationDate.After(snapshots[j].CalculationDate)
	})
	if limit <= 0 {
		limit = 100
	}
	if len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}
	result := make([]*models.NetWorthSnapshot, len(snapshots))
	for i := range snapshots {
		result[i] = &snapshots[i]
	}
	return result, nil
}

// --- Audit trail ---

func (s *Store) ListAudit(_ context.Context, opts interfaces.AuditListOptions) ([]*models.AuditRecord, error) {
	var query *badgerhold.Query
	if opts.Table != "" && opts.RecordID != "" {
		query = badgerhold.Where("Table").Eq(opts.Table).And("RecordID").Eq(opts.RecordID)
	} else if opts.Table != "" {
		query = badgerhold.Where("Table").Eq(opts.Table)
	} else if opts.RecordID != "" {
		query = badgerhold.Where("RecordID").Eq(opts.RecordID)
	}
	if opts.Actor != "" {
		if query == nil {
			query = badgerhold.Where("Actor").Eq(opts.Actor)
		} else {
			query = query.And("Actor").Eq(opts.Actor)
		}
	}

	var records []models.AuditRecord
	if err := s.db.Find(&records, query); err != nil {
		return nil, &models.StorageError{Op: "list audit", Err: err}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].At.After(records[j].At) })

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(records) > limit {
		records = records[:limit]
	}

	result := make([]*models.AuditRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// Compile-time check
var _ interfaces.LedgerStore = (*Store)(nil)
