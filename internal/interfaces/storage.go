// Package interfaces defines service and storage contracts for Corvus
package interfaces

import (
	"context"
	"time"

	"github.com/corvusfin/corvus/internal/models"
)

// StorageManager coordinates the two storage areas: the ledger (entities,
// accounts, holdings, asset items, loans, transactions, snapshots, audit) and
// the reference data store (prices, exchange rates).
type StorageManager interface {
	Ledger() LedgerStore
	Reference() ReferenceStore
	Close() error
}

// LedgerStore is durable keyed storage for all ledger records. Read accessors
// see a consistent point-in-time view; Update runs a function inside a single
// write transaction so that multi-record postings commit or roll back as one.
type LedgerStore interface {
	// Entities
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	SaveEntity(ctx context.Context, entity *models.Entity) error
	ListEntities(ctx context.Context, activeOnly bool) ([]*models.Entity, error)

	// Bank accounts
	GetAccount(ctx context.Context, id string) (*models.BankAccount, error)
	SaveAccount(ctx context.Context, account *models.BankAccount) error
	ListAccounts(ctx context.Context, entityID string) ([]*models.BankAccount, error)

	// Holdings
	GetHolding(ctx context.Context, entityID, symbol string, securityType models.SecurityType) (*models.Holding, error)
	SaveHolding(ctx context.Context, holding *models.Holding) error
	ListHoldings(ctx context.Context, entityID string) ([]*models.Holding, error)
	ListHoldingsBySymbol(ctx context.Context, symbol string, securityType models.SecurityType) ([]*models.Holding, error)

	// Asset/liability items and loans
	GetAssetItem(ctx context.Context, id string) (*models.AssetLiability, error)
	SaveAssetItem(ctx context.Context, item *models.AssetLiability) error
	ListAssetItems(ctx context.Context, entityID string) ([]*models.AssetLiability, error)
	GetLoan(ctx context.Context, id string) (*models.Loan, error)
	SaveLoan(ctx context.Context, loan *models.Loan) error
	ListLoans(ctx context.Context, entityID string) ([]*models.Loan, error)

	// Transactions (insert-only; posted rows are immutable)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, entityID string, opts TransactionListOptions) ([]*models.Transaction, error)
	FindReversal(ctx context.Context, transactionID string) (*models.Transaction, error)

	// Net worth snapshots
	GetSnapshot(ctx context.Context, entityID string, date time.Time) (*models.NetWorthSnapshot, error)
	ListSnapshots(ctx context.Context, entityID string, limit int) ([]*models.NetWorthSnapshot, error)

	// Audit trail (append-only)
	ListAudit(ctx context.Context, opts AuditListOptions) ([]*models.AuditRecord, error)

	// Update executes fn inside one write transaction. Every write fn makes
	// commits atomically with the others or not at all. A conflicting
	// concurrent writer surfaces as a models.ConflictError.
	Update(ctx context.Context, fn func(tx LedgerTx) error) error

	// View executes fn inside one read-only transaction: all reads observe
	// the same point-in-time ledger state. Writes through the tx fail.
	View(ctx context.Context, fn func(tx LedgerTx) error) error

	Close() error
}

// LedgerTx is the write surface available inside a LedgerStore.Update unit of
// work. Reads observe earlier writes from the same transaction.
type LedgerTx interface {
	GetEntity(id string) (*models.Entity, error)
	SaveEntity(entity *models.Entity) error
	GetAccount(id string) (*models.BankAccount, error)
	SaveAccount(account *models.BankAccount) error
	GetHolding(entityID, symbol string, securityType models.SecurityType) (*models.Holding, error)
	SaveHolding(holding *models.Holding) error
	GetAssetItem(id string) (*models.AssetLiability, error)
	SaveAssetItem(item *models.AssetLiability) error
	GetLoan(id string) (*models.Loan, error)
	SaveLoan(loan *models.Loan) error
	ListAccounts(entityID string) ([]*models.BankAccount, error)
	ListHoldings(entityID string) ([]*models.Holding, error)
	ListAssetItems(entityID string) ([]*models.AssetLiability, error)
	ListLoans(entityID string) ([]*models.Loan, error)

	// InsertTransaction enforces uniqueness: posting the same transaction ID
	// twice is rejected.
	InsertTransaction(tx *models.Transaction) error

	// GetTransaction reads an already-posted transaction.
	GetTransaction(id string) (*models.Transaction, error)

	// FindReversal returns the transaction reversing transactionID, or a
	// not-found error when none has been posted.
	FindReversal(transactionID string) (*models.Transaction, error)

	// SaveSnapshot upserts a snapshot by (entity, date).
	SaveSnapshot(snapshot *models.NetWorthSnapshot) error

	// AppendAudit appends an immutable audit record. There is no update or
	// delete counterpart.
	AppendAudit(record *models.AuditRecord) error
}

// TransactionListOptions filters and bounds transaction queries.
type TransactionListOptions struct {
	AccountID string
	Category  models.TransactionCategory
	Since     *time.Time
	Until     *time.Time
	Limit     int // default 100
}

// AuditListOptions filters and bounds audit queries.
type AuditListOptions struct {
	Table    string
	RecordID string
	Actor    string
	Limit    int // default 100
}

// ReferenceStore holds externally supplied market prices and exchange rates.
type ReferenceStore interface {
	GetPrice(ctx context.Context, symbol string, securityType models.SecurityType) (*models.SecurityPrice, error)
	SavePrice(ctx context.Context, price *models.SecurityPrice) error

	// GetRate returns the rate for (from, to) at or before date. Identical
	// currencies always yield rate 1.
	GetRate(ctx context.Context, from, to string, date time.Time) (*models.ExchangeRate, error)
	SaveRate(ctx context.Context, rate *models.ExchangeRate) error

	Close() error
}
