package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corvusfin/corvus/internal/models"
)

// PostingService applies transactions to the ledger. Each posting is a single
// atomic unit: the transaction insert, the balance/holding update, and the
// audit records all persist together or not at all. The actor is threaded
// explicitly through every mutating call.
type PostingService interface {
	// Post validates and persists a transaction, adjusting the referenced
	// bank account balance and/or holding state.
	Post(ctx context.Context, tx *models.Transaction, actor string) (*models.Transaction, error)

	// Reverse posts the offsetting transaction for an already-posted one.
	// Posted rows are never edited; this is the correction policy.
	Reverse(ctx context.Context, transactionID, actor string) (*models.Transaction, error)
}

// PositionService exposes holding state and corporate-action reprocessing.
type PositionService interface {
	GetHolding(ctx context.Context, entityID, symbol string, securityType models.SecurityType) (*models.Holding, error)
	ListHoldings(ctx context.Context, entityID string) ([]*models.Holding, error)

	// ApplyCorporateAction applies an action directly to a holding, outside
	// the transaction posting path. Used for reprocessing and backfill.
	ApplyCorporateAction(ctx context.Context, entityID, symbol string, securityType models.SecurityType,
		action models.CorporateAction, quantity, price decimal.Decimal, actor string) (*models.Holding, decimal.Decimal, error)

	// UpdateMarketPrice records an externally supplied price and refreshes
	// every holding carrying the symbol. Returns the number of holdings touched.
	UpdateMarketPrice(ctx context.Context, symbol string, securityType models.SecurityType,
		price decimal.Decimal, asOf time.Time, actor string) (int, error)
}

// NetWorthService derives point-in-time net worth and maintains dated
// snapshots. Recomputing an already-snapshotted date overwrites in place.
type NetWorthService interface {
	ComputeAndSnapshot(ctx context.Context, entityID string, asOf time.Time, includeUnrealized bool, actor string) (*models.NetWorthSnapshot, error)
	GetSnapshot(ctx context.Context, entityID string, date time.Time) (*models.NetWorthSnapshot, error)
	ListSnapshots(ctx context.Context, entityID string, limit int) ([]*models.NetWorthSnapshot, error)
}

// RegistryService manages the entity/account/asset/loan directory that the
// ledger posts against. Registration itself is a thin collaborator of the
// core; deactivation is soft and cascades to owned records.
type RegistryService interface {
	CreateEntity(ctx context.Context, entity *models.Entity, actor string) (*models.Entity, error)
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	ListEntities(ctx context.Context, activeOnly bool) ([]*models.Entity, error)
	DeactivateEntity(ctx context.Context, id, actor string) error

	CreateAccount(ctx context.Context, account *models.BankAccount, actor string) (*models.BankAccount, error)
	GetAccount(ctx context.Context, id string) (*models.BankAccount, error)
	ListAccounts(ctx context.Context, entityID string) ([]*models.BankAccount, error)

	CreateAssetItem(ctx context.Context, item *models.AssetLiability, actor string) (*models.AssetLiability, error)
	ListAssetItems(ctx context.Context, entityID string) ([]*models.AssetLiability, error)
	RevalueAssetItem(ctx context.Context, id string, currentValue decimal.Decimal, actor string) (*models.AssetLiability, error)

	CreateLoan(ctx context.Context, loan *models.Loan, actor string) (*models.Loan, error)
	ListLoans(ctx context.Context, entityID string) ([]*models.Loan, error)
	SetLoanBalance(ctx context.Context, id string, outstanding decimal.Decimal, actor string) (*models.Loan, error)
}

// AuditService reads the append-only audit trail.
type AuditService interface {
	List(ctx context.Context, opts AuditListOptions) ([]*models.AuditRecord, error)
}
