package ledgerdb

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
)

// ledgerTx implements interfaces.LedgerTx over one badger write transaction.
// Reads observe writes made earlier in the same transaction; nothing is
// visible to other readers until the transaction commits.
type ledgerTx struct {
	db  *badgerhold.Store
	btx *badger.Txn
}

func (t *ledgerTx) GetEntity(id string) (*models.Entity, error) {
	var entity models.Entity
	if err := t.db.TxGet(t.btx, id, &entity); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("entity '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get entity", Err: err}
	}
	return &entity, nil
}

func (t *ledgerTx) SaveEntity(entity *models.Entity) error {
	now := time.Now()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now
	if err := t.db.TxUpsert(t.btx, entity.ID, entity); err != nil {
		return &models.StorageError{Op: "save entity", Err: err}
	}
	return nil
}

func (t *ledgerTx) GetAccount(id string) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := t.db.TxGet(t.btx, id, &account); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("account '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get account", Err: err}
	}
	return &account, nil
}

func (t *ledgerTx) SaveAccount(account *models.BankAccount) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if err := t.db.TxUpsert(t.btx, account.ID, account); err != nil {
		return &models.StorageError{Op: "save account", Err: err}
	}
	return nil
}

func (t *ledgerTx) GetHolding(entityID, symbol string, securityType models.SecurityType) (*models.Holding, error) {
	var holding models.Holding
	key := models.HoldingKey(entityID, symbol, securityType)
	if err := t.db.TxGet(t.btx, key, &holding); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("holding '%s/%s' %w", entityID, symbol, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get holding", Err: err}
	}
	return &holding, nil
}

func (t *ledgerTx) SaveHolding(holding *models.Holding) error {
	now := time.Now()
	if holding.CreatedAt.IsZero() {
		holding.CreatedAt = now
	}
	holding.UpdatedAt = now
	if err := t.db.TxUpsert(t.btx, holding.Key(), holding); err != nil {
		return &models.StorageError{Op: "save holding", Err: err}
	}
	return nil
}

func (t *ledgerTx) GetAssetItem(id string) (*models.AssetLiability, error) {
	var item models.AssetLiability
	if err := t.db.TxGet(t.btx, id, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("asset item '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get asset item", Err: err}
	}
	return &item, nil
}

func (t *ledgerTx) SaveAssetItem(item *models.AssetLiability) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if err := t.db.TxUpsert(t.btx, item.ID, item); err != nil {
		return &models.StorageError{Op: "save asset item", Err: err}
	}
	return nil
}

func (t *ledgerTx) GetLoan(id string) (*models.Loan, error) {
	var loan models.Loan
	if err := t.db.TxGet(t.btx, id, &loan); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("loan '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get loan", Err: err}
	}
	return &loan, nil
}

func (t *ledgerTx) SaveLoan(loan *models.Loan) error {
	now := time.Now()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now
	if err := t.db.TxUpsert(t.btx, loan.ID, loan); err != nil {
		return &models.StorageError{Op: "save loan", Err: err}
	}
	return nil
}

func (t *ledgerTx) ListAccounts(entityID string) ([]*models.BankAccount, error) {
	var accounts []models.BankAccount
	if err := t.db.TxFind(t.btx, &accounts, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list accounts", Err: err}
	}
	result := make([]*models.BankAccount, len(accounts))
	for i := range accounts {
		result[i] = &accounts[i]
	}
	return result, nil
}

func (t *ledgerTx) ListHoldings(entityID string) ([]*models.Holding, error) {
	var holdings []models.Holding
	if err := t.db.TxFind(t.btx, &holdings, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list holdings", Err: err}
	}
	result := make([]*models.Holding, len(holdings))
	for i := range holdings {
		result[i] = &holdings[i]
	}
	return result, nil
}

func (t *ledgerTx) ListAssetItems(entityID string) ([]*models.AssetLiability, error) {
	var items []models.AssetLiability
	if err := t.db.TxFind(t.btx, &items, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list asset items", Err: err}
	}
	result := make([]*models.AssetLiability, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (t *ledgerTx) ListLoans(entityID string) ([]*models.Loan, error) {
	var loans []models.Loan
	if err := t.db.TxFind(t.btx, &loans, badgerhold.Where("EntityID").Eq(entityID)); err != nil {
		return nil, &models.StorageError{Op: "list loans", Err: err}
	}
	result := make([]*models.Loan, len(loans))
	for i := range loans {
		result[i] = &loans[i]
	}
	return result, nil
}

// InsertTransaction persists a posted transaction. Posted rows are immutable,
// so this is insert-only: a duplicate ID is a policy violation, not an upsert.
func (t *ledgerTx) InsertTransaction(tx *models.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	if err := t.db.TxInsert(t.btx, tx.ID, tx); err != nil {
		if err == badgerhold.ErrKeyExists {
			return models.NewValidationError("transaction '%s' already posted", tx.ID)
		}
		return &models.StorageError{Op: "insert transaction", Err: err}
	}
	return nil
}

func (t *ledgerTx) GetTransaction(id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := t.db.TxGet(t.btx, id, &tx); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("transaction '%s' %w", id, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get transaction", Err: err}
	}
	return &tx, nil
}

func (t *ledgerTx) FindReversal(transactionID string) (*models.Transaction, error) {
	var txs []models.Transaction
	if err := t.db.TxFind(t.btx, &txs, badgerhold.Where("ReversalOf").Eq(transactionID)); err != nil {
		return nil, &models.StorageError{Op: "find reversal", Err: err}
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("reversal of '%s' %w", transactionID, models.ErrNotFound)
	}
	return &txs[0], nil
}

// SaveSnapshot upserts a snapshot by (entity, date), preserving CreatedAt on
// overwrite so recomputation stays idempotent.
func (t *ledgerTx) SaveSnapshot(snapshot *models.NetWorthSnapshot) error {
	now := time.Now()
	var existing models.NetWorthSnapshot
	if err := t.db.TxGet(t.btx, snapshot.Key(), &existing); err == nil {
		snapshot.CreatedAt = existing.CreatedAt
	} else if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	snapshot.UpdatedAt = now
	if err := t.db.TxUpsert(t.btx, snapshot.Key(), snapshot); err != nil {
		return &models.StorageError{Op: "save snapshot", Err: err}
	}
	return nil
}

// AppendAudit appends an audit record. Append-only: no update or delete path
// exists anywhere in this package.
func (t *ledgerTx) AppendAudit(record *models.AuditRecord) error {
	if record.At.IsZero() {
		record.At = time.Now()
	}
	if err := t.db.TxInsert(t.btx, record.ID, record); err != nil {
		return &models.StorageError{Op: "append audit", Err: err}
	}
	return nil
}

// Compile-time check
var _ interfaces.LedgerTx = (*ledgerTx)(nil)
