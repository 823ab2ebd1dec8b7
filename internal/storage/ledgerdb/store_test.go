package ledgerdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEntityRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entity := &models.Entity{ID: "e1", Type: models.EntityTypePerson, Name: "Ada", Active: true}
	require.NoError(t, store.SaveEntity(ctx, entity))

	got, err := store.GetEntity(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())

	_, err = store.GetEntity(ctx, "missing")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestSaveEntityPreservesCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entity := &models.Entity{ID: "e1", Type: models.EntityTypePerson, Name: "Ada", Active: true}
	require.NoError(t, store.SaveEntity(ctx, entity))

	first, err := store.GetEntity(ctx, "e1")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	first.Name = "Ada Updated"
	first.CreatedAt = time.Time{} // callers may not carry it; the store restores it
	require.NoError(t, store.SaveEntity(ctx, first))

	second, err := store.GetEntity(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Updated", second.Name)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.UpdatedAt.After(second.CreatedAt))
}

func TestListEntitiesActiveFilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEntity(ctx, &models.Entity{ID: "e1", Type: models.EntityTypePerson, Name: "Zoe", Active: true}))
	require.NoError(t, store.SaveEntity(ctx, &models.Entity{ID: "e2", Type: models.EntityTypeCompany, Name: "Acme", Active: true}))
	require.NoError(t, store.SaveEntity(ctx, &models.Entity{ID: "e3", Type: models.EntityTypeBank, Name: "Midway", Active: false}))

	all, err := store.ListEntities(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Acme", all[0].Name)
	assert.Equal(t, "Midway", all[1].Name)
	assert.Equal(t, "Zoe", all[2].Name)

	active, err := store.ListEntities(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, e := range active {
		assert.True(t, e.Active)
	}
}

func TestHoldingKeyedByEntitySymbolType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stock := &models.Holding{
		EntityID:     "e1",
		Symbol:       "VAS",
		SecurityType: models.SecurityTypeStock,
		Currency:     "AUD",
		Quantity:     decimal.RequireFromString("10"),
		AvgCostPrice: decimal.RequireFromString("95.5"),
		Active:       true,
	}
	etf := &models.Holding{
		EntityID:     "e1",
		Symbol:       "VAS",
		SecurityType: models.SecurityTypeETF,
		Currency:     "AUD",
		Quantity:     decimal.RequireFromString("4"),
		AvgCostPrice: decimal.RequireFromString("88"),
		Active:       true,
	}
	require.NoError(t, store.SaveHolding(ctx, stock))
	require.NoError(t, store.SaveHolding(ctx, etf))

	got, err := store.GetHolding(ctx, "e1", "VAS", models.SecurityTypeStock)
	require.NoError(t, err)
	assert.Equal(t, "10", got.Quantity.String())

	other, err := store.GetHolding(ctx, "e1", "VAS", models.SecurityTypeETF)
	require.NoError(t, err)
	assert.Equal(t, "4", other.Quantity.String())

	_, err = store.GetHolding(ctx, "e2", "VAS", models.SecurityTypeStock)
	assert.True(t, models.IsNotFound(err))
}

func TestListHoldingsBySymbolSpansEntities(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, entityID := range []string{"e1", "e2"} {
		require.NoError(t, store.SaveHolding(ctx, &models.Holding{
			EntityID:     entityID,
			Symbol:       "BHP",
			SecurityType: models.SecurityTypeStock,
			Currency:     "AUD",
			Quantity:     decimal.RequireFromString("5"),
			AvgCostPrice: decimal.RequireFromString("40"),
			Active:       true,
		}))
	}
	require.NoError(t, store.SaveHolding(ctx, &models.Holding{
		EntityID:     "e1",
		Symbol:       "BHP",
		SecurityType: models.SecurityTypeETF,
		Currency:     "AUD",
		Quantity:     decimal.RequireFromString("1"),
		AvgCostPrice: decimal.RequireFromString("40"),
		Active:       true,
	}))

	holdings, err := store.ListHoldingsBySymbol(ctx, "BHP", models.SecurityTypeStock)
	require.NoError(t, err)
	assert.Len(t, holdings, 2)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Update(ctx, func(tx interfaces.LedgerTx) error {
		if err := tx.SaveEntity(&models.Entity{ID: "e1", Type: models.EntityTypePerson, Name: "Ada", Active: true}); err != nil {
			return err
		}
		if err := tx.SaveAccount(&models.BankAccount{ID: "a1", EntityID: "e1", Name: "Cash", Currency: "AUD", Active: true}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetEntity(ctx, "e1")
	assert.True(t, models.IsNotFound(err))
	_, err = store.GetAccount(ctx, "a1")
	assert.True(t, models.IsNotFound(err))
}

func TestUpdateReadsSeeEarlierWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx interfaces.LedgerTx) error {
		if err := tx.SaveAccount(&models.BankAccount{
			ID:             "a1",
			EntityID:       "e1",
			Name:           "Cash",
			Currency:       "AUD",
			OpeningBalance: decimal.RequireFromString("100"),
			CurrentBalance: decimal.RequireFromString("100"),
			Active:         true,
		}); err != nil {
			return err
		}
		account, err := tx.GetAccount("a1")
		if err != nil {
			return err
		}
		account.CurrentBalance = account.CurrentBalance.Add(decimal.RequireFromString("50"))
		return tx.SaveAccount(account)
	})
	require.NoError(t, err)

	account, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "150", account.CurrentBalance.String())
}

func TestViewPinsPointInTimeState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := &models.BankAccount{
		ID:             "a1",
		EntityID:       "e1",
		Name:           "Cash",
		Currency:       "AUD",
		OpeningBalance: decimal.RequireFromString("1000"),
		CurrentBalance: decimal.RequireFromString("1000"),
		Active:         true,
	}
	require.NoError(t, store.SaveAccount(ctx, account))

	err := store.View(ctx, func(tx interfaces.LedgerTx) error {
		before, err := tx.GetAccount("a1")
		if err != nil {
			return err
		}
		assert.Equal(t, "1000", before.CurrentBalance.String())

		// Commit an update through a separate write transaction while the
		// view is open.
		updated := *account
		updated.CurrentBalance = decimal.RequireFromString("1700")
		if err := store.SaveAccount(ctx, &updated); err != nil {
			return err
		}

		// The open view keeps serving the state it started from.
		after, err := tx.GetAccount("a1")
		if err != nil {
			return err
		}
		assert.Equal(t, "1000", after.CurrentBalance.String())
		return nil
	})
	require.NoError(t, err)

	fresh, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "1700", fresh.CurrentBalance.String())
}

func TestInsertTransactionRejectsDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := &models.Transaction{
		ID:       "t1",
		Date:     time.Now().UTC(),
		EntityID: "e1",
		Category: models.CategoryDeposit,
		Type:     models.TypeIncome,
		Currency: "AUD",
		Amount:   decimal.RequireFromString("100"),
	}
	require.NoError(t, store.Update(ctx, func(ltx interfaces.LedgerTx) error {
		return ltx.InsertTransaction(tx)
	}))

	err := store.Update(ctx, func(ltx interfaces.LedgerTx) error {
		return ltx.InsertTransaction(tx)
	})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Contains(t, err.Error(), "already posted")
}

func insertTx(t *testing.T, store *Store, tx *models.Transaction) {
	t.Helper()
	require.NoError(t, store.Update(context.Background(), func(ltx interfaces.LedgerTx) error {
		return ltx.InsertTransaction(tx)
	}))
}

func TestListTransactionsFiltersAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertTx(t, store, &models.Transaction{
		ID: "t1", Date: base, EntityID: "e1", AccountID: "a1",
		Category: models.CategoryDeposit, Type: models.TypeIncome,
		Currency: "AUD", Amount: decimal.RequireFromString("100"),
	})
	insertTx(t, store, &models.Transaction{
		ID: "t2", Date: base.AddDate(0, 0, 5), EntityID: "e1", AccountID: "a2",
		Category: models.CategoryFee, Type: models.TypeExpense,
		Currency: "AUD", Amount: decimal.RequireFromString("20"),
	})
	insertTx(t, store, &models.Transaction{
		ID: "t3", Date: base.AddDate(0, 0, 10), EntityID: "e1", AccountID: "a1",
		Category: models.CategoryDeposit, Type: models.TypeIncome,
		Currency: "AUD", Amount: decimal.RequireFromString("300"),
	})
	insertTx(t, store, &models.Transaction{
		ID: "t4", Date: base, EntityID: "e2", AccountID: "a9",
		Category: models.CategoryDeposit, Type: models.TypeIncome,
		Currency: "AUD", Amount: decimal.RequireFromString("50"),
	})

	all, err := store.ListTransactions(ctx, "e1", interfaces.TransactionListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t3", all[0].ID)
	assert.Equal(t, "t1", all[2].ID)

	byAccount, err := store.ListTransactions(ctx, "e1", interfaces.TransactionListOptions{AccountID: "a1"})
	require.NoError(t, err)
	assert.Len(t, byAccount, 2)

	byCategory, err := store.ListTransactions(ctx, "e1", interfaces.TransactionListOptions{Category: models.CategoryFee})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "t2", byCategory[0].ID)

	since := base.AddDate(0, 0, 3)
	until := base.AddDate(0, 0, 7)
	windowed, err := store.ListTransactions(ctx, "e1", interfaces.TransactionListOptions{Since: &since, Until: &until})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "t2", windowed[0].ID)

	limited, err := store.ListTransactions(ctx, "e1", interfaces.TransactionListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "t3", limited[0].ID)
	assert.Equal(t, "t2", limited[1].ID)
}

func TestFindReversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTx(t, store, &models.Transaction{
		ID: "t1", Date: time.Now().UTC(), EntityID: "e1",
		Category: models.CategoryDeposit, Type: models.TypeIncome,
		Currency: "AUD", Amount: decimal.RequireFromString("100"),
	})

	_, err := store.FindReversal(ctx, "t1")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))

	insertTx(t, store, &models.Transaction{
		ID: "t2", Date: time.Now().UTC(), EntityID: "e1",
		Category: models.CategoryWithdrawal, Type: models.TypeIncome,
		Currency: "AUD", Amount: decimal.RequireFromString("100"),
		ReversalOf: "t1",
	})

	reversal, err := store.FindReversal(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t2", reversal.ID)
}

func TestSnapshotUpsertKeepsSingleRowPerDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 5, 20, 15, 30, 0, 0, time.UTC)
	first := &models.NetWorthSnapshot{
		EntityID:          "e1",
		CalculationDate:   models.SnapshotDate(day),
		TotalAssets:       decimal.RequireFromString("1000"),
		TotalLiabilities:  decimal.RequireFromString("400"),
		CalculationMethod: models.CalcMethodMarketValue,
		IncludeUnrealized: true,
	}
	require.NoError(t, store.Update(ctx, func(tx interfaces.LedgerTx) error {
		return tx.SaveSnapshot(first)
	}))

	stored, err := store.GetSnapshot(ctx, "e1", day)
	require.NoError(t, err)
	createdAt := stored.CreatedAt
	require.False(t, createdAt.IsZero())

	time.Sleep(10 * time.Millisecond)

	second := &models.NetWorthSnapshot{
		EntityID:          "e1",
		CalculationDate:   models.SnapshotDate(day),
		TotalAssets:       decimal.RequireFromString("1100"),
		TotalLiabilities:  decimal.RequireFromString("400"),
		CalculationMethod: models.CalcMethodMarketValue,
		IncludeUnrealized: true,
	}
	require.NoError(t, store.Update(ctx, func(tx interfaces.LedgerTx) error {
		return tx.SaveSnapshot(second)
	}))

	snapshots, err := store.ListSnapshots(ctx, "e1", 0)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "1100", snapshots[0].TotalAssets.String())
	assert.True(t, createdAt.Equal(snapshots[0].CreatedAt))
	assert.True(t, snapshots[0].UpdatedAt.After(snapshots[0].CreatedAt))
	assert.Equal(t, "700", snapshots[0].NetWorth().String())
}

func TestListSnapshotsOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		day := time.Date(2026, 5, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.Update(ctx, func(tx interfaces.LedgerTx) error {
			return tx.SaveSnapshot(&models.NetWorthSnapshot{
				EntityID:          "e1",
				CalculationDate:   day,
				TotalAssets:       decimal.NewFromInt(int64(100 * (i + 1))),
				CalculationMethod: models.CalcMethodCostBasis,
			})
		}))
	}

	snapshots, err := store.ListSnapshots(ctx, "e1", 2)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "300", snapshots[0].TotalAssets.String())
	assert.Equal(t, "200", snapshots[1].TotalAssets.String())
}

func TestAuditAppendAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []*models.AuditRecord{
		{ID: "r1", Table: "entities", RecordID: "e1", Action: models.AuditInsert, Actor: "alice",
			NewFields: map[string]any{"name": "Ada"}},
		{ID: "r2", Table: "entities", RecordID: "e2", Action: models.AuditInsert, Actor: "bob",
			NewFields: map[string]any{"name": "Acme"}},
		{ID: "r3", Table: "bank_accounts", RecordID: "a1", Action: models.AuditUpdate, Actor: "alice",
			OldFields: map[string]any{"current_balance": "100"},
			NewFields: map[string]any{"current_balance": "150"}},
	}
	require.NoError(t, store.Update(ctx, func(tx interfaces.LedgerTx) error {
		for _, rec := range records {
			if err := tx.AppendAudit(rec); err != nil {
				return err
			}
		}
		return nil
	}))

	byTable, err := store.ListAudit(ctx, interfaces.AuditListOptions{Table: "entities"})
	require.NoError(t, err)
	assert.Len(t, byTable, 2)

	byActor, err := store.ListAudit(ctx, interfaces.AuditListOptions{Actor: "alice"})
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	byRecord, err := store.ListAudit(ctx, interfaces.AuditListOptions{Table: "entities", RecordID: "e2"})
	require.NoError(t, err)
	require.Len(t, byRecord, 1)
	assert.Equal(t, "bob", byRecord[0].Actor)
	assert.Equal(t, "Acme", byRecord[0].NewFields["name"])
}

// Transactions carrying an asset leg audit as nested maps; the stored
// encoding has to round-trip those intact.
func TestAuditNestedFieldsSurviveStorage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &models.AuditRecord{
		ID:       "r1",
		Table:    "transactions",
		RecordID: "t1",
		Action:   models.AuditInsert,
		Actor:    "api",
		NewFields: map[string]any{
			"id":     "t1",
			"amount": "1000",
			"asset": map[string]any{
				"symbol":   "VAS",
				"quantity": "10",
				"tags":     []any{"buy", "etf"},
			},
		},
	}
	require.NoError(t, store.Update(ctx, func(tx interfaces.LedgerTx) error {
		return tx.AppendAudit(record)
	}))

	got, err := store.ListAudit(ctx, interfaces.AuditListOptions{Table: "transactions", RecordID: "t1"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	asset, ok := got[0].NewFields["asset"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "VAS", asset["symbol"])
	tags, ok := asset["tags"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"buy", "etf"}, tags)
}

func TestAssetItemAndLoanRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := &models.AssetLiability{
		ID:            "i1",
		EntityID:      "e1",
		Name:          "House",
		Category:      models.AssetCategoryAsset,
		Currency:      "AUD",
		OriginalValue: decimal.RequireFromString("500000"),
		CurrentValue:  decimal.RequireFromString("550000"),
		Active:        true,
	}
	require.NoError(t, store.SaveAssetItem(ctx, item))

	loan := &models.Loan{
		ID:                 "l1",
		EntityID:           "e1",
		Name:               "Mortgage",
		Currency:           "AUD",
		Principal:          decimal.RequireFromString("400000"),
		OutstandingBalance: decimal.RequireFromString("380000"),
		AnnualRatePct:      decimal.RequireFromString("5.5"),
		Active:             true,
	}
	require.NoError(t, store.SaveLoan(ctx, loan))

	gotItem, err := store.GetAssetItem(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "550000", gotItem.CurrentValue.String())

	gotLoan, err := store.GetLoan(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "380000", gotLoan.OutstandingBalance.String())

	items, err := store.ListAssetItems(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	loans, err := store.ListLoans(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}
