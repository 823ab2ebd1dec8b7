package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
	"github.com/corvusfin/corvus/internal/services/audit"
	"github.com/corvusfin/corvus/internal/storage"
)

func newTestService(t *testing.T) (*Service, interfaces.StorageManager) {
	t.Helper()

	config := common.NewDefaultConfig()
	dir := t.TempDir()
	config.Storage.Ledger.Path = filepath.Join(dir, "ledger")
	config.Storage.Reference.Path = filepath.Join(dir, "reference")

	logger := common.NewSilentLogger()
	manager, err := storage.NewManager(logger, config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	svc := NewService(manager, config, logger, audit.NewRecorder(), common.NewKeyedLocks())
	return svc, manager
}

func createEntity(t *testing.T, svc *Service) *models.Entity {
	t.Helper()
	entity, err := svc.CreateEntity(context.Background(), &models.Entity{
		Type: models.EntityTypePerson,
		Name: "Alex Doe",
	}, "tester")
	require.NoError(t, err)
	return entity
}

func TestCreateEntity(t *testing.T) {
	svc, manager := newTestService(t)

	entity := createEntity(t, svc)
	assert.NotEmpty(t, entity.ID)
	assert.True(t, entity.Active)

	stored, err := svc.GetEntity(context.Background(), entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alex Doe", stored.Name)
	assert.False(t, stored.CreatedAt.IsZero())

	records, err := manager.Ledger().ListAudit(context.Background(), interfaces.AuditListOptions{Table: "entities"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AuditInsert, records[0].Action)
	assert.Nil(t, records[0].OldFields)
	assert.Equal(t, "Alex Doe", records[0].NewFields["name"])
}

func TestCreateEntityValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateEntity(ctx, &models.Entity{Type: models.EntityTypePerson}, "tester")
	assert.True(t, models.IsValidation(err))

	_, err = svc.CreateEntity(ctx, &models.Entity{Type: "alien", Name: "X"}, "tester")
	assert.True(t, models.IsValidation(err))

	entity := createEntity(t, svc)
	_, err = svc.CreateEntity(ctx, &models.Entity{ID: entity.ID, Type: models.EntityTypePerson, Name: "Dup"}, "tester")
	assert.True(t, models.IsValidation(err))
}

func TestCreateAccountSeedsBalance(t *testing.T) {
	svc, _ := newTestService(t)
	entity := createEntity(t, svc)

	account, err := svc.CreateAccount(context.Background(), &models.BankAccount{
		EntityID:       entity.ID,
		Name:           "Everyday",
		Currency:       "aud",
		OpeningBalance: decimal.RequireFromString("1500.25"),
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, "AUD", account.Currency)
	assert.Equal(t, "1500.25", account.CurrentBalance.String())
	assert.True(t, account.Active)
}

func TestCreateAccountRequiresActiveEntity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, &models.BankAccount{EntityID: "nope", Name: "X"}, "tester")
	assert.True(t, models.IsValidation(err))

	entity := createEntity(t, svc)
	require.NoError(t, svc.DeactivateEntity(ctx, entity.ID, "tester"))

	_, err = svc.CreateAccount(ctx, &models.BankAccount{EntityID: entity.ID, Name: "X"}, "tester")
	assert.True(t, models.IsValidation(err))
}

func TestDeactivateEntityCascades(t *testing.T) {
	svc, manager := newTestService(t)
	ctx := context.Background()
	entity := createEntity(t, svc)

	account, err := svc.CreateAccount(ctx, &models.BankAccount{EntityID: entity.ID, Name: "Cash"}, "tester")
	require.NoError(t, err)
	item, err := svc.CreateAssetItem(ctx, &models.AssetLiability{
		EntityID: entity.ID, Name: "House", Category: models.AssetCategoryAsset,
		OriginalValue: decimal.RequireFromString("500000"),
	}, "tester")
	require.NoError(t, err)
	loan, err := svc.CreateLoan(ctx, &models.Loan{
		EntityID: entity.ID, Name: "Mortgage",
		Principal: decimal.RequireFromString("400000"),
	}, "tester")
	require.NoError(t, err)
	require.NoError(t, manager.Ledger().SaveHolding(ctx, &models.Holding{
		EntityID: entity.ID, Symbol: "WES", SecurityType: models.SecurityTypeStock,
		Currency: "USD", Quantity: decimal.RequireFromString("10"), Active: true,
	}))

	require.NoError(t, svc.DeactivateEntity(ctx, entity.ID, "tester"))

	stored, err := svc.GetEntity(ctx, entity.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	storedAccount, err := svc.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, storedAccount.Active)

	items, err := svc.ListAssetItems(ctx, entity.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.False(t, items[0].Active)

	loans, err := svc.ListLoans(ctx, entity.ID)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, loan.ID, loans[0].ID)
	assert.False(t, loans[0].Active)

	holding, err := manager.Ledger().GetHolding(ctx, entity.ID, "WES", models.SecurityTypeStock)
	require.NoError(t, err)
	assert.False(t, holding.Active)

	// Repeating is a no-op, not an error.
	require.NoError(t, svc.DeactivateEntity(ctx, entity.ID, "tester"))
}

func TestDeactivateUnknownEntity(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.DeactivateEntity(context.Background(), "nope", "tester")
	assert.True(t, models.IsNotFound(err))
}

func TestCreateAssetItemDefaultsCurrentValue(t *testing.T) {
	svc, _ := newTestService(t)
	entity := createEntity(t, svc)

	item, err := svc.CreateAssetItem(context.Background(), &models.AssetLiability{
		EntityID:      entity.ID,
		Name:          "Car",
		Category:      models.AssetCategoryAsset,
		OriginalValue: decimal.RequireFromString("32000"),
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, "32000", item.CurrentValue.String())
	assert.Equal(t, "USD", item.Currency)
}

func TestRevalueAssetItem(t *testing.T) {
	svc, manager := newTestService(t)
	ctx := context.Background()
	entity := createEntity(t, svc)

	item, err := svc.CreateAssetItem(ctx, &models.AssetLiability{
		EntityID: entity.ID, Name: "Car", Category: models.AssetCategoryAsset,
		OriginalValue: decimal.RequireFromString("32000"),
	}, "tester")
	require.NoError(t, err)

	updated, err := svc.RevalueAssetItem(ctx, item.ID, decimal.RequireFromString("28500"), "valuer")
	require.NoError(t, err)
	assert.Equal(t, "28500", updated.CurrentValue.String())
	assert.Equal(t, "32000", updated.OriginalValue.String(), "original value never changes")

	records, err := manager.Ledger().ListAudit(ctx, interfaces.AuditListOptions{
		Table: "assets_liabilities", RecordID: item.ID,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	_, err = svc.RevalueAssetItem(ctx, item.ID, decimal.RequireFromString("-1"), "valuer")
	assert.True(t, models.IsValidation(err))
}

func TestCreateLoanDefaultsOutstanding(t *testing.T) {
	svc, _ := newTestService(t)
	entity := createEntity(t, svc)

	loan, err := svc.CreateLoan(context.Background(), &models.Loan{
		EntityID:  entity.ID,
		Name:      "Mortgage",
		Principal: decimal.RequireFromString("400000"),
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, "400000", loan.OutstandingBalance.String())
}

func TestSetLoanBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	entity := createEntity(t, svc)

	loan, err := svc.CreateLoan(ctx, &models.Loan{
		EntityID: entity.ID, Name: "Mortgage",
		Principal: decimal.RequireFromString("400000"),
	}, "tester")
	require.NoError(t, err)

	updated, err := svc.SetLoanBalance(ctx, loan.ID, decimal.RequireFromString("395000"), "tester")
	require.NoError(t, err)
	assert.Equal(t, "395000", updated.OutstandingBalance.String())

	_, err = svc.SetLoanBalance(ctx, loan.ID, decimal.RequireFromString("-10"), "tester")
	assert.True(t, models.IsValidation(err))

	_, err = svc.SetLoanBalance(ctx, "nope", decimal.Zero, "tester")
	assert.True(t, models.IsNotFound(err))
}

func TestListEntitiesActiveOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := createEntity(t, svc)
	second, err := svc.CreateEntity(ctx, &models.Entity{Type: models.EntityTypeCompany, Name: "Acme"}, "tester")
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateEntity(ctx, second.ID, "tester"))

	all, err := svc.ListEntities(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.ListEntities(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)
}
