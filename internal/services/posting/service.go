// Package posting validates transactions and applies them to the ledger as
// single atomic units: the transaction row, the bank account balance change,
// the holding mutation, and the audit rows commit together or not at all.
package posting

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
	"github.com/corvusfin/corvus/internal/services/audit"
	"github.com/corvusfin/corvus/internal/services/position"
)

// Service implements transaction posting and reversal.
type Service struct {
	storage  interfaces.StorageManager
	config   *common.Config
	logger   *common.Logger
	recorder *audit.Recorder
	locks    *common.KeyedLocks
}

// NewService creates a posting service.
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

// Post validates tx, then persists it together with its side effects in one
// unit of work. The input is rejected whole before any state changes: a
// failed posting leaves no partial balance, holding, or audit writes behind.
func (s *Service) Post(ctx context.Context, tx *models.Transaction, actor string) (*models.Transaction, error) {
	if err := s.normalize(tx); err != nil {
		return nil, err
	}
	actor = common.ResolveActor(ctx, actor)

	// No lock keyed on the transaction itself: InsertTransaction already
	// rejects duplicate IDs atomically.
	var keys []string
	if tx.AccountID != "" {
		keys = append(keys, "account:"+tx.AccountID)
	}
	if tx.Asset != nil {
		keys = append(keys, "holding:"+models.HoldingKey(tx.EntityID, tx.Asset.Symbol, tx.Asset.SecurityType))
	}
	release, err := s.locks.Acquire(ctx, s.config.Ledger.GetLockWait(), keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.storage.Ledger().Update(ctx, func(ltx interfaces.LedgerTx) error {
		if err := s.checkParties(ltx, tx); err != nil {
			return err
		}
		if err := s.applyToAccount(ltx, tx, actor); err != nil {
			return err
		}
		if err := s.applyToHolding(ltx, tx, actor); err != nil {
			return err
		}
		if tx.ReversalOf != "" {
			if err := s.checkReversalTarget(ltx, tx); err != nil {
				return err
			}
		}

		tx.CreatedAt = time.Now().UTC()
		if err := ltx.InsertTransaction(tx); err != nil {
			return err
		}
		return s.recorder.Record(ltx, "transactions", tx.ID, models.AuditInsert, nil, tx, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("transaction_id", tx.ID).
		Str("entity_id", tx.EntityID).
		Str("category", string(tx.Category)).
		Str("amount", tx.Amount.String()).
		Str("actor", actor).
		Msg("Posted transaction")

	return tx, nil
}

// normalize fills defaults and rejects malformed input before any storage
// access.
func (s *Service) normalize(tx *models.Transaction) error {
	if tx == nil {
		return models.NewValidationError("transaction is required")
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}
	if tx.EntityID == "" {
		return models.NewValidationError("entity id is required")
	}
	if !models.ValidCategory(tx.Category) {
		return models.NewValidationError("invalid category '%s'", tx.Category)
	}
	if !models.ValidType(tx.Type) {
		return models.NewValidationError("invalid type '%s'", tx.Type)
	}
	if tx.Amount.LessThanOrEqual(decimal.Zero) {
		return models.NewValidationError("amount must be positive, got %s", tx.Amount)
	}
	tx.Amount = models.RoundMoney(tx.Amount)
	if tx.Currency == "" {
		tx.Currency = s.config.Ledger.BaseCurrency
	}
	tx.Currency = strings.ToUpper(tx.Currency)
	if tx.ExchangeRate.IsNegative() {
		return models.NewValidationError("exchange rate must not be negative, got %s", tx.ExchangeRate)
	}
	if tx.ExchangeRate.IsZero() {
		tx.ExchangeRate = decimal.NewFromInt(1)
	}
	if tx.TaxAmount.IsNegative() {
		return models.NewValidationError("tax amount must not be negative, got %s", tx.TaxAmount)
	}

	if tx.Asset != nil {
		a := tx.Asset
		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
		if a.Symbol == "" {
			return models.NewValidationError("asset symbol is required")
		}
		if !models.ValidSecurityType(a.SecurityType) {
			return models.NewValidationError("invalid security type '%s'", a.SecurityType)
		}
		if !models.ValidCorporateAction(a.Action) {
			return models.NewValidationError("invalid corporate action '%s'", a.Action)
		}
		if a.Fees.IsNegative() {
			return models.NewValidationError("fees must not be negative, got %s", a.Fees)
		}
	}
	return nil
}

// checkParties verifies the entity and counterparty exist and are active.
func (s *Service) checkParties(ltx interfaces.LedgerTx, tx *models.Transaction) error {
	entity, err := ltx.GetEntity(tx.EntityID)
	if models.IsNotFound(err) {
		return models.NewValidationError("unknown entity '%s'", tx.EntityID)
	}
	if err != nil {
		return err
	}
	if !entity.Active {
		return models.NewValidationError("entity '%s' is inactive", tx.EntityID)
	}

	if tx.CounterpartyID != "" {
		counterparty, err := ltx.GetEntity(tx.CounterpartyID)
		if models.IsNotFound(err) {
			return models.NewValidationError("unknown counterparty '%s'", tx.CounterpartyID)
		}
		if err != nil {
			return err
		}
		if !counterparty.Active {
			return models.NewValidationError("counterparty '%s' is inactive", tx.CounterpartyID)
		}
	}
	return nil
}

// applyToAccount adjusts the referenced bank account balance when the
// category moves cash.
func (s *Service) applyToAccount(ltx interfaces.LedgerTx, tx *models.Transaction, actor string) error {
	if tx.AccountID == "" {
		return nil
	}

	account, err := ltx.GetAccount(tx.AccountID)
	if models.IsNotFound(err) {
		return models.NewValidationError("unknown account '%s'", tx.AccountID)
	}
	if err != nil {
		return err
	}
	if !account.Active {
		return models.NewValidationError("account '%s' is inactive", tx.AccountID)
	}
	if account.EntityID != tx.EntityID {
		return models.NewValidationError("account '%s' does not belong to entity '%s'", tx.AccountID, tx.EntityID)
	}
	if account.Currency != tx.Currency {
		return models.NewValidationError("account currency %s does not match transaction currency %s", account.Currency, tx.Currency)
	}

	direction := tx.Category.BalanceDirection()
	if direction == 0 {
		return nil
	}

	before := *account
	delta := tx.Amount.Mul(decimal.NewFromInt(int64(direction)))
	account.CurrentBalance = models.RoundMoney(account.CurrentBalance.Add(delta))
	if err := ltx.SaveAccount(account); err != nil {
		return err
	}
	return s.recorder.Record(ltx, "bank_accounts", account.ID, models.AuditUpdate, before, account, actor)
}

// applyToHolding runs the corporate action carried by an asset transaction.
func (s *Service) applyToHolding(ltx interfaces.LedgerTx, tx *models.Transaction, actor string) error {
	if tx.Asset == nil {
		return nil
	}

	_, realized, err := position.ApplyToHolding(ltx, s.recorder, tx.EntityID, tx.Asset.Symbol,
		tx.Asset.SecurityType, tx.Currency, tx.Asset.Action, tx.Asset.Quantity, tx.Asset.PricePerUnit, actor)
	if err != nil {
		return err
	}
	tx.Asset.RealizedGainLoss = realized
	return nil
}

// checkReversalTarget guards a posting that declares itself a reversal. It
// runs inside the unit of work, so the already-reversed check holds for
// direct postings as much as for Reverse.
func (s *Service) checkReversalTarget(ltx interfaces.LedgerTx, tx *models.Transaction) error {
	original, err := ltx.GetTransaction(tx.ReversalOf)
	if models.IsNotFound(err) {
		return models.NewValidationError("cannot reverse unknown transaction '%s'", tx.ReversalOf)
	}
	if err != nil {
		return err
	}
	if original.ReversalOf != "" {
		return models.NewValidationError("transaction '%s' is itself a reversal", tx.ReversalOf)
	}
	existing, err := ltx.FindReversal(tx.ReversalOf)
	if err != nil && !models.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return models.NewValidationError("transaction '%s' is already reversed by '%s'", tx.ReversalOf, existing.ID)
	}
	return nil
}

// Reverse builds and posts the offsetting transaction for id. Splits and
// bonus issues cannot be reversed mechanically; repost a correcting action
// instead.
func (s *Service) Reverse(ctx context.Context, transactionID, actor string) (*models.Transaction, error) {
	if transactionID == "" {
		return nil, models.NewValidationError("transaction id is required")
	}

	// Serialize reversals of the same original so the already-reversed check
	// cannot race a concurrent reversal.
	release, err := s.locks.Acquire(ctx, s.config.Ledger.GetLockWait(), "reversal:"+transactionID)
	if err != nil {
		return nil, err
	}
	defer release()

	original, err := s.storage.Ledger().GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if original.ReversalOf != "" {
		return nil, models.NewValidationError("transaction '%s' is itself a reversal", transactionID)
	}
	existing, err := s.storage.Ledger().FindReversal(ctx, transactionID)
	if err != nil && !models.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("transaction '%s' is already reversed by '%s'", transactionID, existing.ID)
	}

	reversal := &models.Transaction{
		ID:             uuid.New().String(),
		Date:           time.Now().UTC(),
		EntityID:       original.EntityID,
		CounterpartyID: original.CounterpartyID,
		AccountID:      original.AccountID,
		Category:       reverseCategory(original.Category),
		Type:           original.Type,
		Currency:       original.Currency,
		Amount:         original.Amount,
		ExchangeRate:   original.ExchangeRate,
		TaxAmount:      original.TaxAmount,
		Description:    "Reversal of " + original.ID,
		ReversalOf:     original.ID,
	}

	if original.Asset != nil {
		action, err := reverseAction(original.Asset.Action)
		if err != nil {
			return nil, err
		}
		reversal.Asset = &models.AssetTransaction{
			Action:       action,
			Symbol:       original.Asset.Symbol,
			SecurityType: original.Asset.SecurityType,
			Quantity:     original.Asset.Quantity,
			PricePerUnit: original.Asset.PricePerUnit,
			Fees:         original.Asset.Fees,
		}
	}

	return s.Post(ctx, reversal, actor)
}

// reverseCategory maps a category to its cash-flow opposite. Categories that
// do not move cash reverse under their own name.
func reverseCategory(c models.TransactionCategory) models.TransactionCategory {
	switch c {
	case models.CategoryDeposit:
		return models.CategoryWithdrawal
	case models.CategoryWithdrawal:
		return models.CategoryDeposit
	case models.CategoryInterest:
		return models.CategoryFee
	case models.CategoryFee:
		return models.CategoryInterest
	case models.CategoryDividend:
		return models.CategoryPayment
	case models.CategoryPayment:
		return models.CategoryDividend
	case models.CategoryPurchase:
		return models.CategorySale
	case models.CategorySale:
		return models.CategoryPurchase
	}
	return c
}

// reverseAction maps a corporate action to its offsetting action.
func reverseAction(a models.CorporateAction) (models.CorporateAction, error) {
	switch a {
	case models.ActionBuy:
		return models.ActionSell, nil
	case models.ActionSell:
		return models.ActionBuy, nil
	case models.ActionSplit, models.ActionBonus:
		return "", models.NewValidationError("cannot reverse a %s; post a corrective action instead", a)
	}
	// Pass-through actions have no holding effect either way.
	return a, nil
}

var _ interfaces.PostingService = (*Service)(nil)
