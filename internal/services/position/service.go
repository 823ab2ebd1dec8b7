package position

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
	"github.com/corvusfin/corvus/internal/services/audit"
)

// Service implements holding queries and direct corporate-action processing.
type Service struct {
	storage  interfaces.StorageManager
	config   *common.Config
	logger   *common.Logger
	recorder *audit.Recorder
	locks    *common.KeyedLocks
}

// NewService creates a position service.
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

// GetHolding returns one holding by its composite key.
func (s *Service) GetHolding(ctx context.Context, entityID, symbol string, securityType models.SecurityType) (*models.Holding, error) {
	return s.storage.Ledger().GetHolding(ctx, entityID, symbol, securityType)
}

// ListHoldings returns all holdings owned by an entity.
func (s *Service) ListHoldings(ctx context.Context, entityID string) ([]*models.Holding, error) {
	return s.storage.Ledger().ListHoldings(ctx, entityID)
}

// ApplyCorporateAction mutates one holding outside the transaction posting
// path. The holding update and its audit row commit atomically.
func (s *Service) ApplyCorporateAction(ctx context.Context, entityID, symbol string, securityType models.SecurityType,
	action models.CorporateAction, quantity, price decimal.Decimal, actor string) (*models.Holding, decimal.Decimal, error) {

	if entityID == "" {
		return nil, decimal.Zero, models.NewValidationError("entity id is required")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, decimal.Zero, models.NewValidationError("symbol is required")
	}
	if !models.ValidSecurityType(securityType) {
		return nil, decimal.Zero, models.NewValidationError("invalid security type '%s'", securityType)
	}
	if !models.ValidCorporateAction(action) {
		return nil, decimal.Zero, models.NewValidationError("invalid corporate action '%s'", action)
	}
	actor = common.ResolveActor(ctx, actor)

	key := "holding:" + models.HoldingKey(entityID, symbol, securityType)
	release, err := s.locks.Acquire(ctx, s.config.Ledger.GetLockWait(), key)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer release()

	var (
		holding  *models.Holding
		realized decimal.Decimal
	)
	err = s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		currency := s.config.Ledger.BaseCurrency
		holding, realized, err = ApplyToHolding(tx, s.recorder, entityID, symbol, securityType, currency, action, quantity, price, actor)
		return err
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	s.logger.Debug().
		Str("entity_id", entityID).
		Str("symbol", symbol).
		Str("action", string(action)).
		Str("quantity", holding.Quantity.String()).
		Str("realized", realized.String()).
		Str("actor", actor).
		Msg("Applied corporate action")

	return holding, realized, nil
}

// ApplyToHolding runs one corporate action against stored holding state
// inside an open unit of work: load or create the holding, apply the action,
// persist the result, and append the audit row. Only a buy may create a
// holding; every other action requires an existing active position.
func ApplyToHolding(tx interfaces.LedgerTx, recorder *audit.Recorder, entityID, symbol string,
	securityType models.SecurityType, currency string, action models.CorporateAction,
	quantity, price decimal.Decimal, actor string) (*models.Holding, decimal.Decimal, error) {

	created := false
	holding, err := tx.GetHolding(entityID, symbol, securityType)
	if models.IsNotFound(err) {
		if action != models.ActionBuy {
			return nil, decimal.Zero, models.NewValidationError("no holding %s/%s for entity %s", symbol, securityType, entityID)
		}
		holding = &models.Holding{
			EntityID:     entityID,
			Symbol:       symbol,
			SecurityType: securityType,
			Currency:     currency,
			Quantity:     decimal.Zero,
			AvgCostPrice: decimal.Zero,
			Active:       true,
		}
		created = true
	} else if err != nil {
		return nil, decimal.Zero, err
	}
	if !holding.Active {
		return nil, decimal.Zero, models.NewValidationError("holding %s/%s for entity %s is inactive", symbol, securityType, entityID)
	}

	before := *holding

	newQty, newAvgCost, realized, err := Apply(holding.Quantity, holding.AvgCostPrice, action, quantity, price)
	if err != nil {
		return nil, decimal.Zero, err
	}
	holding.Quantity = newQty
	holding.AvgCostPrice = newAvgCost

	if err := tx.SaveHolding(holding); err != nil {
		return nil, decimal.Zero, err
	}

	auditAction := models.AuditUpdate
	var oldRec any = before
	if created {
		auditAction = models.AuditInsert
		oldRec = nil
	}
	if err := recorder.Record(tx, "holdings", holding.Key(), auditAction, oldRec, holding, actor); err != nil {
		return nil, decimal.Zero, err
	}

	return holding, realized, nil
}

// UpdateMarketPrice stores a price and stamps it onto every active holding of
// the symbol, across all entities, in one unit of work.
func (s *Service) UpdateMarketPrice(ctx context.Context, symbol string, securityType models.SecurityType,
	price decimal.Decimal, asOf time.Time, actor string) (int, error) {

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, models.NewValidationError("symbol is required")
	}
	if !models.ValidSecurityType(securityType) {
		return 0, models.NewValidationError("invalid security type '%s'", securityType)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return 0, models.NewValidationError("price must be positive, got %s", price)
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	actor = common.ResolveActor(ctx, actor)
	price = models.RoundMoney(price)

	if err := s.storage.Reference().SavePrice(ctx, &models.SecurityPrice{
		Symbol:       symbol,
		SecurityType: securityType,
		Price:        price,
		AsOf:         asOf,
	}); err != nil {
		return 0, fmt.Errorf("failed to save price for %s: %w", symbol, err)
	}

	holdings, err := s.storage.Ledger().ListHoldingsBySymbol(ctx, symbol, securityType)
	if err != nil {
		return 0, fmt.Errorf("failed to list holdings for %s: %w", symbol, err)
	}

	keys := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if h.Active {
			keys = append(keys, "holding:"+h.Key())
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	release, err := s.locks.Acquire(ctx, s.config.Ledger.GetLockWait(), keys...)
	if err != nil {
		return 0, err
	}
	defer release()

	touched := 0
	err = s.storage.Ledger().Update(ctx, func(tx interfaces.LedgerTx) error {
		touched = 0
		for _, h := range holdings {
			if !h.Active {
				continue
			}
			current, err := tx.GetHolding(h.EntityID, h.Symbol, h.SecurityType)
			if models.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			before := *current
			current.MarketPrice = price
			current.PriceUpdatedAt = asOf
			if err := tx.SaveHolding(current); err != nil {
				return err
			}
			if err := s.recorder.Record(tx, "holdings", current.Key(), models.AuditUpdate, before, current, actor); err != nil {
				return err
			}
			touched++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug().
		Str("symbol", symbol).
		Str("price", price.String()).
		Int("holdings", touched).
		Msg("Updated market price")

	return touched, nil
}

var _ interfaces.PositionService = (*Service)(nil)
