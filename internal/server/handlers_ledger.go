package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
)

// holdingView is a holding plus its derived valuation fields.
type holdingView struct {
	*models.Holding
	CostBasis      decimal.Decimal `json:"cost_basis"`
	MarketValue    decimal.Decimal `json:"market_value"`
	UnrealizedGain decimal.Decimal `json:"unrealized_gain"`
}

func newHoldingView(h *models.Holding) holdingView {
	return holdingView{
		Holding:        h,
		CostBasis:      h.CostBasis(),
		MarketValue:    h.MarketValue(),
		UnrealizedGain: h.UnrealizedGain(),
	}
}

// snapshotView is a snapshot plus its derived net worth.
type snapshotView struct {
	*models.NetWorthSnapshot
	NetWorth decimal.Decimal `json:"net_worth"`
}

func newSnapshotView(snap *models.NetWorthSnapshot) snapshotView {
	return snapshotView{NetWorthSnapshot: snap, NetWorth: snap.NetWorth()}
}

// handleTransactionPost handles POST /api/transactions.
func (s *Server) handleTransactionPost(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var tx models.Transaction
	if !DecodeJSON(w, r, &tx) {
		return
	}
	posted, err := s.app.PostingService.Post(r.Context(), &tx, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, posted)
}

// handleTransactionByID handles GET /api/transactions/{id}.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tx, err := s.app.Storage.Ledger().GetTransaction(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

// handleTransactionReverse handles POST /api/transactions/{id}/reverse.
func (s *Server) handleTransactionReverse(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	reversal, err := s.app.PostingService.Reverse(r.Context(), id, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, reversal)
}

// handleEntityTransactions handles GET /api/entities/{id}/transactions with
// optional account, category, since, until, and limit query filters.
func (s *Server) handleEntityTransactions(w http.ResponseWriter, r *http.Request, entityID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	opts := interfaces.TransactionListOptions{
		AccountID: query.Get("account"),
		Category:  models.TransactionCategory(query.Get("category")),
	}
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := query.Get("since"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid since date, want YYYY-MM-DD")
			return
		}
		opts.Since = &t
	}
	if v := query.Get("until"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid until date, want YYYY-MM-DD")
			return
		}
		opts.Until = &t
	}

	transactions, err := s.app.Storage.Ledger().ListTransactions(r.Context(), entityID, opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, transactions)
}

// handleEntityHoldings handles GET /api/entities/{id}/holdings.
func (s *Server) handleEntityHoldings(w http.ResponseWriter, r *http.Request, entityID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	holdings, err := s.app.PositionService.ListHoldings(r.Context(), entityID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	views := make([]holdingView, 0, len(holdings))
	for _, h := range holdings {
		views = append(views, newHoldingView(h))
	}
	WriteJSON(w, http.StatusOK, views)
}

// handleHoldingApply handles POST /api/holdings/apply: a corporate action
// applied directly to a holding, outside transaction posting.
func (s *Server) handleHoldingApply(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		EntityID     string                 `json:"entity_id"`
		Symbol       string                 `json:"symbol"`
		SecurityType models.SecurityType    `json:"security_type"`
		Action       models.CorporateAction `json:"action"`
		Quantity     decimal.Decimal        `json:"quantity"`
		Price        decimal.Decimal        `json:"price"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	holding, realized, err := s.app.PositionService.ApplyCorporateAction(r.Context(),
		req.EntityID, req.Symbol, req.SecurityType, req.Action, req.Quantity, req.Price, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"holding":            newHoldingView(holding),
		"realized_gain_loss": realized,
	})
}

// handleEntityNetWorth handles POST /api/entities/{id}/networth. The
// ?unrealized=false query switches to cost basis valuation.
func (s *Server) handleEntityNetWorth(w http.ResponseWriter, r *http.Request, entityID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	includeUnrealized := r.URL.Query().Get("unrealized") != "false"
	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD")
			return
		}
		asOf = t
	}

	snapshot, err := s.app.NetWorthService.ComputeAndSnapshot(r.Context(), entityID, asOf, includeUnrealized, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newSnapshotView(snapshot))
}

// handleEntitySnapshots handles GET /api/entities/{id}/snapshots.
func (s *Server) handleEntitySnapshots(w http.ResponseWriter, r *http.Request, entityID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	snapshots, err := s.app.NetWorthService.ListSnapshots(r.Context(), entityID, limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	views := make([]snapshotView, 0, len(snapshots))
	for _, snap := range snapshots {
		views = append(views, newSnapshotView(snap))
	}
	WriteJSON(w, http.StatusOK, views)
}

// handlePriceUpdate handles PUT /api/prices: record an external market price
// and refresh holdings carrying the symbol.
func (s *Server) handlePriceUpdate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	var req struct {
		Symbol       string              `json:"symbol"`
		SecurityType models.SecurityType `json:"security_type"`
		Price        decimal.Decimal     `json:"price"`
		AsOf         time.Time           `json:"as_of"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	touched, err := s.app.PositionService.UpdateMarketPrice(r.Context(),
		req.Symbol, req.SecurityType, req.Price, req.AsOf, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":           req.Symbol,
		"holdings_updated": touched,
	})
}

// handleRateUpdate handles PUT /api/rates: record an external exchange rate
// for a calendar date.
func (s *Server) handleRateUpdate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	var req struct {
		From string          `json:"from"`
		To   string          `json:"to"`
		Date time.Time       `json:"date"`
		Rate decimal.Decimal `json:"rate"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	req.From = strings.ToUpper(strings.TrimSpace(req.From))
	req.To = strings.ToUpper(strings.TrimSpace(req.To))
	if len(req.From) != 3 || len(req.To) != 3 {
		WriteError(w, http.StatusBadRequest, "from and to must be 3-letter currency codes")
		return
	}
	if req.Rate.LessThanOrEqual(decimal.Zero) {
		WriteError(w, http.StatusBadRequest, "rate must be positive")
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	rate := &models.ExchangeRate{
		From: req.From,
		To:   req.To,
		Date: models.SnapshotDate(req.Date),
		Rate: req.Rate,
	}
	if err := s.app.Storage.Reference().SaveRate(r.Context(), rate); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rate)
}

// handleAuditList handles GET /api/audit with table, record, actor, and
// limit query filters.
func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	opts := interfaces.AuditListOptions{
		Table:    query.Get("table"),
		RecordID: query.Get("record"),
		Actor:    query.Get("actor"),
	}
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}

	records, err := s.app.AuditService.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, records)
}
