package server

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/corvusfin/corvus/internal/models"
)

// handleEntitiesRoot handles GET /api/entities and POST /api/entities.
func (s *Server) handleEntitiesRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		activeOnly := r.URL.Query().Get("active") == "true"
		entities, err := s.app.RegistryService.ListEntities(r.Context(), activeOnly)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, entities)

	case http.MethodPost:
		var entity models.Entity
		if !DecodeJSON(w, r, &entity) {
			return
		}
		created, err := s.app.RegistryService.CreateEntity(r.Context(), &entity, "")
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, created)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleEntityByID handles GET and DELETE on /api/entities/{id}. DELETE is a
// soft deactivation that cascades to owned records.
func (s *Server) handleEntityByID(w http.ResponseWriter, r *http.Request, entityID string) {
	switch r.Method {
	case http.MethodGet:
		entity, err := s.app.RegistryService.GetEntity(r.Context(), entityID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, entity)

	case http.MethodDelete:
		if err := s.app.RegistryService.DeactivateEntity(r.Context(), entityID, ""); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handleEntityAccounts handles GET /api/entities/{id}/accounts.
func (s *Server) handleEntityAccounts(w http.ResponseWriter, r *http.Request, entityID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	accounts, err := s.app.RegistryService.ListAccounts(r.Context(), entityID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, accounts)
}

// handleEntityAssets handles GET /api/entities/{id}/assets.
func (s *Server) handleEntityAssets(w http.ResponseWriter, r *http.Request, entityID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	items, err := s.app.RegistryService.ListAssetItems(r.Context(), entityID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// handleEntityLoans handles GET /api/entities/{id}/loans.
func (s *Server) handleEntityLoans(w http.ResponseWriter, r *http.Request, entityID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	loans, err := s.app.RegistryService.ListLoans(r.Context(), entityID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, loans)
}

// handleAccountCreate handles POST /api/accounts.
func (s *Server) handleAccountCreate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var account models.BankAccount
	if !DecodeJSON(w, r, &account) {
		return
	}
	created, err := s.app.RegistryService.CreateAccount(r.Context(), &account, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// handleAccountByID handles GET /api/accounts/{id}.
func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	id := PathParam(r, "/api/accounts/", "")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "account id is required in path")
		return
	}
	account, err := s.app.RegistryService.GetAccount(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

// handleAssetCreate handles POST /api/assets.
func (s *Server) handleAssetCreate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var item models.AssetLiability
	if !DecodeJSON(w, r, &item) {
		return
	}
	created, err := s.app.RegistryService.CreateAssetItem(r.Context(), &item, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// handleAssetRevalue handles PUT /api/assets/{id}/value.
func (s *Server) handleAssetRevalue(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}
	var req struct {
		CurrentValue decimal.Decimal `json:"current_value"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	item, err := s.app.RegistryService.RevalueAssetItem(r.Context(), id, req.CurrentValue, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// handleLoanCreate handles POST /api/loans.
func (s *Server) handleLoanCreate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var loan models.Loan
	if !DecodeJSON(w, r, &loan) {
		return
	}
	created, err := s.app.RegistryService.CreateLoan(r.Context(), &loan, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// handleLoanSetBalance handles PUT /api/loans/{id}/balance.
func (s *Server) handleLoanSetBalance(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}
	var req struct {
		OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	loan, err := s.app.RegistryService.SetLoanBalance(r.Context(), id, req.OutstandingBalance, "")
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, loan)
}
