package server

import (
	"net/http"
	"strings"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Entities and owned records
	mux.HandleFunc("/api/entities/", s.routeEntities)
	mux.HandleFunc("/api/entities", s.handleEntitiesRoot)

	// Bank accounts
	mux.HandleFunc("/api/accounts/", s.handleAccountByID)
	mux.HandleFunc("/api/accounts", s.handleAccountCreate)

	// Asset/liability items and loans
	mux.HandleFunc("/api/assets/", s.routeAssets)
	mux.HandleFunc("/api/assets", s.handleAssetCreate)
	mux.HandleFunc("/api/loans/", s.routeLoans)
	mux.HandleFunc("/api/loans", s.handleLoanCreate)

	// Transactions
	mux.HandleFunc("/api/transactions/", s.routeTransactions)
	mux.HandleFunc("/api/transactions", s.handleTransactionPost)

	// Holdings and reference data
	mux.HandleFunc("/api/holdings/apply", s.handleHoldingApply)
	mux.HandleFunc("/api/prices", s.handlePriceUpdate)
	mux.HandleFunc("/api/rates", s.handleRateUpdate)

	// Audit trail
	mux.HandleFunc("/api/audit", s.handleAuditList)
}

// routeEntities dispatches /api/entities/{id} and its sub-resources.
func (s *Server) routeEntities(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/entities/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "entity id is required in path")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	entityID := parts[0]

	if len(parts) == 1 {
		s.handleEntityByID(w, r, entityID)
		return
	}

	switch parts[1] {
	case "networth":
		s.handleEntityNetWorth(w, r, entityID)
	case "snapshots":
		s.handleEntitySnapshots(w, r, entityID)
	case "holdings":
		s.handleEntityHoldings(w, r, entityID)
	case "accounts":
		s.handleEntityAccounts(w, r, entityID)
	case "assets":
		s.handleEntityAssets(w, r, entityID)
	case "loans":
		s.handleEntityLoans(w, r, entityID)
	case "transactions":
		s.handleEntityTransactions(w, r, entityID)
	default:
		WriteError(w, http.StatusNotFound, "Unknown entity resource: "+parts[1])
	}
}

// routeAssets dispatches /api/assets/{id}/value.
func (s *Server) routeAssets(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/assets/")
	if strings.HasSuffix(path, "/value") {
		s.handleAssetRevalue(w, r, strings.TrimSuffix(path, "/value"))
		return
	}
	WriteError(w, http.StatusNotFound, "Unknown asset resource")
}

// routeLoans dispatches /api/loans/{id}/balance.
func (s *Server) routeLoans(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/loans/")
	if strings.HasSuffix(path, "/balance") {
		s.handleLoanSetBalance(w, r, strings.TrimSuffix(path, "/balance"))
		return
	}
	WriteError(w, http.StatusNotFound, "Unknown loan resource")
}

// routeTransactions dispatches /api/transactions/{id} and {id}/reverse.
func (s *Server) routeTransactions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "transaction id is required in path")
		return
	}

	if strings.HasSuffix(path, "/reverse") {
		s.handleTransactionReverse(w, r, strings.TrimSuffix(path, "/reverse"))
		return
	}
	s.handleTransactionByID(w, r, path)
}
