package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusfin/corvus/internal/app"
	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	config := common.NewDefaultConfig()
	dir := t.TempDir()
	config.Storage.Ledger.Path = filepath.Join(dir, "ledger")
	config.Storage.Reference.Path = filepath.Join(dir, "reference")
	config.Ledger.SnapshotInterval = ""
	config.Server.RatePerSecond = 0

	logger := common.NewSilentLogger()
	manager, err := storage.NewManager(logger, config)
	require.NoError(t, err)

	a := app.NewAppWithStorage(config, logger, manager)
	t.Cleanup(func() { _ = a.Close() })
	return NewServer(a)
}

// doJSON runs one request against the full middleware chain and decodes the
// JSON response into out (when out is non-nil).
func doJSON(t *testing.T, srv *Server, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}
	return rec
}

func createTestEntity(t *testing.T, srv *Server) map[string]any {
	t.Helper()
	var entity map[string]any
	rec := doJSON(t, srv, http.MethodPost, "/api/entities", map[string]any{
		"type": "person",
		"name": "Alex Doe",
	}, &entity)
	require.Equal(t, http.StatusCreated, rec.Code)
	return entity
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var resp map[string]any
	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil, &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var resp map[string]any
	rec := doJSON(t, srv, http.MethodGet, "/api/version", nil, &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp["version"])
}

func TestConfigEndpointHidesPaths(t *testing.T) {
	srv := newTestServer(t)

	var resp map[string]any
	rec := doJSON(t, srv, http.MethodGet, "/api/config", nil, &resp)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "USD", resp["base_currency"])
	_, hasStorage := resp["storage"]
	assert.False(t, hasStorage)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodDelete, "/api/health", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodGet)
}

func TestEntityLifecycle(t *testing.T) {
	srv := newTestServer(t)
	entity := createTestEntity(t, srv)
	id := entity["id"].(string)
	require.NotEmpty(t, id)

	var fetched map[string]any
	rec := doJSON(t, srv, http.MethodGet, "/api/entities/"+id, nil, &fetched)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alex Doe", fetched["name"])

	rec = doJSON(t, srv, http.MethodDelete, "/api/entities/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var active []map[string]any
	rec = doJSON(t, srv, http.MethodGet, "/api/entities?active=true", nil, &active)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, active)
}

func TestEntityNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/entities/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionPostAndReverse(t *testing.T) {
	srv := newTestServer(t)
	entity := createTestEntity(t, srv)
	entityID := entity["id"].(string)

	var account map[string]any
	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"entity_id":       entityID,
		"name":            "Everyday",
		"currency":        "USD",
		"opening_balance": "1000",
	}, &account)
	require.Equal(t, http.StatusCreated, rec.Code)
	accountID := account["id"].(string)

	var posted map[string]any
	rec = doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"entity_id":  entityID,
		"account_id": accountID,
		"category":   "deposit",
		"type":       "income",
		"amount":     "250",
	}, &posted)
	require.Equal(t, http.StatusCreated, rec.Code)
	txID := posted["id"].(string)

	var fetchedAccount map[string]any
	rec = doJSON(t, srv, http.MethodGet, "/api/accounts/"+accountID, nil, &fetchedAccount)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1250", fetchedAccount["current_balance"])

	var reversal map[string]any
	rec = doJSON(t, srv, http.MethodPost, "/api/transactions/"+txID+"/reverse", nil, &reversal)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "withdrawal", reversal["category"])
	assert.Equal(t, txID, reversal["reversal_of"])

	// Double reversal maps to 400.
	rec = doJSON(t, srv, http.MethodPost, "/api/transactions/"+txID+"/reverse", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactionValidationStatus(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"entity_id": "nope",
		"category":  "deposit",
		"type":      "income",
		"amount":    "10",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation", resp.Code)
}

func TestHoldingApplyAndList(t *testing.T) {
	srv := newTestServer(t)
	entity := createTestEntity(t, srv)
	entityID := entity["id"].(string)

	var applied map[string]any
	rec := doJSON(t, srv, http.MethodPost, "/api/holdings/apply", map[string]any{
		"entity_id":     entityID,
		"symbol":        "WES",
		"security_type": "stock",
		"action":        "buy",
		"quantity":      "10",
		"price":         "100",
	}, &applied)
	require.Equal(t, http.StatusOK, rec.Code)

	var holdings []map[string]any
	rec = doJSON(t, srv, http.MethodGet, "/api/entities/"+entityID+"/holdings", nil, &holdings)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, holdings, 1)
	assert.Equal(t, "WES", holdings[0]["symbol"])
	assert.Equal(t, "1000", holdings[0]["cost_basis"])
}

func TestNetWorthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	entity := createTestEntity(t, srv)
	entityID := entity["id"].(string)

	rec := doJSON(t, srv, http.MethodPost, "/api/accounts", map[string]any{
		"entity_id":       entityID,
		"name":            "Cash",
		"opening_balance": "1000",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var snapshot map[string]any
	rec = doJSON(t, srv, http.MethodPost, "/api/entities/"+entityID+"/networth?date=2026-03-15", nil, &snapshot)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", snapshot["net_worth"])

	var snapshots []map[string]any
	rec = doJSON(t, srv, http.MethodGet, "/api/entities/"+entityID+"/snapshots", nil, &snapshots)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, snapshots, 1)
}

func TestPriceAndRateEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var priceResp map[string]any
	rec := doJSON(t, srv, http.MethodPut, "/api/prices", map[string]any{
		"symbol":        "WES",
		"security_type": "stock",
		"price":         "105.50",
	}, &priceResp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), priceResp["holdings_updated"])

	rec = doJSON(t, srv, http.MethodPut, "/api/rates", map[string]any{
		"from": "eur",
		"to":   "usd",
		"rate": "1.1",
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/rates", map[string]any{
		"from": "eur",
		"to":   "usd",
		"rate": "0",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditEndpointAndActorHeader(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"type": "person",
		"name": "Audited",
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/entities", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "alice")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var records []map[string]any
	listRec := doJSON(t, srv, http.MethodGet, "/api/audit?table=entities", nil, &records)
	require.Equal(t, http.StatusOK, listRec.Code)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0]["actor"])
	assert.Equal(t, "insert", records[0]["action"])
}

func TestCORSPreflights(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/entities", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
