package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dealroom/backend/internal/auth"
	"github.com/dealroom/backend/internal/config"
	"github.com/dealroom/backend/internal/events"
	"github.com/dealroom/backend/internal/http/handlers"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/dealroom/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

func newTestApp(t *testing.T, authRequired bool) *fiber.App {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{JWTSecret: testSecret, AuthRequired: authRequired, RateLimitPerMinute: 1000}

	store := repositories.NewMemoryStore()
	bus := events.NewLocalBus()
	ledger := services.NewAuditLedger(store, bus, log)
	machine := services.NewDealStateMachine(log)

	app := fiber.New()
	SetupRouter(app, cfg, log, nil, Handlers{
		Deal:      handlers.NewDealHandler(services.NewDealService(store, ledger, machine, log), ledger, log),
		Party:     handlers.NewPartyHandler(services.NewPartyService(store, ledger, log), log),
		PoF:       handlers.NewPoFHandler(services.NewPoFService(store, ledger, machine, log), log),
		Escrow:    handlers.NewEscrowHandler(services.NewEscrowService(store, ledger, machine, log), log),
		PSBT:      handlers.NewPSBTHandler(services.NewSigningService(store, ledger, machine, log), log),
		Checklist: handlers.NewChecklistHandler(services.NewContingencyService(store, ledger, log), services.NewMilestoneService(store, ledger, log), log),
		Records:   handlers.NewRecordsHandler(services.NewRecordsService(store, ledger, log), log),
	})
	return app
}

type envelope struct {
	OK        bool            `json:"ok"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID string          `json:"request_id"`
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func createDeal(t *testing.T, app *fiber.App, headers ...string) string {
	t.Helper()
	status, env := do(t, app, http.MethodPost, "/api/v1/deals",
		`{"property_address":"12 Harbor Rd","emd_amount_btc":"0.5"}`, headers...)
	require.Equal(t, http.StatusCreated, status, env.Error)

	var deal struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &deal))
	assert.Equal(t, "draft", deal.Status)
	return deal.ID
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateDealWithPriceOnly(t *testing.T) {
	app := newTestApp(t, false)
	status, env := do(t, app, http.MethodPost, "/api/v1/deals",
		`{"property_address":"12 Main St","purchase_price_usd":500000}`)
	require.Equal(t, http.StatusCreated, status, env.Error)

	var deal map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &deal))
	assert.Equal(t, "draft", deal["status"])
	assert.Equal(t, "cash_purchase", deal["transaction_type"])
	assert.NotContains(t, deal, "emd_amount_btc")
	assert.Contains(t, deal, "purchase_price_usd")
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t, false)
	dealID := createDeal(t, app)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed id", http.MethodGet, "/api/v1/deals/not-a-uuid", "", http.StatusBadRequest},
		{"unknown deal", http.MethodGet, "/api/v1/deals/" + uuid.NewString(), "", http.StatusNotFound},
		{"bad body", http.MethodPost, "/api/v1/deals", `{"property_address":`, http.StatusBadRequest},
		{"validation", http.MethodPost, "/api/v1/deals", `{"property_address":"x","emd_amount_btc":"0"}`, http.StatusBadRequest},
		{"unknown status", http.MethodPatch, "/api/v1/deals/" + dealID, `{"status":"bogus"}`, http.StatusBadRequest},
		{"nothing to update", http.MethodPatch, "/api/v1/deals/" + dealID, `{}`, http.StatusBadRequest},
		{"bad updated_after", http.MethodGet, "/api/v1/deals?updated_after=yesterday", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, status)
			assert.NotEmpty(t, env.Error)
			assert.NotEmpty(t, env.RequestID)
		})
	}
}

func TestOverrideRegressionConflicts(t *testing.T) {
	app := newTestApp(t, false)
	dealID := createDeal(t, app)

	status, _ := do(t, app, http.MethodPatch, "/api/v1/deals/"+dealID, `{"status":"funded"}`)
	require.Equal(t, http.StatusOK, status)

	status, env := do(t, app, http.MethodPatch, "/api/v1/deals/"+dealID, `{"status":"draft"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, env.Error)
}

func TestAuditEndpoints(t *testing.T) {
	app := newTestApp(t, false)
	dealID := createDeal(t, app)

	status, _ := do(t, app, http.MethodPost, "/api/v1/deals/"+dealID+"/contingencies", `{"type":"inspection"}`)
	require.Equal(t, http.StatusCreated, status)

	status, env := do(t, app, http.MethodGet, "/api/v1/deals/"+dealID+"/audit", "")
	require.Equal(t, http.StatusOK, status)
	var evs []struct {
		Seq  int64  `json:"seq"`
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &evs))
	require.Len(t, evs, 2)
	assert.Greater(t, evs[0].Seq, evs[1].Seq)

	status, env = do(t, app, http.MethodGet, "/api/v1/deals/"+dealID+"/audit/verify", "")
	require.Equal(t, http.StatusOK, status)
	var replay struct {
		ChainValid       bool `json:"chain_valid"`
		StatusConsistent bool `json:"status_consistent"`
		Events           int  `json:"events"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &replay))
	assert.True(t, replay.ChainValid)
	assert.True(t, replay.StatusConsistent)
	assert.Equal(t, 2, replay.Events)
}

func TestListDealsEnvelope(t *testing.T) {
	app := newTestApp(t, false)
	createDeal(t, app)
	createDeal(t, app)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals?limit=1", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		OK     bool              `json:"ok"`
		Data   []json.RawMessage `json:"data"`
		Limit  int               `json:"limit"`
		Offset int               `json:"offset"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.OK)
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 1, body.Limit)
}

func TestAuthRequired(t *testing.T) {
	app := newTestApp(t, true)

	status, env := do(t, app, http.MethodGet, "/api/v1/deals", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, env.RequestID)

	status, _ = do(t, app, http.MethodGet, "/api/v1/deals", "", "Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, status)

	token, err := auth.GenerateJWT(testSecret, uuid.New(), uuid.Nil, time.Hour)
	require.NoError(t, err)
	createDeal(t, app, "Authorization", "Bearer "+token)
}

func TestBadTokenRejectedEvenWhenOptional(t *testing.T) {
	app := newTestApp(t, false)

	token, err := auth.GenerateJWT("other-secret", uuid.New(), uuid.Nil, time.Hour)
	require.NoError(t, err)

	status, _ := do(t, app, http.MethodGet, "/api/v1/deals", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestEscrowFlowOverHTTP(t *testing.T) {
	app := newTestApp(t, false)
	dealID := createDeal(t, app)
	base := "/api/v1/deals/" + dealID

	status, env := do(t, app, http.MethodPost, base+"/parties",
		`{"role":"buyer","display_name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, status, env.Error)
	var party struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &party))

	status, env = do(t, app, http.MethodPost, base+"/pof/request",
		`{"requester_name":"Seller agent","requested_amount_btc":"0.5"}`)
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = do(t, app, http.MethodPost, base+"/pof/attest",
		`{"party_id":"`+party.ID+`","proof_type":"bip322","address_or_descriptor":"bc1qexample","signature":"sig","utxos_total_btc":"0.75"}`)
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = do(t, app, http.MethodPost, base+"/pof/verify", "")
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = do(t, app, http.MethodPost, base+"/escrow/policy", "")
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = do(t, app, http.MethodPost, base+"/escrow/funding", `{"txid":"abc123","amount_btc":"0.5"}`)
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = do(t, app, http.MethodGet, "/api/v1/deals/"+dealID, "")
	require.Equal(t, http.StatusOK, status)
	var deal struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &deal))
	assert.Equal(t, "funded", deal.Status)

	status, env = do(t, app, http.MethodGet, base+"/escrow/receipt", "")
	require.Equal(t, http.StatusOK, status, env.Error)
}
