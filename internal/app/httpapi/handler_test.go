package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/novastack/service_layer/internal/app"
	"github.com/novastack/service_layer/internal/app/domain/investment"
	"github.com/novastack/service_layer/internal/app/storage/memory"
	"github.com/novastack/service_layer/internal/config"
	"github.com/novastack/service_layer/internal/middleware"
	"github.com/novastack/service_layer/internal/monero"
	"github.com/novastack/service_layer/pkg/testutil"
)

const (
	testSecret  = "handler-test-secret"
	testAdminID = "admin-1"
)

type testEnv struct {
	server  *Server
	app     *app.Application
	handler http.Handler
	daemon  *testutil.WalletDaemon
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStores(t, app.Stores{})
}

func newTestEnvWithStores(t *testing.T, stores app.Stores) *testEnv {
	t.Helper()
	daemon, rpcURL := testutil.StartWalletDaemon(t)

	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	cfg.Monero.RPCURL = rpcURL
	cfg.Jobs.Enabled = false

	application, err := app.New(stores, nil, cfg, nil)
	require.NoError(t, err)

	server, err := NewServer(application, Options{
		Addr:           "127.0.0.1:0",
		JWTSecret:      testSecret,
		AdminIDs:       map[string]struct{}{testAdminID: {}},
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}, nil)
	require.NoError(t, err)

	return &testEnv{server: server, app: application, handler: server.Handler(), daemon: daemon}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, userID, "", time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Error   struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
		TraceID string                 `json:"traceId"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func (e *testEnv) createUser(t *testing.T, id, username string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/users", id, map[string]interface{}{
		"email":     username + "@example.com",
		"firstName": "Test",
		"lastName":  "User",
		"username":  username,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) createStartup(t *testing.T, founderID, name string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/startups", founderID, map[string]interface{}{
		"name":        name,
		"tagline":     "Private payments",
		"description": "A wallet that respects you.",
		"industry":    "fintech",
		"stage":       "mvp",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st := decodeEnvelope(t, rec).Data["startup"].(map[string]interface{})
	return st["id"].(string)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "NovaStack Backend", body["service"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.NotEmpty(t, rec.Header().Get(middleware.TraceHeader))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/nope", "", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "Route not found", body.Error.Message)
	assert.NotEmpty(t, body.Error.TraceID)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodDelete, "/api/payments/pricing", "", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
	assert.Equal(t, "Method not allowed", body.Error.Message)
}

func TestUsers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/users", "", map[string]string{"username": "ada"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env.createUser(t, "user-ada", "ada")

	rec = env.do(t, http.MethodPost, "/api/users", "user-ada", map[string]interface{}{
		"email": "ada@example.com", "firstName": "Ada", "lastName": "L", "username": "ada",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/users/me", "user-ada", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeEnvelope(t, rec).Data["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", me["email"])

	rec = env.do(t, http.MethodGet, "/api/users/ada", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	public := decodeEnvelope(t, rec).Data["user"].(map[string]interface{})
	_, hasEmail := public["email"]
	assert.False(t, hasEmail, "email must be hidden from other members")

	rec = env.do(t, http.MethodGet, "/api/users/ghost", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeEnvelope(t, rec).Error.Message)

	rec = env.do(t, http.MethodPut, "/api/users/me", "user-ada", map[string]interface{}{"bio": "engine builder"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Profile updated successfully", decodeEnvelope(t, rec).Message)

	rec = env.do(t, http.MethodPost, "/api/users/me/wallet", "user-ada", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4user_user-ada", decodeEnvelope(t, rec).Data["moneroAddress"])

	// A second call keeps the existing subaddress.
	rec = env.do(t, http.MethodPost, "/api/users/me/wallet", "user-ada", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.daemon.Count("create_address"))

	rec = env.do(t, http.MethodGet, "/api/users?limit=5", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeEnvelope(t, rec).Data["users"], 1)
}

func TestStartups(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "founder", "founder")
	env.createUser(t, "dev", "dev")

	rec := env.do(t, http.MethodPost, "/api/startups", "founder", map[string]string{"name": "Nova"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Required fields: name, tagline, description, industry, stage", decodeEnvelope(t, rec).Error.Message)

	id := env.createStartup(t, "founder", "Nova")

	rec = env.do(t, http.MethodGet, "/api/startups/"+id, "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeEnvelope(t, rec).Data["startup"].(map[string]interface{})
	assert.Equal(t, true, st["isPublic"])
	assert.EqualValues(t, 1, st["viewCount"])

	rec = env.do(t, http.MethodGet, "/api/startups/missing", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Startup not found", decodeEnvelope(t, rec).Error.Message)

	rec = env.do(t, http.MethodPut, "/api/startups/"+id, "dev", map[string]string{"tagline": "hijacked"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied. Only founders and co-founders can update startup", decodeEnvelope(t, rec).Error.Message)

	rec = env.do(t, http.MethodPut, "/api/startups/"+id, "founder", map[string]interface{}{"isPublic": false}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/startups/"+id, "", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied", decodeEnvelope(t, rec).Error.Message)

	rec = env.do(t, http.MethodPost, "/api/startups/"+id+"/team", "founder", map[string]string{"userId": "ghost", "role": "CTO"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/startups/"+id+"/team", "founder", map[string]string{"userId": "dev", "role": "CTO"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Team member added successfully", decodeEnvelope(t, rec).Message)

	rec = env.do(t, http.MethodPost, "/api/startups/"+id+"/team", "founder", map[string]string{"userId": "dev", "role": "CEO"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User is already a team member", decodeEnvelope(t, rec).Error.Message)

	// Team members see private listings; anonymous visitors do not.
	rec = env.do(t, http.MethodGet, "/api/users/dev/startups", "dev", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeEnvelope(t, rec).Data["startups"], 1)
	rec = env.do(t, http.MethodGet, "/api/users/dev/startups", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeEnvelope(t, rec).Data["startups"], 0)

	rec = env.do(t, http.MethodPost, "/api/startups/"+id+"/like", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/startups/"+id+"/like", "dev", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "Startup liked successfully", body.Message)
	assert.EqualValues(t, 1, body.Data["likeCount"])
}

func TestStartupListings(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "founder", "founder")
	quiet := env.createStartup(t, "founder", "Quiet")
	loud := env.createStartup(t, "founder", "Loud")

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodGet, "/api/startups/"+loud, "", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/startups/trending/all", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeEnvelope(t, rec).Data["startups"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, loud, list[0].(map[string]interface{})["id"])
	assert.Equal(t, quiet, list[1].(map[string]interface{})["id"])

	rec = env.do(t, http.MethodGet, "/api/startups?industry=fintech&limit=1", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeEnvelope(t, rec).Data["startups"], 1)

	rec = env.do(t, http.MethodGet, "/api/startups?industry=biotech", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeEnvelope(t, rec).Data["startups"], 0)
}

func TestInvestments(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "founder", "founder")
	env.createUser(t, "investor", "investor")
	id := env.createStartup(t, "founder", "Nova")

	rec := env.do(t, http.MethodPost, "/api/investments/invest", "investor", map[string]interface{}{"startupId": id, "amount": "0.5"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "startup without wallet")

	rec = env.do(t, http.MethodPost, "/api/startups/"+id+"/wallet", "founder", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/users/me/wallet", "investor", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/investments/invest", "investor", map[string]interface{}{"startupId": id}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Startup ID and amount are required", decodeEnvelope(t, rec).Error.Message)

	rec = env.do(t, http.MethodPost, "/api/investments/invest", "investor", map[string]interface{}{"startupId": id, "amount": "0.0001"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Minimum investment amount is 0.001 XMR", decodeEnvelope(t, rec).Error.Message)

	rec = env.do(t, http.MethodPost, "/api/investments/invest", "investor", map[string]interface{}{
		"startupId": id, "amount": "0.5", "fromAddress": "bad-address",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid Monero address", decodeEnvelope(t, rec).Error.Message)

	headers := map[string]string{middleware.IdempotencyHeader: "order-1"}
	first := env.do(t, http.MethodPost, "/api/investments/invest", "investor", map[string]interface{}{"startupId": id, "amount": "0.5"}, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	inv := decodeEnvelope(t, first).Data["investment"].(map[string]interface{})
	assert.Equal(t, "pending", inv["status"])
	assert.Equal(t, monero.PaymentID(id), inv["paymentId"])
	assert.EqualValues(t, 500000000000, inv["amountAtomic"])

	replayed := env.do(t, http.MethodPost, "/api/investments/invest", "investor", map[string]interface{}{"startupId": id, "amount": "0.5"}, headers)
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "true", replayed.Header().Get(middleware.IdempotencyHitHeader))
	assert.JSONEq(t, first.Body.String(), replayed.Body.String())
	assert.Equal(t, 1, env.daemon.Count("transfer"))

	rec = env.do(t, http.MethodGet, "/api/investments", "investor", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	portfolio := decodeEnvelope(t, rec).Data
	assert.Len(t, portfolio["investments"], 1)
	assert.EqualValues(t, 1, portfolio["activeInvestments"])

	rec = env.do(t, http.MethodGet, "/api/investments/startups/"+id+"/history", "investor", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	transfers := decodeEnvelope(t, rec).Data["transfers"].([]interface{})
	require.Len(t, transfers, 1)
	assert.Equal(t, monero.PaymentID(id), transfers[0].(map[string]interface{})["paymentId"])

	rec = env.do(t, http.MethodGet, "/api/investments/startups/missing/history", "investor", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// unrecordedInvestments loses every new investment record.
type unrecordedInvestments struct {
	*memory.Store
}

func (unrecordedInvestments) CreateInvestment(context.Context, investment.Investment) (investment.Investment, error) {
	return investment.Investment{}, errors.New("connection reset")
}

func TestInvest_UnrecordedTransferIsReplayed(t *testing.T) {
	env := newTestEnvWithStores(t, app.Stores{Investments: unrecordedInvestments{memory.New()}})
	env.createUser(t, "founder", "founder")
	env.createUser(t, "investor", "investor")
	id := env.createStartup(t, "founder", "Nova")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/startups/"+id+"/wallet", "founder", nil, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/users/me/wallet", "investor", nil, nil).Code)

	headers := map[string]string{middleware.IdempotencyHeader: "order-lost"}
	body := map[string]interface{}{"startupId": id, "amount": "0.5"}
	first := env.do(t, http.MethodPost, "/api/investments/invest", "investor", body, headers)
	require.Equal(t, http.StatusAccepted, first.Code, first.Body.String())
	got := decodeEnvelope(t, first)
	assert.False(t, got.Success)
	assert.Equal(t, "RECORD_PENDING", got.Error.Code)
	assert.NotEmpty(t, got.Error.Details["txHash"])

	retry := env.do(t, http.MethodPost, "/api/investments/invest", "investor", body, headers)
	assert.Equal(t, http.StatusAccepted, retry.Code)
	assert.Equal(t, "true", retry.Header().Get(middleware.IdempotencyHitHeader))
	assert.JSONEq(t, first.Body.String(), retry.Body.String())
	assert.Equal(t, 1, env.daemon.Count("transfer"))
}

func TestWalletRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/wallet/status", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/wallet/status", "member", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/wallet/status", testAdminID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wallet := decodeEnvelope(t, rec).Data["wallet"].(map[string]interface{})
	assert.Equal(t, "2.5", wallet["balance"])
	assert.EqualValues(t, 3100200, wallet["height"])

	rec = env.do(t, http.MethodPost, "/api/wallet/refresh", testAdminID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, decodeEnvelope(t, rec).Data["blocksFetched"])
}

func TestPricing(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/payments/pricing", "", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	plans := decodeEnvelope(t, rec).Data["plans"].([]interface{})
	require.Len(t, plans, 3)
	assert.Equal(t, "free", plans[0].(map[string]interface{})["id"])
}

func TestSystemStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/system/status", "", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeEnvelope(t, rec).Data["status"].(map[string]interface{})
	assert.Equal(t, "NovaStack Backend", status["service"])
	assert.Greater(t, status["goroutines"].(float64), float64(0))
}

func TestAuditRecordsMutations(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-ada", "ada")
	env.do(t, http.MethodGet, "/api/users/me", "user-ada", nil, nil)

	rec := env.do(t, http.MethodGet, "/api/system/audit", "user-ada", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/system/audit", testAdminID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeEnvelope(t, rec).Data["entries"].([]interface{})
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]interface{})
	assert.Equal(t, "user-ada", entry["user"])
	assert.Equal(t, "/api/users", entry["path"])
	assert.EqualValues(t, http.StatusCreated, entry["status"])
}

func TestAuditLog_ListLimit(t *testing.T) {
	l := newAuditLog(3, nil)
	for i := 0; i < 5; i++ {
		l.add(auditEntry{Path: fmt.Sprintf("/p%d", i)})
	}
	all := l.list()
	require.Len(t, all, 3)
	assert.Equal(t, "/p2", all[0].Path)

	last := l.listLimit(1)
	require.Len(t, last, 1)
	assert.Equal(t, "/p4", last[0].Path)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/investments/invest", "", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.server.Start(ctx))
	require.NoError(t, env.server.Start(ctx), "second start is a no-op")
	require.NoError(t, env.server.Stop(ctx))
	require.NoError(t, env.server.Stop(ctx), "second stop is a no-op")
}
