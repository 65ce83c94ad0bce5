package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletsvc/wallet_service/internal/asset"
	"github.com/walletsvc/wallet_service/internal/auth"
	"github.com/walletsvc/wallet_service/internal/batch"
	"github.com/walletsvc/wallet_service/internal/config"
	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/logging"
)

type testEnv struct {
	app    *fiber.App
	tokens *auth.TokenManager
	assets *asset.DiskStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		App: config.AppConfig{Name: "WalletService", Env: "test"},
		Batch: config.BatchConfig{
			UploadDir:          t.TempDir(),
			MaxRows:            100,
			RowTimeout:         time.Second,
			ParseTimeout:       time.Second,
			RateLimitPerMinute: 10,
		},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
	}
	assets, err := asset.NewDiskStore(t.TempDir(), "http://localhost/assets")
	require.NoError(t, err)
	tokens := auth.NewTokenManager(strings.Repeat("k", 32), "wallet-service", time.Hour)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	require.NoError(t, Setup(app, Deps{
		Cfg:    cfg,
		Assets: assets,
		Tokens: tokens,
		Logger: logging.Discard(),
	}))
	return &testEnv{app: app, tokens: tokens, assets: assets}
}

func (e *testEnv) token(t *testing.T, walletID string) string {
	t.Helper()
	tok, err := e.tokens.Issue(walletID, "")
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, req *http.Request, walletID string) (int, map[string]any) {
	t.Helper()
	if walletID != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+e.token(t, walletID))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func (e *testEnv) doJSON(t *testing.T, method, path string, payload any, walletID string) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return e.do(t, req, walletID)
}

func (e *testEnv) createWallet(t *testing.T, name, operator string) string {
	t.Helper()
	status, body := e.doJSON(t, http.MethodPost, "/api/v1/wallets", map[string]string{"name": name}, operator)
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func TestPingIsPublic(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.doJSON(t, http.MethodGet, "/api/v1/ping", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthzWithoutStores(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.doJSON(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestAssetsServedWithoutSniffing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.assets.Put(context.Background(), "logos/abc.png", []byte("not really a png"), "image/png")
	require.NoError(t, err)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/assets/logos/abc.png", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get(fiber.HeaderXContentTypeOptions))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentSecurityPolicy), "sandbox")
}

func TestWalletRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.doJSON(t, http.MethodGet, "/api/v1/wallets/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "missing bearer token", body["error"])
}

func TestWalletLifecycle(t *testing.T) {
	env := newTestEnv(t)
	operator := uuid.NewString()

	id := env.createWallet(t, "alpha", operator)

	status, body := env.doJSON(t, http.MethodGet, "/api/v1/wallets/"+id, nil, operator)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alpha", body["name"])

	status, body = env.doJSON(t, http.MethodPost, "/api/v1/wallets", map[string]string{"name": "alpha"}, operator)
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, body["error"])

	status, body = env.doJSON(t, http.MethodPost, "/api/v1/wallets", map[string]string{"name": ""}, operator)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.NotEmpty(t, body["fields"])

	status, _ = env.doJSON(t, http.MethodGet, "/api/v1/wallets/"+uuid.NewString(), nil, operator)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTrustWorkflowGrantsManagement(t *testing.T) {
	env := newTestEnv(t)
	operator := uuid.NewString()
	manager := env.createWallet(t, "manager", operator)
	managed := env.createWallet(t, "managed", operator)

	status, body := env.doJSON(t, http.MethodGet, "/api/v1/wallets/"+managed+"/wallets", nil, manager)
	require.Equal(t, http.StatusForbidden, status, body)

	status, body = env.doJSON(t, http.MethodPost, "/api/v1/trust_relationships", map[string]string{
		"trust_request_type": "manage",
		"requester_wallet":   "manager",
		"requestee_wallet":   "managed",
	}, manager)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "requested", body["state"])
	trustID := body["id"].(string)

	status, _ = env.doJSON(t, http.MethodPost, "/api/v1/trust_relationships/"+trustID+"/approve", nil, manager)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.doJSON(t, http.MethodPost, "/api/v1/trust_relationships/"+trustID+"/approve", nil, managed)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "trusted", body["state"])

	status, body = env.doJSON(t, http.MethodGet, "/api/v1/wallets/"+manager+"/wallets?count=true&sort_by=name", nil, manager)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 2, body["count"])

	status, body = env.doJSON(t, http.MethodGet, "/api/v1/wallets/"+manager+"/trust_relationships?state=trusted", nil, manager)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["trust_relationships"], 1)
}

func multipartCSV(t *testing.T, path string, fields map[string]string, csvBody string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("csv", "rows.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestBatchCreateAndTransfer(t *testing.T) {
	env := newTestEnv(t)
	operator := uuid.NewString()

	req := multipartCSV(t, "/api/v1/wallets/batch-create-wallet",
		map[string]string{"token_transfer_amount_default": "100"},
		"wallet_name,token_transfer_amount_overwrite\nwallet1,50\nwallet2,\n")
	status, body := env.do(t, req, operator)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Batch wallet creation successful", body["message"])
	assert.EqualValues(t, 2, body["succeeded"])

	rows := body["rows"].([]any)
	wallet1 := rows[0].(map[string]any)["wallet_id"].(string)

	req = multipartCSV(t, "/api/v1/wallets/batch-transfer",
		map[string]string{"sender_wallet": "wallet1", "token_transfer_amount_default": "20"},
		"wallet_name\nwallet2\nnobody\n")
	status, body = env.do(t, req, wallet1)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Batch transfer completed: 1 succeeded, 1 failed", body["message"])

	status, body = env.doJSON(t, http.MethodGet, "/api/v1/wallets/"+wallet1+"/balance", nil, wallet1)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 30, body["balance"])
}

func TestBatchMalformedFileIsPipelineFailure(t *testing.T) {
	env := newTestEnv(t)

	req := multipartCSV(t, "/api/v1/wallets/batch-create-wallet", nil, "name\nwallet1\n")
	status, body := env.do(t, req, uuid.NewString())
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["error"], "wallet_name")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fiber.NewError(http.StatusTeapot, "tea"), http.StatusTeapot},
		{domain.NewValidationError("name", "required"), http.StatusUnprocessableEntity},
		{fmt.Errorf("wallet x: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{&batch.PipelineError{Op: "open file", Err: errors.New("boom")}, http.StatusInternalServerError},
		{&batch.PipelineError{Op: "resolve sender", Err: domain.ErrNotFound}, http.StatusNotFound},
		{domain.ErrUpstream, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
