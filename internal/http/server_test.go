package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/faucet-gateway/internal/config"
	"github.com/jmehdipour/faucet-gateway/internal/identity"
	"github.com/jmehdipour/faucet-gateway/internal/ledger"
	"github.com/jmehdipour/faucet-gateway/internal/model"
	"github.com/jmehdipour/faucet-gateway/internal/repository/memory"
	"github.com/jmehdipour/faucet-gateway/internal/service/faucet"
)

type apiFixture struct {
	t         *testing.T
	srv       *Server
	store     *memory.Store
	ledger    *ledger.Ledger
	tokenType identity.ID
	now       time.Time
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	f := &apiFixture{t: t, store: memory.New(), tokenType: identity.New(), now: time.Unix(1_700_000_000, 0)}
	f.ledger = ledger.New(f.store.TokenTypes(), f.store.TokenAccounts(), f.store.Native(), 10)
	require.NoError(t, f.ledger.RegisterTokenType(ctx, model.TokenType{ID: f.tokenType, Symbol: "DRIP"}))

	svc := faucet.New(f.store, f.store.Faucets(), f.store.Throttle(), f.store.Journal(), f.store.Outbox(), f.ledger,
		faucet.WithClock(func() time.Time { return f.now }))

	cfg := config.Config{RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000}}
	f.srv = NewServer(cfg, Deps{
		Faucets: svc,
		Signers: f.store.Signers(),
		History: f.store.PayoutHistory(),
	})
	return f
}

// signer registers an API key for a fresh identity funded with native units.
func (f *apiFixture) signer(key string, native uint64) identity.ID {
	f.t.Helper()
	id := identity.New()
	ctx := context.Background()
	require.NoError(f.t, f.store.Signers().Upsert(ctx, model.Signer{APIKey: key, Identity: id, Name: key, Status: model.SignerActive}))
	require.NoError(f.t, f.store.WithinTx(ctx, func(ctx context.Context) error {
		return f.ledger.CreditNative(ctx, id, native)
	}))
	return id
}

func (f *apiFixture) do(method, path, key, body string) (*httptest.ResponseRecorder, map[string]any) {
	f.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestAPI_FaucetLifecycle(t *testing.T) {
	f := newAPI(t)
	owner := f.signer("owner-key", 1000)
	f.signer("user-key", 1000)

	var wallet identity.ID
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context) error {
		acc, err := f.ledger.OpenAssociated(ctx, owner, f.tokenType, owner)
		if err != nil {
			return err
		}
		wallet = acc.ID
		return f.ledger.Mint(ctx, acc.ID, 10_000)
	}))

	rec, body := f.do(http.MethodPost, "/v1/faucets", "owner-key", `{"token_type":"`+f.tokenType.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := body["id"].(string)
	assert.Equal(t, owner.String(), body["authority"])

	rec, _ = f.do(http.MethodPatch, "/v1/faucets/"+id, "owner-key", `{"price":10,"amount":100,"interval":60,"max_quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body = f.do(http.MethodPost, "/v1/faucets/"+id+"/deposit", "owner-key",
		`{"from":"`+wallet.String()+`","amount":1000,"request_id":"dep-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, body["idempotent"])

	rec, body = f.do(http.MethodGet, "/v1/faucets/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1000, body["custody_balance"])

	rec, body = f.do(http.MethodPost, "/v1/faucets/"+id+"/payout", "user-key", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := body["entry"].(map[string]any)
	assert.EqualValues(t, 300, entry["amount"])
	assert.EqualValues(t, 30, entry["fee"])

	rec, body = f.do(http.MethodPost, "/v1/faucets/"+id+"/payout", "user-key", `{"quantity":3}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, faucet.CodeMaxQuantity, body["error"])

	rec, body = f.do(http.MethodGet, "/v1/faucets/"+id+"/throttle", "user-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["remaining"])

	rec, body = f.do(http.MethodPost, "/v1/faucets/"+id+"/withdraw", "user-key",
		`{"to":"`+wallet.String()+`","amount":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, faucet.CodeUnauthorized, body["error"])

	rec, body = f.do(http.MethodPost, "/v1/faucets/"+id+"/close", "owner-key", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 10, body["refund"])
}

func TestAPI_ClosedFaucet(t *testing.T) {
	f := newAPI(t)
	f.signer("owner-key", 100)

	_, body := f.do(http.MethodPost, "/v1/faucets", "owner-key", `{"token_type":"`+f.tokenType.String()+`"}`)
	id := body["id"].(string)

	rec, body := f.do(http.MethodPost, "/v1/faucets/"+id+"/payout", "owner-key", `{"quantity":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, faucet.CodeFaucetClosed, body["error"])

	rec, body = f.do(http.MethodPost, "/v1/faucets/"+id+"/payout", "owner-key", `{"quantity":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, faucet.CodeMinQuantity, body["error"])
}

func TestAPI_Auth(t *testing.T) {
	f := newAPI(t)

	rec, _ := f.do(http.MethodPost, "/v1/faucets", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(http.MethodPost, "/v1/faucets", "nope", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ctx := context.Background()
	require.NoError(t, f.store.Signers().Upsert(ctx, model.Signer{APIKey: "old", Identity: identity.New(), Status: model.SignerSuspended}))
	rec, _ = f.do(http.MethodPost, "/v1/faucets", "old", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_BadRequests(t *testing.T) {
	f := newAPI(t)
	f.signer("key", 100)

	rec, body := f.do(http.MethodPost, "/v1/faucets", "key", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid payload", body["error"])

	rec, _ = f.do(http.MethodPost, "/v1/faucets", "key", `{"token_type":"xyz"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(http.MethodGet, "/v1/faucets/not-hex", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(http.MethodGet, "/v1/faucets/"+identity.New().String(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, faucet.CodeFaucetNotFound, body["error"])

	rec, body = f.do(http.MethodPatch, "/v1/faucets/"+identity.New().String(), "key", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty patch", body["error"])

	rec, _ = f.do(http.MethodPatch, "/v1/faucets/"+identity.New().String(), "key", `{"interval":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_PayoutReport(t *testing.T) {
	f := newAPI(t)
	user := f.signer("user-key", 0)
	other := identity.New()

	ctx := context.Background()
	require.NoError(t, f.store.PayoutHistory().InsertBatch(ctx, []model.PayoutRow{
		{ID: "01A", Requester: user, Quantity: 1, CreatedAt: time.Unix(10, 0)},
		{ID: "01B", Requester: user, Quantity: 2, CreatedAt: time.Unix(20, 0)},
		{ID: "01C", Requester: other, Quantity: 3, CreatedAt: time.Unix(30, 0)},
	}))

	rec, body := f.do(http.MethodGet, "/v1/reports/payouts?limit=1", "user-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	results := body["results"].([]any)
	assert.Equal(t, "01B", results[0].(map[string]any)["id"])
}

func TestAPI_Health(t *testing.T) {
	f := newAPI(t)
	rec, _ := f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
