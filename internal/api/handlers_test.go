package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/ledger"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/sharing"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pool = "revenue-pool"

type testServer struct {
	router *gin.Engine
	ledger *ledger.Ledger
	engine *sharing.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := ledger.NewLedger(memory.NewMemoryLedgerStore(), "", nil)
	l.Protect(pool)
	engine, err := sharing.New(context.Background(),
		[]string{"alice", "bob", "carol"}, []uint64{200, 450, 350},
		sharing.Asset{Ledger: l, Account: pool},
		sharing.Options{Store: memory.NewCheckpointStore()},
	)
	require.NoError(t, err)

	router := gin.New()
	New(engine, l, nil).Register(router)
	return &testServer{router: router, ledger: l, engine: engine}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestShareholders(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/shareholders", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	out := decode[shareholdersResponse](t, resp)
	assert.Equal(t, uint64(1000), out.TotalUnits)
	assert.Equal(t, []models.ShareAllocation{
		{Shareholder: "alice", Units: 200},
		{Shareholder: "bob", Units: 450},
		{Shareholder: "carol", Units: 350},
	}, out.Shareholders)
}

func TestRevenueAndClaimFlow(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/transactions",
		map[string]any{"from_account": ledger.DefaultIssuerAccount, "to_account": pool, "amount": 10000},
		map[string]string{"Idempotency-Key": "inflow-1"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = s.do(t, http.MethodGet, "/revenue", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"cumulative_revenue":10000}`, resp.Body.String())

	resp = s.do(t, http.MethodGet, "/shareholders/bob/entitlement", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"shareholder":"bob","entitlement":4500}`, resp.Body.String())

	resp = s.do(t, http.MethodPost, "/claims", nil, map[string]string{callerHeader: "bob"})
	require.Equal(t, http.StatusOK, resp.Code)
	claim := decode[claimResponse](t, resp)
	assert.Equal(t, "bob", claim.Shareholder)
	assert.Equal(t, uint64(4500), claim.Claimed)
	assert.NotEmpty(t, claim.ClaimID)

	// second claim owes nothing
	resp = s.do(t, http.MethodPost, "/claims", nil, map[string]string{callerHeader: "bob"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"shareholder":"bob","claimed":0}`, resp.Body.String())

	resp = s.do(t, http.MethodGet, "/accounts/balance?account_id=bob", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"account_id":"bob","balance":"4500"}`, resp.Body.String())

	resp = s.do(t, http.MethodGet, "/payouts", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	cp := decode[models.Checkpoint](t, resp)
	assert.Equal(t, uint64(4500), cp.TotalPaidOut)
	assert.Equal(t, map[string]uint64{"bob": 4500}, cp.PaidOut)

	resp = s.do(t, http.MethodGet, "/ledgerEntries", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]models.LedgerEntry](t, resp), 4)
}

func TestClaim_MissingCaller(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodPost, "/claims", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[errorResponse](t, resp).Code)
}

func TestClaim_NonShareholder(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ledger.Issue(context.Background(), pool, 500))

	resp := s.do(t, http.MethodPost, "/claims", nil, map[string]string{callerHeader: "mallory"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"shareholder":"mallory","claimed":0}`, resp.Body.String())
}

func TestPostTransaction_Errors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body any
		code string
	}{
		{"malformed", "not an object", "INVALID_REQUEST"},
		{"zero amount", map[string]any{"from_account": "issuer", "to_account": pool, "amount": 0}, "INVALID_REQUEST"},
		{"self transfer", map[string]any{"from_account": pool, "to_account": pool, "amount": 1}, "INVALID_REQUEST"},
		{"overdraft", map[string]any{"from_account": "carol", "to_account": "alice", "amount": 1}, "INSUFFICIENT_FUNDS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/transactions", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, tt.code, decode[errorResponse](t, resp).Code)
		})
	}
}

func TestPostTransaction_CustodyIsProtected(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ledger.Issue(context.Background(), pool, 10000))

	resp := s.do(t, http.MethodPost, "/transactions",
		map[string]any{"from_account": pool, "to_account": "mallory", "amount": 9000}, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "FORBIDDEN", decode[errorResponse](t, resp).Code)

	resp = s.do(t, http.MethodGet, "/revenue", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"cumulative_revenue":10000}`, resp.Body.String())

	resp = s.do(t, http.MethodGet, "/shareholders/bob/entitlement", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"shareholder":"bob","entitlement":4500}`, resp.Body.String())

	resp = s.do(t, http.MethodGet, "/accounts/balance?account_id=mallory", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"account_id":"mallory","balance":"0"}`, resp.Body.String())
}

func TestBalance_MissingAccount(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/accounts/balance", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

type stubPool struct {
	Pool
	err error
}

func (p stubPool) CumulativeRevenue(ctx context.Context) (uint64, error) { return 0, p.err }

func TestRevenue_ErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"transfer failed", sharing.ErrTransferFailed, http.StatusServiceUnavailable},
		{"overflow", sharing.ErrOverflow, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			New(stubPool{err: tt.err}, nil, nil).Register(router)

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/revenue", nil))
			assert.Equal(t, tt.status, resp.Code)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	router := gin.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router.Use(RequestID(), Logger(logger, m), Recovery(logger))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.NotEmpty(t, resp.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "req-1", resp.Header().Get(requestIDHeader))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestCount.WithLabelValues(http.MethodGet, "/ok", http.StatusText(http.StatusNoContent))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestCount.WithLabelValues(http.MethodGet, "/panic", http.StatusText(http.StatusInternalServerError))))
}
