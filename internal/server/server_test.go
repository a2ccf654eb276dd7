package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/rental-forecast/internal/analysis"
	"github.com/iwvelando/rental-forecast/internal/cache"
	"github.com/iwvelando/rental-forecast/internal/lending"
	"github.com/iwvelando/rental-forecast/internal/metrics"
	"github.com/iwvelando/rental-forecast/internal/montecarlo"
	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/loans"
	"github.com/iwvelando/rental-forecast/pkg/optimization"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const dealJSON = `{
	"name": "Duplex",
	"purchasePrice": 250000,
	"downPaymentPct": 20,
	"interestRate": 6.5,
	"termYears": 30,
	"monthlyRent": 2200,
	"monthlyExpenses": 800,
	"holdYears": 5,
	"growth": {"rentPct": 2, "expensePct": 2, "appreciationPct": 3}
}`

func newTestHandler(t *testing.T, store cache.CacheRepository) http.Handler {
	t.Helper()
	return NewHandler(zap.NewNop(), Options{
		MaxUploadSize: constants.DefaultMaxUploadSizeBytes,
		Version:       "1.2.3",
		Cache:         store,
		CacheTTL:      time.Minute,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHandleVersionAndHealth(t *testing.T) {
	h := newTestHandler(t, nil)

	rr := do(t, h, http.MethodGet, "/api/v1/version", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1.2.3", decodeBody[map[string]string](t, rr)["version"])

	rr = do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rr)["status"])
}

func TestHandleVersionDefaultsToDev(t *testing.T) {
	h := NewHandler(nil, Options{Version: "  "})
	rr := do(t, h, http.MethodGet, "/api/v1/version", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "dev", decodeBody[map[string]string](t, rr)["version"])
}

func TestHandleAnalyzeSuccess(t *testing.T) {
	h := newTestHandler(t, nil)

	rr := do(t, h, http.MethodPost, "/api/v1/analyze", dealJSON)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Empty(t, rr.Header().Get("X-Cache"))

	resp := decodeBody[analyzeResponse](t, rr)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Duplex", resp.Result.Name)
	assert.InDelta(t, 200000, resp.Result.LoanAmount, 1e-6)
	assert.Len(t, resp.Result.Years, 5)
	assert.Equal(t, 5, resp.Result.Exit.SaleYear)
	assert.Nil(t, resp.Sensitivity)
	require.Len(t, resp.Result.ScoreBreakdown.Contributions, 3)
	assert.Equal(t, resp.Result.Score, resp.Result.ScoreBreakdown.Score)
}

func TestHandleAnalyzeWithGrowthPreset(t *testing.T) {
	h := newTestHandler(t, nil)
	body := strings.Replace(dealJSON,
		`"growth": {"rentPct": 2, "expensePct": 2, "appreciationPct": 3}`,
		`"growthPreset": "conservative"`, 1)

	rr := do(t, h, http.MethodPost, "/api/v1/analyze", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeBody[analyzeResponse](t, rr)
	assert.InDelta(t, 250000*1.02, resp.Result.Years[0].PropertyValue, 1e-6)

	rr = do(t, h, http.MethodPost, "/api/v1/analyze", strings.Replace(body, "conservative", "reckless", 1))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleAnalyzeWithSensitivity(t *testing.T) {
	h := newTestHandler(t, nil)
	body := strings.Replace(dealJSON, `"name": "Duplex",`, `"name": "Duplex", "sensitivity": true,`, 1)

	rr := do(t, h, http.MethodPost, "/api/v1/analyze", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decodeBody[analyzeResponse](t, rr)
	require.NotNil(t, resp.Sensitivity)
	assert.NotEmpty(t, resp.Sensitivity.Cases)
	assert.InDelta(t, resp.Result.AnnualCashFlow, resp.Sensitivity.Base.AnnualCashFlow, 1e-6)
}

func TestHandleAnalyzeUsesCache(t *testing.T) {
	store := cache.NewMemoryCache()
	h := newTestHandler(t, store)

	first := do(t, h, http.MethodPost, "/api/v1/analyze", dealJSON)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, 1, store.Len())

	second := do(t, h, http.MethodPost, "/api/v1/analyze", dealJSON)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	changed := strings.Replace(dealJSON, `"monthlyRent": 2200`, `"monthlyRent": 2300`, 1)
	third := do(t, h, http.MethodPost, "/api/v1/analyze", changed)
	require.Equal(t, http.StatusOK, third.Code)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, store.Len())
}

func TestHandleAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{
			name:   "malformed JSON",
			body:   `{"purchasePrice":`,
			status: http.StatusBadRequest,
			errMsg: "failed to decode request",
		},
		{
			name:   "invalid request",
			body:   `{"purchasePrice": 100000, "downPaymentPct": 20, "interestRate": 5, "termYears": 0}`,
			status: http.StatusBadRequest,
			errMsg: "invalid analysis request",
		},
		{
			name:   "negative price",
			body:   `{"purchasePrice": -1, "interestRate": 5, "termYears": 30}`,
			status: http.StatusBadRequest,
			errMsg: "invalid analysis request",
		},
	}

	h := newTestHandler(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/v1/analyze", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Contains(t, decodeBody[map[string]string](t, rr)["error"], tt.errMsg)
		})
	}
}

func TestHandleAnalyzeRejectsLargeBody(t *testing.T) {
	h := NewHandler(zap.NewNop(), Options{MaxUploadSize: 64})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString(dealJSON))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rr)["error"], "exceeds limit of 64 bytes")
}

func TestHandleAnalyzeMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, nil)
	rr := do(t, h, http.MethodGet, "/api/v1/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleSimulate(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{
		"deal": ` + dealJSON + `,
		"ranges": {
			"rentGrowth": {"low": 1, "high": 3},
			"expenseGrowth": {"low": 1, "high": 3},
			"appreciation": {"low": 0, "high": 5}
		},
		"config": {"trials": 25, "seed": 7, "workers": 2}
	}`

	rr := do(t, h, http.MethodPost, "/api/v1/simulate", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	res := decodeBody[montecarlo.Result](t, rr)
	assert.NotEmpty(t, res.ID)
	require.Len(t, res.Trials, 25)
	assert.Equal(t, 25, res.ROI.Count)
	assert.LessOrEqual(t, res.ROI.P10, res.ROI.P90)
	for _, trial := range res.Trials {
		assert.GreaterOrEqual(t, trial.AppreciationPct, 0.0)
		assert.LessOrEqual(t, trial.AppreciationPct, 5.0)
	}

	again := do(t, h, http.MethodPost, "/api/v1/simulate", body)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, res.Trials, decodeBody[montecarlo.Result](t, again).Trials)
}

func TestHandleSimulateWithoutRangesCollapses(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{"deal": ` + dealJSON + `, "config": {"trials": 10, "seed": 1}}`

	rr := do(t, h, http.MethodPost, "/api/v1/simulate", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	res := decodeBody[montecarlo.Result](t, rr)
	assert.InDelta(t, res.ROI.P10, res.ROI.P90, 1e-9)
}

func TestHandleSimulateErrors(t *testing.T) {
	h := newTestHandler(t, nil)

	inverted := `{"deal": ` + dealJSON + `, "ranges": {"rentGrowth": {"low": 5, "high": 1}}, "config": {"trials": 10}}`
	rr := do(t, h, http.MethodPost, "/api/v1/simulate", inverted)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	tooMany := `{"deal": ` + dealJSON + `, "config": {"trials": 1000000}}`
	rr = do(t, h, http.MethodPost, "/api/v1/simulate", tooMany)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
}

func TestHandleBreakEven(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{"deal": ` + dealJSON + `, "config": {"field": "rent"}}`

	rr := do(t, h, http.MethodPost, "/api/v1/breakeven", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	summary := decodeBody[optimization.Summary](t, rr)
	assert.Equal(t, "Duplex", summary.TargetName)
	assert.Equal(t, "rent", summary.Field)
	assert.True(t, summary.Converged)
	assert.Less(t, summary.Value, 2200.0)
	assert.GreaterOrEqual(t, summary.CashFlow, 0.0)

	rr = do(t, h, http.MethodPost, "/api/v1/breakeven", `{"deal": `+dealJSON+`, "config": {"field": "hoa"}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleLending(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{
		"purchasePrice": 250000,
		"downPaymentPct": 20,
		"interestRate": 7,
		"termYears": 30,
		"monthlyRent": 2000,
		"borrower": {"monthlyIncome": 6000, "otherMonthlyDebt": 500, "creditScore": 700},
		"evaluateFha": true
	}`

	rr := do(t, h, http.MethodPost, "/api/v1/lending", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	res := decodeBody[lending.Result](t, rr)
	assert.InDelta(t, 200000, res.LoanAmount, 1e-6)
	assert.InDelta(t, 80, res.LTV.Value, 1e-9)
	assert.True(t, res.DSCRDefined)
	require.NotNil(t, res.FHA)

	rr = do(t, h, http.MethodPost, "/api/v1/lending", `{"purchasePrice": 250000, "termYears": 30}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleAffordability(t *testing.T) {
	h := newTestHandler(t, nil)

	rr := do(t, h, http.MethodPost, "/api/v1/affordability", `{"rent": 1500}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decodeBody[lending.AffordabilityResult](t, rr)
	require.NotNil(t, res.RequiredIncome)
	assert.InDelta(t, 5000, res.RequiredIncome.Monthly, 1e-6)
	assert.InDelta(t, 60000, res.RequiredIncome.Annual, 1e-6)

	rr = do(t, h, http.MethodPost, "/api/v1/affordability", `{"income": 72000, "period": "annual"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res = decodeBody[lending.AffordabilityResult](t, rr)
	require.NotNil(t, res.MaxRent)
	assert.InDelta(t, 1800, *res.MaxRent, 1e-6)

	rr = do(t, h, http.MethodPost, "/api/v1/affordability", `{"rent": 1500, "income": 5000}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRehab(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{"purchasePrice": 200000, "downPaymentPct": 25, "rehabCost": 30000, "afterRepairValue": 280000}`

	rr := do(t, h, http.MethodPost, "/api/v1/rehab", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decodeBody[analysis.RehabResult](t, rr)
	assert.InDelta(t, 80000, res.Invested, 1e-9)
	assert.InDelta(t, 130000, res.Equity, 1e-9)
	assert.InDelta(t, 62.5, res.ROI, 1e-9)

	rr = do(t, h, http.MethodPost, "/api/v1/rehab", `{"purchasePrice": 200000, "rehabCost": -1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRefinance(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{
		"original": {"principal": 200000, "annualRate": 6.5, "termYears": 30},
		"afterMonths": 60,
		"cashOut": 20000,
		"newRate": 5,
		"newTermYears": 30
	}`

	rr := do(t, h, http.MethodPost, "/api/v1/refinance", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decodeBody[loans.Refinance](t, rr)
	assert.InDelta(t, 187221.95, res.Balance, 0.01)
	assert.InDelta(t, 1112.41, res.NewPayment, 0.01)
	require.NotNil(t, res.PaymentChange)
	assert.Less(t, *res.PaymentChange, 0.0)

	rr = do(t, h, http.MethodPost, "/api/v1/refinance", `{"balance": 1000, "cashOut": -5000, "newRate": 5, "newTermYears": 30}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlePresets(t *testing.T) {
	h := newTestHandler(t, nil)

	rr := do(t, h, http.MethodGet, "/api/v1/presets", "")
	require.Equal(t, http.StatusOK, rr.Code)
	presets := decodeBody[map[string]analysis.Growth](t, rr)
	assert.Len(t, presets, 3)
	assert.Equal(t, analysis.Growth{RentPct: 4, ExpensePct: 1.5, AppreciationPct: 5}, presets["aggressive"])
}

func TestHandlersCountAnalyses(t *testing.T) {
	h := newTestHandler(t, nil)

	ok := metrics.Analyses.WithLabelValues("affordability", "ok")
	invalid := metrics.Analyses.WithLabelValues("affordability", "invalid")
	okBefore, invalidBefore := promtestutil.ToFloat64(ok), promtestutil.ToFloat64(invalid)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/affordability", `{"rent": 1500}`).Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/affordability", `{"rent": 1500, "income": 5000}`).Code)

	assert.Equal(t, okBefore+1, promtestutil.ToFloat64(ok))
	assert.Equal(t, invalidBefore+1, promtestutil.ToFloat64(invalid))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, nil)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/analyze", dealJSON).Code)

	rr := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "rental_forecast_analyses_total")
	assert.Contains(t, rr.Body.String(), "rental_forecast_request_duration_seconds")
}

func TestNewWebAPIMemoryCache(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Cache.Backend = cache.BackendMemory

	api, err := NewWebAPI(context.Background(), zap.NewNop(), cfg, "test")
	require.NoError(t, err)

	rr := do(t, api.Handler(), http.MethodPost, "/api/v1/analyze", dealJSON)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
}

func TestNewWebAPIUnreachableRedis(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Cache = CacheConfig{Backend: cache.BackendRedis, Addr: "127.0.0.1:1", TTLSeconds: 60}

	_, err = NewWebAPI(context.Background(), zap.NewNop(), cfg, "test")
	assert.ErrorContains(t, err, "failed to reach redis")
}

func TestWebAPIStartStopsOnCancel(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Address = "127.0.0.1:0"

	api, err := NewWebAPI(context.Background(), zap.NewNop(), cfg, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
