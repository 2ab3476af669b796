package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/archive"
	"github.com/joelkehle/basin-analysis/internal/basinanalysis"
	"github.com/joelkehle/basin-analysis/internal/extract"
	"github.com/joelkehle/basin-analysis/internal/petrosys"
	"github.com/joelkehle/basin-analysis/internal/reasoning"
	"github.com/joelkehle/basin-analysis/internal/telemetry"
)

const riskNarrative = "Source risk 18%. Migration risk 30%. Reservoir risk 25%. Seal risk 20%. Trap risk 15%. " +
	"Market risk 20%. Cost risk 30%. Fiscal risk 10%. Infrastructure risk 20%. " +
	"Drilling risk 10%. Completion risk 10%. Production risk 20%. Facilities risk 20%."

var narratives = map[string]string{
	basinanalysis.StageIntegration:        "Source rock quality: 82%. Thermal maturity 0.9. Reservoir porosity 12%.",
	basinanalysis.StageChargeHistory:      "Onset of generation at 95 Ma, peak generation 80 Ma. Trap formation 110 Ma.",
	basinanalysis.StageReserveEstimation:  "Oil in place: low 25, best 45, high 70 MMBO, confidence 75%. Oil recovery factor 35%.",
	basinanalysis.StageRecoveryPrediction: "Primary recovery 12%. Secondary recovery 30%. Ultimate recovery 38%.",
	basinanalysis.StageRiskAssessment:     riskNarrative,
}

func newHandler(t *testing.T, analyzer Analyzer, maxConcurrent int) http.Handler {
	t.Helper()
	if analyzer == nil {
		caller := reasoning.CallerFunc(func(_ context.Context, req reasoning.Request) (string, error) {
			return narratives[req.Stage], nil
		})
		runner := basinanalysis.NewLLMStageRunner(basinanalysis.NewStageExecutor(caller, zap.NewNop()), extract.DefaultRules(), petrosys.DefaultChancePolicy())
		analyzer = basinanalysis.NewPipeline(runner)
	}
	store, err := archive.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	metrics, err := telemetry.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return NewServer(Options{Analyzer: analyzer, Archive: store, Metrics: metrics, MaxConcurrent: maxConcurrent})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		OK    bool  `json:"ok"`
		Error Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload), rr.Body.String())
	assert.False(t, payload.OK)
	return payload.Error.Code
}

const submission = `{"id":"vg-1","integration":{"geological":{"basin_name":"Viking Graben"}},"recovery":{"recovery_method":"waterflood"}}`

func TestSubmitStoresAndServesAnalysis(t *testing.T) {
	h := newHandler(t, nil, 0)

	rr := do(t, h, http.MethodPost, "/v1/analyses", submission)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/v1/analyses/vg-1", rr.Header().Get("Location"))
	var res basinanalysis.PipelineResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, basinanalysis.PipelineComplete, res.Status)
	require.NotNil(t, res.Reserves)
	assert.Equal(t, 45.0, res.Reserves.OilInPlace.Best)

	rr = do(t, h, http.MethodGet, "/v1/analyses/vg-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stored basinanalysis.PipelineResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stored))
	assert.Equal(t, res.Chance.Combined, stored.Chance.Combined)

	rr = do(t, h, http.MethodGet, "/v1/analyses/vg-1/report", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rr.Body.String(), "# Basin Analysis Report: Viking Graben")

	rr = do(t, h, http.MethodGet, "/v1/analyses/vg-1/report?format=html", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<table>")

	rr = do(t, h, http.MethodGet, "/v1/analyses/vg-1/report?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/analyses?basin=Viking%20Graben", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Analyses []map[string]any `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Analyses, 1)
	assert.Equal(t, "vg-1", list.Analyses[0]["id"])
	assert.Contains(t, list.Analyses[0], "combined_chance")

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/v1/analyses/vg-1/report", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/analyses/vg-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/analyses/vg-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/analyses/vg-1", "").Code)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	h := newHandler(t, nil, 0)
	cases := map[string]string{
		"malformed":      `{"integration":`,
		"unknown field":  `{"integration":{"geological":{"basin_name":"X"}},"colour":"blue"}`,
		"missing basin":  `{"integration":{"geological":{}}}`,
		"unknown method": `{"integration":{"geological":{"basin_name":"X"}},"recovery":{"recovery_method":"fracking"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/analyses", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, CodeValidation, errorCode(t, rr))
		})
	}
}

func TestSubmitWithFallbackFrom(t *testing.T) {
	h := newHandler(t, nil, 0)
	rr := do(t, h, http.MethodPost, "/v1/analyses?fallback_from=missing", submission)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, errorCode(t, rr))

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/v1/analyses", submission).Code)
	next := strings.Replace(submission, "vg-1", "vg-2", 1)
	rr = do(t, h, http.MethodPost, "/v1/analyses?fallback_from=vg-1", next)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestUnknownAnalysisAndMethods(t *testing.T) {
	h := newHandler(t, nil, 0)

	rr := do(t, h, http.MethodGet, "/v1/analyses/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, errorCode(t, rr))

	rr = do(t, h, http.MethodGet, "/v1/analyses/nope/extra/path", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/v1/analyses", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/v1/health", "{}").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPut, "/v1/analyses/vg-1", "{}").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHandler(t, nil, 0)

	rr := do(t, h, http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, true, health["ok"])
	assert.Equal(t, true, health["archive"])

	do(t, h, http.MethodPost, "/v1/analyses", submission)
	do(t, h, http.MethodGet, "/v1/analyses/vg-1", "")

	rr = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `basin_http_requests_total{code="201",route="/v1/analyses"} 1`)
	assert.Contains(t, body, `basin_http_requests_total{code="200",route="/v1/analyses/{id}"} 1`)
	assert.Contains(t, body, `basin_analyses_total{status="COMPLETE"} 1`)
}

// blockingAnalyzer holds every run until release is closed.
type blockingAnalyzer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingAnalyzer) Run(ctx context.Context, in basinanalysis.PipelineInputs) (basinanalysis.PipelineResult, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return basinanalysis.PipelineResult{ID: in.ID, Status: basinanalysis.PipelineComplete}, nil
	case <-ctx.Done():
		return basinanalysis.PipelineResult{}, ctx.Err()
	}
}

func TestSubmitRejectsWhenBusy(t *testing.T) {
	b := &blockingAnalyzer{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHandler(t, b, 1)

	done := make(chan int)
	go func() {
		done <- do(t, h, http.MethodPost, "/v1/analyses", submission).Code
	}()
	<-b.entered

	rr := do(t, h, http.MethodPost, "/v1/analyses", strings.Replace(submission, "vg-1", "vg-2", 1))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, CodeUnavailable, errorCode(t, rr))

	close(b.release)
	assert.Equal(t, http.StatusCreated, <-done)
}

func TestAsError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, asError(archive.ErrNotFound).Status)
	assert.Equal(t, http.StatusInternalServerError, asError(errors.New("boom")).Status)
	assert.Equal(t, "/v1/analyses/{id}/report", routeOf("/v1/analyses/abc/report"))
	assert.Equal(t, "other", routeOf("/favicon.ico"))
}
