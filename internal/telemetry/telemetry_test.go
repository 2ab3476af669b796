package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMetricsObserveStage(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveStage("integration", "PARTIAL", 120*time.Millisecond)
	m.ObserveStage("integration", "PARTIAL", 80*time.Millisecond)
	m.ObserveStage("charge_history", "BLOCKED", 0)
	m.ObserveIssue("integration", "EXTRACTION_GAP")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageOutcomes.WithLabelValues("integration", "PARTIAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageOutcomes.WithLabelValues("charge_history", "BLOCKED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Issues.WithLabelValues("integration", "EXTRACTION_GAP")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))
}

func TestMetricsDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.ErrorContains(t, err, "register")
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m, err := NewDefaultMetrics()
	require.NoError(t, err)
	m.ObserveAnalysis("COMPLETE")
	m.ObserveRequest("/v1/health", 200)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `basin_analyses_total{status="COMPLETE"} 1`)
	assert.Contains(t, string(body), `basin_http_requests_total{code="200",route="/v1/health"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInitTracingWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "", "basin-analysis")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracerProviderTagsService(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := NewTracerProvider("basin-test", sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "stage.integration")
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "stage.integration", spans[0].Name())
	v, ok := spans[0].Resource().Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "basin-test", v.AsString())
}
