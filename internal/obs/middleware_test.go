package obs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kitstore/internal/obs"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("kitstore", []float64{10, 1}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/kits/search/{query}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, q := range []string{"ajax", "milan"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/kits/search/"+q, nil))
		require.Equal(t, http.StatusNoContent, rr.Code)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/api/kits/search/{query}", "204")))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.Latency))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
}

func TestNewHTTPMetricsReusesRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("kitstore", nil, registry)
	second := obs.NewHTTPMetrics("kitstore", nil, registry)
	require.Same(t, first.Requests, second.Requests)
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLogger("json", "debug", &buf)

	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "error", line["level"])
	require.Equal(t, "/boom", line["route"])
	require.Equal(t, float64(500), line["status"])
	require.Equal(t, "203.0.113.9", line["client_ip"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLogger("json", "chatty", &buf)
	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
	logger.Info().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestPGXTracerObservesByVerb(t *testing.T) {
	registry := prometheus.NewRegistry()
	tracer := obs.NewPGXTracer("kitstore", registry)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "select id from kits"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})

	require.Equal(t, 1, testutil.CollectAndCount(tracer.Duration))
	count, err := testutil.GatherAndCount(registry, "kitstore_db_query_duration_ms")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
