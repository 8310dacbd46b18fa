package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ReportsTotal.WithLabelValues(OutcomeBuilt).Inc()
	m.ReportsTotal.WithLabelValues(OutcomeBuilt).Inc()
	m.CacheHits.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReportsTotal.WithLabelValues(OutcomeBuilt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))

	n, err := testutil.GatherAndCount(reg, "forecast_reports_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHealth_Status(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *HealthStatus)
		wantStatus string
		wantCode   int
	}{
		{"sqlite down", func(h *HealthStatus) {}, "unhealthy", http.StatusServiceUnavailable},
		{"healthy without redis", func(h *HealthStatus) { h.SetSQLiteOK(true) }, "healthy", http.StatusOK},
		{"redis enabled but down", func(h *HealthStatus) {
			h.SetSQLiteOK(true)
			h.SetRedisEnabled(true)
		}, "degraded", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthStatus()
			tt.setup(h)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestHealth_RecordRun(t *testing.T) {
	h := NewHealthStatus()
	h.SetSQLiteOK(true)
	at := time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)
	h.RecordRun(at, 2)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-02-01T18:00:00Z", body["last_run_at"])
	assert.Equal(t, 2.0, body["last_run_errors"])
}

func TestServer_Routes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.BarsImported.Add(3)
	h := NewHealthStatus()
	h.SetSQLiteOK(true)

	srv := httptest.NewServer(NewServer(":0", reg, h, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "forecast_bars_imported_total 3")

	resp2, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/reports")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}
