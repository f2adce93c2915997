package metricsvc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics()

	m.IncAppointments("scheduled")
	m.IncAppointments("scheduled")
	m.IncAppointments("completed")
	m.AddSale("card", 4500)
	m.AddSale("card", 1500)
	m.AddSale("cash", 0)
	m.ObserveRequest(http.MethodGet, "/api/v1/clients", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.appointments.WithLabelValues("scheduled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.appointments.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sales.WithLabelValues("card")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sales.WithLabelValues("cash")))
	assert.Equal(t, 6000.0, testutil.ToFloat64(m.revenue.WithLabelValues("card")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/v1/clients", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `spadesk_appointments_total{status="scheduled"} 2`)
	assert.Contains(t, string(body), "spadesk_http_request_duration_seconds")
}
