package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, h http.Handler) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestMetricsServiceExposesDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/defenses/allocations", http.StatusCreated, 20*time.Millisecond)
	m.RecordAllocation("ok", map[string]int{"ASIGNADO": 2})
	m.RecordJuryAssignments(4)
	m.RecordNotification("message", "queued")
	m.SetRetryQueueDepth(3)

	code, body := scrape(t, m.Handler())
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `defense_allocation_batches_total{outcome="ok"} 1`)
	assert.Contains(t, body, `defenses_created_total{status="ASIGNADO"} 2`)
	assert.Contains(t, body, `jury_assignments_created_total 4`)
	assert.Contains(t, body, `notifications_total{channel="message",outcome="queued"} 1`)
	assert.Contains(t, body, `notification_retry_queue_depth 3`)
	assert.Contains(t, body, `http_requests_total{method="POST",path="/api/v1/defenses/allocations",status="201"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.RecordAllocation("ok", nil)
		m.RecordJuryAssignments(1)
		m.RecordNotification("email", "sent")
		m.SetRetryQueueDepth(1)
	})
	code, _ := scrape(t, m.Handler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
