package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/application"
)

func TestObserveBookingLabelsOutcome(t *testing.T) {
	m := New("test")

	m.ObserveBooking(nil)
	m.ObserveBooking(nil)
	m.ObserveBooking(fmt.Errorf("create: %w", application.ErrRoomConflict))
	m.ObserveBooking(&application.QuotaError{})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("room_conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("quota_exceeded")))
}

func TestObserveSweepAndDelivery(t *testing.T) {
	m := New("test")

	m.ObserveSweep(3, nil)
	m.ObserveSweep(0, nil)
	m.ObserveSweep(0, application.ErrUnavailable)
	m.ObserveDelivery(nil)
	m.ObserveDelivery(errors.New("telegram down"))
	m.ObserveTransition("approved", nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepExpired))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxResults.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxResults.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("approved", "ok")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New("test")
	m.ObserveHTTP(http.MethodGet, "/api/v1/rooms", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `test_http_requests_total{code="200",method="GET",route="/api/v1/rooms"} 1`)
	assert.Contains(t, body, "test_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveBooking(nil)
		m.ObserveTransition("approved", nil)
		m.ObserveSweep(1, nil)
		m.ObserveDelivery(nil)
		m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
