package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodGet, "/get-guest-by-id/:id", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/get-guest-by-id/:id", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/get-guest-by-id/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestIndependentRegistries(t *testing.T) {
	first := New()
	second := New()

	first.IncrementGuestMutation("created")

	assert.Equal(t, 1.0, testutil.ToFloat64(first.GuestMutations.WithLabelValues("created")))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.GuestMutations.WithLabelValues("created")))
}

func TestHandlerExposesGuestMetrics(t *testing.T) {
	m := New()
	m.IncrementGuestMutation("deleted")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `guest_registry_guest_mutations_total{op="deleted"} 1`)
}
