package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.NotificationsTotal.WithLabelValues("temporary_password", "queued").Inc()
	m.AuthorizationDenied.WithLabelValues("role").Inc()
	m.AuthorizationDenied.WithLabelValues("role").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("temporary_password", "queued")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthorizationDenied.WithLabelValues("role")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "portal_authorization_denied_total")
}
