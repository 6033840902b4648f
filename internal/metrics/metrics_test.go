package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/subjects/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/subjects/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, float64(3), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/subjects/:id", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.PersistenceFailure("timer.stop")
	m.SessionsRecorded.WithLabelValues("completed").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `studytrack_persistence_failures_total{op="timer.stop"} 1`)
	assert.Contains(t, string(body), `studytrack_sessions_recorded_total{status="completed"} 1`)
}
