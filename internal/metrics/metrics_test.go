package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(operations.WithLabelValues("buy", "rejected"))
	RecordOperation("buy", "rejected")
	assert.Equal(t, before+1, testutil.ToFloat64(operations.WithLabelValues("buy", "rejected")))
}

func TestRecordSnapshotSaveAndPlayers(t *testing.T) {
	before := testutil.ToFloat64(snapshotSaves.WithLabelValues("false"))
	RecordSnapshotSave(5*time.Millisecond, false)
	assert.Equal(t, before+1, testutil.ToFloat64(snapshotSaves.WithLabelValues("false")))

	SetPlayers(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(players))
}

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Method(http.MethodGet, "/metrics", Handler())

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/items/{id}", "418"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/items/42", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/items/{id}", "418")))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "cargo_market_http_requests_total")
}
