package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morphogen/internal/events"
	"morphogen/internal/evolution"
)

func TestHandleEvent(t *testing.T) {
	c := NewCollector("morphogen")

	c.HandleEvent(events.New(events.Interaction, 1))
	c.HandleEvent(events.New(events.Interaction, 2))

	created := events.New(events.ArtifactCreated, 3)
	created.Mutated = true
	c.HandleEvent(created)

	triggered := events.New(events.EvolutionTriggered, 3)
	triggered.Generation = 4
	c.HandleEvent(triggered)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Interactions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Artifacts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Mutations))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Evolutions))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.CurrentGeneration))
}

func TestObserve(t *testing.T) {
	c := NewCollector("morphogen")
	c.Observe(evolution.Stats{TotalSupply: 12, CurrentGeneration: 2})
	assert.Equal(t, 12.0, testutil.ToFloat64(c.Artifacts))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CurrentGeneration))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("morphogen")
	b := NewCollector("morphogen")
	a.Interactions.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Interactions))
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := NewCollector("morphogen")

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Method(http.MethodGet, "/metrics", c.Handler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/7", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/things/{id}", "418")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `morphogen_http_requests_total{method="GET",route="/things/{id}",status="418"} 3`), body)
	assert.Contains(t, body, "morphogen_interactions_total 0")
}
