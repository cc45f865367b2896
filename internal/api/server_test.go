package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"morphogen/internal/entropy"
	"morphogen/internal/evolution"
	"morphogen/internal/metrics"
	"morphogen/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

type fixture struct {
	clock     *entropy.ManualClock
	engine    *evolution.Engine
	collector *metrics.Collector
	handler   http.Handler
	persisted int
}

func newFixture(t *testing.T, genesis int, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{clock: entropy.NewManualClock(0), collector: metrics.NewCollector("morphogen")}

	e, err := evolution.New(evolution.DefaultConfig(), f.clock, entropy.NewChain(entropy.FromUint64(3), f.clock),
		evolution.WithSink(f.collector))
	require.NoError(t, err)
	if genesis > 0 {
		_, err = e.SeedGenesis(genesis, nil)
		require.NoError(t, err)
	}
	f.engine = e

	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(f.collector),
		WithVersion("test"),
		WithPersister(func(context.Context) error { f.persisted++; return nil }),
	}
	f.handler = NewServer(e, append(base, opts...)...).Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 0)
	rec, body := f.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestGetArtifact(t *testing.T) {
	f := newFixture(t, 3)

	rec, body := f.do(t, http.MethodGet, "/api/v1/artifacts/2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["id"])
	assert.Equal(t, true, body["is_genesis"])
	assert.Contains(t, body, "properties")
	assert.IsType(t, "", body["genome"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/artifacts/9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/api/v1/artifacts/x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/api/v1/artifacts/0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndProperties(t *testing.T) {
	f := newFixture(t, 3)

	rec, body := f.do(t, http.MethodGet, "/api/v1/artifacts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["total"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/artifacts/1/properties")
	require.Equal(t, http.StatusOK, rec.Code)
	p, err := f.engine.Properties(1)
	require.NoError(t, err)
	assert.Equal(t, float64(p.ColorHue), body["color_hue"])
}

func TestInteractAndEvolve(t *testing.T) {
	f := newFixture(t, 10)

	rec, body := f.do(t, http.MethodPost, "/api/v1/artifacts/1/interactions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["interaction_count"])
	assert.NotContains(t, body, "offspring")

	rec, body = f.do(t, http.MethodPost, "/api/v1/evolutions")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, true, body["error"])

	f.clock.Advance(100)
	rec, body = f.do(t, http.MethodPost, "/api/v1/artifacts/4/interactions")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(11), body["offspring"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/generations/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{float64(11)}, body["artifact_ids"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/artifacts/11/lineage")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["ancestors"], 2)

	rec, body = f.do(t, http.MethodGet, "/api/v1/artifacts/11/metadata")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Morphogen #11", body["name"])

	f.clock.Advance(100)
	rec, body = f.do(t, http.MethodPost, "/api/v1/evolutions")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(12), body["artifact_id"])

	assert.Equal(t, 3, f.persisted)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.collector.Evolutions))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.collector.Interactions))
}

func TestInsufficientPopulation(t *testing.T) {
	f := newFixture(t, 1)
	f.clock.Advance(100)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/artifacts/1/interactions")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Zero(t, f.persisted)
}

func TestPersistFailure(t *testing.T) {
	f := newFixture(t, 2, WithPersister(func(context.Context) error { return errors.New("disk full") }))
	rec, _ := f.do(t, http.MethodPost, "/api/v1/artifacts/1/interactions")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, 4)
	f.clock.Advance(30)
	rec, body := f.do(t, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), body["total_supply"])
	assert.Equal(t, float64(70), body["ticks_until_evolution"])
	assert.Equal(t, false, body["due"])
}

func TestGenerationBadInput(t *testing.T) {
	f := newFixture(t, 2)
	rec, _ := f.do(t, http.MethodGet, "/api/v1/generations/-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, body := f.do(t, http.MethodGet, "/api/v1/generations/5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["artifact_ids"])
}

func TestEvents(t *testing.T) {
	f := newFixture(t, 2)
	rec, _ := f.do(t, http.MethodGet, "/api/v1/artifacts/1/events")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	s, err := store.Open(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer s.Close()

	clock := entropy.NewManualClock(0)
	outbox := &store.Outbox{}
	e, err := evolution.New(evolution.DefaultConfig(), clock, entropy.NewChain(entropy.FromUint64(3), clock), evolution.WithSink(outbox))
	require.NoError(t, err)
	_, err = e.SeedGenesis(2, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = e.Interact(1)
		require.NoError(t, err)
	}
	require.NoError(t, s.Commit(context.Background(), store.State{Snapshot: e.Snapshot(), Salt: entropy.FromUint64(3)}, outbox.Take()))

	h := NewServer(e, WithJournal(s), WithLogger(zaptest.NewLogger(t))).Router()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/1/events?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []struct {
			Kind string `json:"kind"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Events, 2)
	assert.Equal(t, "interaction", body.Events[1].Kind)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/1/events?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, 2)
	f.do(t, http.MethodGet, "/api/v1/artifacts/1")
	rec, _ := f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/artifacts/{id}`)
	assert.Contains(t, rec.Body.String(), "morphogen_artifacts 2")
}

func TestInsufficientPopulationIsLoggedAsFault(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, 1, WithLogger(zap.New(core)))
	f.clock.Advance(100)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/evolutions")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	rec, _ = f.do(t, http.MethodPost, "/api/v1/artifacts/1/interactions")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	faults := logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessage("Population too small to evolve").All()
	require.Len(t, faults, 2)
	assert.Equal(t, uint64(1), faults[0].ContextMap()["total_supply"])
}

func TestInsufficientPopulationBeforeGenesisIsNotAFault(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, 0, WithLogger(zap.New(core)))

	rec, _ := f.do(t, http.MethodPost, "/api/v1/evolutions")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("wrap: %w", evolution.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, StatusFor(evolution.ErrCadenceNotReached))
	assert.Equal(t, http.StatusPreconditionFailed, StatusFor(evolution.ErrInsufficientPopulation))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
