package evolution

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"morphogen/internal/dna"
	"morphogen/internal/entropy"
	"morphogen/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var genomeEqual = cmp.Comparer(func(a, b dna.Genome) bool { return a.Equal(b) })

type harness struct {
	clock    *entropy.ManualClock
	chain    *entropy.Chain
	recorder *events.Recorder
	engine   *Engine
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	clock := entropy.NewManualClock(0)
	chain := entropy.NewChain(entropy.FromUint64(0xfeed), clock)
	rec := &events.Recorder{}
	e, err := New(cfg, clock, chain, WithSink(rec), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return &harness{clock: clock, chain: chain, recorder: rec, engine: e}
}

func seeded(t *testing.T, count int) *harness {
	t.Helper()
	h := newHarness(t, DefaultConfig())
	_, err := h.engine.SeedGenesis(count, nil)
	require.NoError(t, err)
	h.recorder.Reset()
	return h
}

func TestNewRejectsBadConfig(t *testing.T) {
	clock := entropy.NewManualClock(0)
	chain := entropy.NewChain(entropy.FromUint64(1), clock)

	_, err := New(Config{Interval: 0, MaxGenesis: 10}, clock, chain)
	assert.Error(t, err)
	_, err = New(Config{Interval: 10, MaxGenesis: 1}, clock, chain)
	assert.Error(t, err)
	_, err = New(DefaultConfig(), nil, chain)
	assert.Error(t, err)
}

func TestSeedGenesis(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.clock.Advance(7)

	ids, err := h.engine.SeedGenesis(10, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids)
	assert.Equal(t, uint64(10), h.engine.TotalSupply())
	assert.Equal(t, uint64(0), h.engine.CurrentGeneration())

	for _, id := range ids {
		a, err := h.engine.Artifact(id)
		require.NoError(t, err)
		assert.True(t, a.IsGenesis)
		assert.False(t, a.HasParents())
		assert.Equal(t, uint64(0), a.Generation)
		assert.Equal(t, uint64(7), a.BirthTick)
		assert.Equal(t, uint64(0), a.InteractionCount)
		assert.True(t, a.Genome.InRange(), "genome %s", a.Genome)
	}

	assert.Equal(t, 10, h.recorder.Count(events.ArtifactCreated))
	assert.Equal(t, uint64(107), h.engine.Stats().NextEvolutionTick)
}

func TestSeedGenesisErrors(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	for _, n := range []int{0, -1, 11} {
		_, err := h.engine.SeedGenesis(n, nil)
		assert.ErrorIs(t, err, ErrInvalidGenesisCount, "count %d", n)
	}
	assert.Equal(t, uint64(0), h.engine.TotalSupply())
	assert.Zero(t, h.recorder.Count(events.ArtifactCreated))

	_, err := h.engine.SeedGenesis(3, nil)
	require.NoError(t, err)
	_, err = h.engine.SeedGenesis(3, nil)
	assert.ErrorIs(t, err, ErrAlreadySeeded)
	assert.Equal(t, uint64(3), h.engine.TotalSupply())
}

func TestSeedGenesisIsDeterministic(t *testing.T) {
	a := seeded(t, 5)
	b := seeded(t, 5)
	diff := cmp.Diff(a.engine.Artifacts(), b.engine.Artifacts(), genomeEqual)
	assert.Empty(t, diff)
}

func TestInteractCountsWhileDormant(t *testing.T) {
	h := seeded(t, 3)

	for i := 1; i <= 4; i++ {
		out, err := h.engine.Interact(2)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), out.InteractionCount)
		assert.Zero(t, out.Offspring)
	}
	assert.Equal(t, uint64(3), h.engine.TotalSupply())
	assert.Equal(t, 4, h.recorder.Count(events.Interaction))
	assert.Zero(t, h.recorder.Count(events.EvolutionTriggered))
}

func TestInteractUnknownArtifact(t *testing.T) {
	h := seeded(t, 3)

	for _, id := range []uint64{0, 4, 1 << 40} {
		_, err := h.engine.Interact(id)
		assert.ErrorIs(t, err, ErrNotFound)

		var opErr *Error
		require.True(t, errors.As(err, &opErr))
		assert.Equal(t, "interact", opErr.Op)
	}
	assert.Empty(t, h.recorder.Events())
}

func TestCadenceBoundary(t *testing.T) {
	h := seeded(t, 4)

	h.clock.Advance(99)
	assert.False(t, h.engine.CanEvolve())
	_, err := h.engine.Evolve()
	assert.ErrorIs(t, err, ErrCadenceNotReached)
	assert.Equal(t, uint64(1), h.engine.Stats().TicksUntilEvolution)

	h.clock.Advance(1)
	assert.True(t, h.engine.CanEvolve())
	id, err := h.engine.Evolve()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	// The cycle restarts from the tick of the evolution.
	assert.False(t, h.engine.CanEvolve())
	assert.Equal(t, uint64(200), h.engine.Stats().NextEvolutionTick)
}

func TestInteractionGivesBirth(t *testing.T) {
	h := seeded(t, 10)
	h.clock.Advance(100)

	out, err := h.engine.Interact(1)
	require.NoError(t, err)
	assert.Equal(t, Outcome{ArtifactID: 1, InteractionCount: 1, Offspring: 11}, out)

	child, err := h.engine.Artifact(11)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), child.Generation)
	assert.Equal(t, uint64(1), child.ParentA)
	assert.Equal(t, uint64(2), child.ParentB)
	assert.Equal(t, uint64(100), child.BirthTick)
	assert.False(t, child.IsGenesis)
	assert.Equal(t, uint64(1), h.engine.CurrentGeneration())

	assert.Equal(t, []events.Kind{
		events.Interaction,
		events.ArtifactCreated,
		events.EvolutionTriggered,
	}, h.recorder.Kinds())

	evs := h.recorder.Events()
	assert.Equal(t, uint64(11), evs[2].ArtifactID)
	assert.Equal(t, uint64(1), evs[2].ParentA)
	assert.Equal(t, uint64(2), evs[2].ParentB)
	assert.Equal(t, child.Genome.String(), evs[1].Genome)

	// Next interaction at the same tick is dormant again.
	out, err = h.engine.Interact(1)
	require.NoError(t, err)
	assert.Zero(t, out.Offspring)
}

func TestParentsFollowPopularity(t *testing.T) {
	h := seeded(t, 5)
	for i := 0; i < 3; i++ {
		_, err := h.engine.Interact(4)
		require.NoError(t, err)
	}
	_, err := h.engine.Interact(2)
	require.NoError(t, err)
	_, err = h.engine.Interact(5)
	require.NoError(t, err)

	h.clock.Advance(100)
	id, err := h.engine.Evolve()
	require.NoError(t, err)

	child, err := h.engine.Artifact(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), child.ParentA)
	// 2 and 5 tie at one interaction; the lower id wins.
	assert.Equal(t, uint64(2), child.ParentB)
}

func TestInsufficientPopulationIsAllOrNothing(t *testing.T) {
	h := seeded(t, 1)

	out, err := h.engine.Interact(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.InteractionCount)

	h.clock.Advance(100)
	h.recorder.Reset()

	_, err = h.engine.Interact(1)
	assert.ErrorIs(t, err, ErrInsufficientPopulation)
	a, err := h.engine.Artifact(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.InteractionCount)
	assert.Empty(t, h.recorder.Events())

	_, err = h.engine.Evolve()
	assert.ErrorIs(t, err, ErrInsufficientPopulation)
	assert.Equal(t, uint64(1), h.engine.TotalSupply())
}

func TestEvolveBeforeGenesis(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.clock.Advance(1000)
	_, err := h.engine.Evolve()
	assert.ErrorIs(t, err, ErrInsufficientPopulation)
}

func TestGenerationsAndLineage(t *testing.T) {
	h := seeded(t, 3)
	for round := 0; round < 3; round++ {
		h.clock.Advance(100)
		_, err := h.engine.Evolve()
		require.NoError(t, err)
	}

	assert.Equal(t, []uint64{1, 2, 3}, h.engine.Generation(0))
	assert.Equal(t, []uint64{4}, h.engine.Generation(1))
	assert.Equal(t, []uint64{6}, h.engine.Generation(3))
	assert.Empty(t, h.engine.Generation(4))

	anc, err := h.engine.Lineage(6)
	require.NoError(t, err)
	ids := make([]uint64, len(anc))
	for i, a := range anc {
		ids[i] = a.ID
	}
	// No interactions: every round breeds from ids 1 and 2.
	assert.Equal(t, []uint64{1, 2}, ids)

	_, err = h.engine.Lineage(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPropertiesAreStable(t *testing.T) {
	h := seeded(t, 2)
	first, err := h.engine.Properties(1)
	require.NoError(t, err)
	_, err = h.engine.Interact(1)
	require.NoError(t, err)
	second, err := h.engine.Properties(1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = h.engine.Properties(3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetadata(t *testing.T) {
	h := seeded(t, 2)
	h.clock.Advance(100)
	_, err := h.engine.Evolve()
	require.NoError(t, err)

	md, err := h.engine.Metadata(3)
	require.NoError(t, err)
	assert.Equal(t, "Morphogen #3", md.Name)

	traits := map[string]any{}
	for _, a := range md.Attributes {
		traits[a.TraitType] = a.Value
	}
	assert.Equal(t, "Bred", traits["Origin"])
	assert.Equal(t, uint64(1), traits["Parent A"])
	assert.Equal(t, uint64(2), traits["Parent B"])

	md, err = h.engine.Metadata(1)
	require.NoError(t, err)
	for _, a := range md.Attributes {
		assert.NotEqual(t, "Parent A", a.TraitType)
	}
}

func TestStats(t *testing.T) {
	h := seeded(t, 4)
	_, err := h.engine.Interact(3)
	require.NoError(t, err)
	h.clock.Advance(40)

	s := h.engine.Stats()
	assert.Equal(t, Stats{
		Seeded:              true,
		TotalSupply:         4,
		GenesisCount:        4,
		Interval:            100,
		CurrentTick:         40,
		NextEvolutionTick:   100,
		TicksUntilEvolution: 60,
		MostPopular:         3,
	}, s)
}

func TestConcurrentInteractions(t *testing.T) {
	h := seeded(t, 10)

	const workers, per = 8, 50
	var births atomic.Int64
	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		id := uint64(w%10 + 1)
		g.Go(func() error {
			for i := 0; i < per; i++ {
				if i == per/2 && id == 1 {
					h.clock.Advance(100)
				}
				out, err := h.engine.Interact(id)
				if err != nil {
					return err
				}
				if out.Offspring != 0 {
					births.Add(1)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var total uint64
	for _, a := range h.engine.Artifacts() {
		total += a.InteractionCount
	}
	assert.Equal(t, uint64(workers*per), total)
	assert.Equal(t, int64(1), births.Load())
	assert.Equal(t, uint64(11), h.engine.TotalSupply())
	assert.Equal(t, workers*per, h.recorder.Count(events.Interaction))
	assert.Equal(t, 1, h.recorder.Count(events.EvolutionTriggered))
}

func TestEventsFollowCommitOrder(t *testing.T) {
	h := seeded(t, 2)

	const workers, per = 8, 500
	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < per; i++ {
				if _, err := h.engine.Interact(1); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	evs := h.recorder.Events()
	require.Len(t, evs, workers*per)
	for i, ev := range evs {
		require.Equal(t, uint64(i+1), ev.InteractionCount, "event %d delivered out of commit order", i)
	}
}

func TestSinkCanReadEngineDuringDelivery(t *testing.T) {
	clock := entropy.NewManualClock(0)
	chain := entropy.NewChain(entropy.FromUint64(9), clock)

	var (
		engine *Engine
		seen   atomic.Int64
	)
	reader := events.SinkFunc(func(ev events.Event) {
		if ev.Kind != events.Interaction {
			return
		}
		a, err := engine.Artifact(ev.ArtifactID)
		if err == nil && a.InteractionCount >= ev.InteractionCount {
			seen.Add(1)
		}
	})
	engine, err := New(DefaultConfig(), clock, chain, WithSink(reader))
	require.NoError(t, err)
	_, err = engine.SeedGenesis(4, nil)
	require.NoError(t, err)

	g := new(errgroup.Group)
	for w := 0; w < 4; w++ {
		id := uint64(w + 1)
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				if _, err := engine.Interact(id); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(800), seen.Load())
}
