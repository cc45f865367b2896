// Package evolution is the generation lifecycle: genesis seeding, the
// interaction-driven fitness record, the cadence gate, and breeding of new
// artifacts from the two most popular existing ones.
//
// An Engine is the single owner of its registry and counters. Every mutating
// call runs under one write lock, so operations are totally ordered and no
// intermediate state is ever observable. Events are collected while the lock
// is held and delivered to the sink after it is released, in commit order.
// Sinks may read the engine but must not mutate it.
package evolution

import (
	"fmt"
	"sync"

	"morphogen/internal/artifact"
	"morphogen/internal/breeding"
	"morphogen/internal/dna"
	"morphogen/internal/entropy"
	"morphogen/internal/events"
	"morphogen/internal/logging"

	"go.uber.org/zap"
)

// mutationDomain separates the mutation roll's discriminator from the
// breeding seed's for the same child id.
const mutationDomain uint64 = 1 << 63

// Engine runs the evolution state machine for one registry.
type Engine struct {
	mu sync.RWMutex

	cfg     Config
	clock   entropy.Clock
	entropy entropy.Provider
	sink    events.Sink
	logger  *zap.Logger

	registry          *artifact.Registry
	seeded            bool
	currentGeneration uint64
	lastEvolutionTick uint64
	committed         uint64 // delivery tickets issued, guarded by mu

	deliverMu sync.Mutex
	delivered *sync.Cond
	turn      uint64 // last ticket delivered, guarded by deliverMu
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSink routes notifications to s.
func WithSink(s events.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger replaces the category logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an unseeded engine drawing ticks from clock and breeding
// entropy from provider.
func New(cfg Config, clock entropy.Clock, provider entropy.Provider, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evolution config: %w", err)
	}
	if clock == nil || provider == nil {
		return nil, fmt.Errorf("evolution engine requires a clock and an entropy provider")
	}

	e := &Engine{
		cfg:      cfg,
		clock:    clock,
		entropy:  provider,
		sink:     events.Discard,
		logger:   logging.Get(logging.CategoryEvolution),
		registry: artifact.NewRegistry(),
	}
	e.delivered = sync.NewCond(&e.deliverMu)
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = events.Discard
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// SeedGenesis creates count generation-0 artifacts in one step. It can run
// once per engine. A nil provider falls back to the engine's own.
func (e *Engine) SeedGenesis(count int, provider entropy.Provider) ([]uint64, error) {
	if provider == nil {
		provider = e.entropy
	}

	e.mu.Lock()
	ids, evs, err := e.seedLocked(count, provider)
	ticket := e.ticket(evs)
	e.mu.Unlock()

	e.dispatch(ticket, evs)
	return ids, err
}

func (e *Engine) seedLocked(count int, provider entropy.Provider) ([]uint64, []events.Event, error) {
	if e.seeded || e.registry.TotalSupply() > 0 {
		return nil, nil, opError("seed genesis", 0, ErrAlreadySeeded, "")
	}
	if count < 1 || count > e.cfg.MaxGenesis {
		return nil, nil, opError("seed genesis", 0, ErrInvalidGenesisCount, "count %d not in [1, %d]", count, e.cfg.MaxGenesis)
	}

	tick := e.clock.CurrentTick()
	scalar := provider.Scalar()

	staged := artifact.NewRegistry()
	ids := make([]uint64, 0, count)
	evs := make([]events.Event, 0, count)
	for i := 0; i < count; i++ {
		id := staged.NextID()
		a := artifact.Artifact{
			ID:        id,
			BirthTick: tick,
			Genome:    dna.Generate(provider.Fresh(id), id, tick, scalar),
			IsGenesis: true,
		}
		if err := staged.Insert(a); err != nil {
			return nil, nil, fmt.Errorf("seed genesis: %w", err)
		}
		ids = append(ids, id)
		evs = append(evs, createdEvent(a, false))
	}

	e.registry = staged
	e.seeded = true
	e.currentGeneration = 0
	e.lastEvolutionTick = tick

	e.logger.Info("genesis seeded",
		zap.Int("count", count),
		zap.Uint64("tick", tick),
		zap.Uint64("next_evolution_tick", tick+e.cfg.Interval))
	return ids, evs, nil
}

// Outcome reports what an interaction did.
type Outcome struct {
	ArtifactID       uint64 `json:"artifact_id"`
	InteractionCount uint64 `json:"interaction_count"`
	// Offspring is the id of the artifact bred as a side effect, 0 if none.
	Offspring uint64 `json:"offspring,omitempty"`
}

// Interact records one interaction with id. When the cadence is due at the
// current tick the same call goes on to breed the next generation: an
// interaction can give birth to an artifact. If breeding is due but
// impossible, nothing is recorded and ErrInsufficientPopulation is returned.
func (e *Engine) Interact(id uint64) (Outcome, error) {
	e.mu.Lock()
	out, evs, err := e.interactLocked(id)
	ticket := e.ticket(evs)
	e.mu.Unlock()

	e.dispatch(ticket, evs)
	return out, err
}

func (e *Engine) interactLocked(id uint64) (Outcome, []events.Event, error) {
	target, ok := e.registry.Get(id)
	if !ok {
		return Outcome{}, nil, opError("interact", id, ErrNotFound, "")
	}

	tick := e.clock.CurrentTick()
	due := e.dueAt(tick)
	if due && e.registry.TotalSupply() < 2 {
		return Outcome{}, nil, opError("interact", id, ErrInsufficientPopulation, "evolution due with supply %d", e.registry.TotalSupply())
	}

	count, err := e.registry.Touch(id)
	if err != nil {
		return Outcome{}, nil, opError("interact", id, ErrNotFound, "%v", err)
	}

	ev := events.New(events.Interaction, tick)
	ev.ArtifactID = id
	ev.Generation = target.Generation
	ev.InteractionCount = count
	evs := []events.Event{ev}
	out := Outcome{ArtifactID: id, InteractionCount: count}

	if !due {
		return out, evs, nil
	}

	// Population and cadence were checked above, so this cannot fail on them.
	child, bred, err := e.evolveLocked(tick)
	if err != nil {
		return out, evs, fmt.Errorf("interact: chained evolution: %w", err)
	}
	out.Offspring = child
	return out, append(evs, bred...), nil
}

// Evolve breeds the next generation from the two most popular artifacts.
func (e *Engine) Evolve() (uint64, error) {
	e.mu.Lock()
	id, evs, err := e.evolveLocked(e.clock.CurrentTick())
	ticket := e.ticket(evs)
	e.mu.Unlock()

	e.dispatch(ticket, evs)
	return id, err
}

func (e *Engine) evolveLocked(tick uint64) (uint64, []events.Event, error) {
	if e.registry.TotalSupply() < 2 {
		return 0, nil, opError("evolve", 0, ErrInsufficientPopulation, "supply %d", e.registry.TotalSupply())
	}
	if !e.dueAt(tick) {
		return 0, nil, opError("evolve", 0, ErrCadenceNotReached, "tick %d, next evolution at %d", tick, e.nextEvolutionTick())
	}

	a, b, ok := e.registry.Parents()
	if !ok {
		return 0, nil, opError("evolve", 0, ErrInsufficientPopulation, "no distinct parents")
	}
	pa, _ := e.registry.Get(a)
	pb, _ := e.registry.Get(b)

	id := e.registry.NextID()
	res := breeding.Cross(pa.Genome, pb.Genome, e.entropy.Fresh(id), e.entropy.Fresh(id|mutationDomain), tick)

	child := artifact.Artifact{
		ID:         id,
		Generation: e.currentGeneration + 1,
		BirthTick:  tick,
		Genome:     res.Genome,
		ParentA:    a,
		ParentB:    b,
	}
	if err := e.registry.Insert(child); err != nil {
		return 0, nil, fmt.Errorf("evolve: %w", err)
	}
	e.currentGeneration = child.Generation
	e.lastEvolutionTick = tick

	triggered := events.New(events.EvolutionTriggered, tick)
	triggered.ArtifactID = id
	triggered.Generation = child.Generation
	triggered.ParentA = a
	triggered.ParentB = b

	e.logger.Info("evolution triggered",
		zap.Uint64("artifact_id", id),
		zap.Uint64("generation", child.Generation),
		zap.Uint64("parent_a", a),
		zap.Uint64("parent_b", b),
		zap.Uint64("boost", res.Boost),
		zap.Bool("mutated", res.Mutated),
		zap.Uint64("tick", tick))
	if !child.Genome.InRange() {
		e.logger.Debug("genome drifted past modulus", zap.Uint64("artifact_id", id), zap.Stringer("genome", child.Genome))
	}

	return id, []events.Event{createdEvent(child, res.Mutated), triggered}, nil
}

// CanEvolve reports whether the cadence is due at the current tick.
func (e *Engine) CanEvolve() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dueAt(e.clock.CurrentTick())
}

func (e *Engine) dueAt(tick uint64) bool {
	return tick >= e.nextEvolutionTick()
}

func (e *Engine) nextEvolutionTick() uint64 {
	return e.lastEvolutionTick + e.cfg.Interval
}

// ticket reserves the next delivery slot for evs. Callers hold mu, so
// tickets follow commit order. Operations without events take none.
func (e *Engine) ticket(evs []events.Event) uint64 {
	if len(evs) == 0 {
		return 0
	}
	e.committed++
	return e.committed
}

// dispatch waits for every earlier ticket to be delivered, then hands evs to
// the sink. It runs without mu so sinks can query the engine.
func (e *Engine) dispatch(ticket uint64, evs []events.Event) {
	if ticket == 0 {
		return
	}

	e.deliverMu.Lock()
	for e.turn+1 != ticket {
		e.delivered.Wait()
	}
	e.deliverMu.Unlock()

	defer func() {
		e.deliverMu.Lock()
		e.turn = ticket
		e.delivered.Broadcast()
		e.deliverMu.Unlock()
	}()
	for _, ev := range evs {
		e.sink.HandleEvent(ev)
	}
}

func createdEvent(a artifact.Artifact, mutated bool) events.Event {
	ev := events.New(events.ArtifactCreated, a.BirthTick)
	ev.ArtifactID = a.ID
	ev.Generation = a.Generation
	ev.ParentA = a.ParentA
	ev.ParentB = a.ParentB
	ev.Genome = a.Genome.String()
	ev.Mutated = mutated
	return ev
}
