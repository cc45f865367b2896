package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"morphogen/internal/config"
	"morphogen/internal/entropy"
	"morphogen/internal/events"
	"morphogen/internal/evolution"
	"morphogen/internal/logging"
	"morphogen/internal/store"
)

// session is one CLI invocation's view of the persisted engine.
type session struct {
	cfg    *config.Config
	store  *store.Store
	clock  *entropy.ManualClock
	chain  *entropy.Chain
	engine *evolution.Engine
	outbox *store.Outbox
}

// openSession restores the engine from the database. It fails with
// store.ErrNoState when nothing has been initialized yet.
func openSession(ctx context.Context, c *config.Config) (*session, error) {
	db, err := store.Open(c.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	st, err := db.Load(ctx)
	if err != nil {
		db.Close()
		if errors.Is(err, store.ErrNoState) {
			return nil, fmt.Errorf("%w: run `morphogen init` first", err)
		}
		return nil, err
	}

	clock := entropy.NewManualClock(st.ClockTick)
	chain := entropy.NewChain(st.Salt, clock)
	sink, outbox := sinkFor(c)
	engine, err := evolution.Restore(c.Evolution, clock, chain, st.Snapshot, evolution.WithSink(sink))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("restore %s: %w", c.Storage.DatabasePath, err)
	}
	logging.Get(logging.CategoryBoot).Debug("session restored",
		zap.Uint64("tick", st.ClockTick),
		zap.Int("artifacts", len(st.Snapshot.Artifacts)))
	return &session{cfg: c, store: db, clock: clock, chain: chain, engine: engine, outbox: outbox}, nil
}

// sinkFor fans events out to the audit log and, if enabled, to an outbox
// that the next save journals in the same transaction as the state.
func sinkFor(c *config.Config) (events.Sink, *store.Outbox) {
	sinks := events.Fanout{logging.NewSink(nil)}
	if !c.Storage.JournalEvents {
		return sinks, nil
	}
	outbox := &store.Outbox{}
	return append(sinks, outbox), outbox
}

// save writes the state and any pending events together.
func (s *session) save(ctx context.Context) error {
	var evs []events.Event
	if s.outbox != nil {
		evs = s.outbox.Take()
	}
	return s.store.Commit(ctx, store.State{
		Snapshot:  s.engine.Snapshot(),
		ClockTick: s.clock.CurrentTick(),
		Salt:      s.chain.Salt(),
	}, evs)
}

// reportFault logs an insufficient population after genesis as a
// configuration fault: the seeded registry can never breed.
func reportFault(log *zap.Logger, engine *evolution.Engine, err error) {
	if !errors.Is(err, evolution.ErrInsufficientPopulation) {
		return
	}
	st := engine.Stats()
	if !st.Seeded {
		return
	}
	log.Error("population too small to evolve",
		zap.Uint64("total_supply", st.TotalSupply),
		zap.Int("genesis_count", st.GenesisCount),
		zap.Error(err))
}

func (s *session) close() {
	_ = s.store.Close()
}

// resolveSalt picks the flag value, then the config value, then a fresh one.
func resolveSalt(flag string, c *config.Config) (entropy.Value, error) {
	if flag != "" {
		return entropy.ParseValue(flag)
	}
	if salt, ok, err := c.Salt(); err != nil || ok {
		return salt, err
	}
	salt, err := entropy.NewSalt()
	if err == nil {
		logging.BootWarn("no entropy salt configured, generated %s", salt)
	}
	return salt, err
}
