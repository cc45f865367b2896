package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"morphogen/internal/artifact"
	"morphogen/internal/dna"
	"morphogen/internal/entropy"
	"morphogen/internal/events"
	"morphogen/internal/evolution"
	"morphogen/internal/logging"
)

// State is everything needed to resume an engine: its snapshot plus the
// clock position and entropy salt it was running with.
type State struct {
	Snapshot  evolution.Snapshot
	ClockTick uint64
	Salt      entropy.Value
}

// Save replaces the stored state in one transaction.
func (s *Store) Save(ctx context.Context, st State) error {
	return s.Commit(ctx, st, nil)
}

// Commit replaces the stored state and journals evs in one transaction, so
// the journal never holds events for state that was not saved.
func (s *Store) Commit(ctx context.Context, st State, evs []events.Event) error {
	timer := logging.StartTimer(logging.CategoryStore, "save state")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	snap := st.Snapshot
	_, err = tx.ExecContext(ctx, `
		INSERT INTO engine_state (id, seeded, current_generation, last_evolution_tick, clock_tick, salt, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			seeded = excluded.seeded,
			current_generation = excluded.current_generation,
			last_evolution_tick = excluded.last_evolution_tick,
			clock_tick = excluded.clock_tick,
			salt = excluded.salt,
			updated_at = excluded.updated_at`,
		snap.Seeded, int64(snap.CurrentGeneration), int64(snap.LastEvolutionTick), int64(st.ClockTick), st.Salt.String())
	if err != nil {
		return fmt.Errorf("save engine state: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO artifacts (id, generation, birth_tick, genome, interaction_count, parent_a, parent_b, is_genesis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET interaction_count = excluded.interaction_count`)
	if err != nil {
		return fmt.Errorf("prepare artifact upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range snap.Artifacts {
		if _, err := stmt.ExecContext(ctx,
			int64(a.ID), int64(a.Generation), int64(a.BirthTick), a.Genome.String(),
			int64(a.InteractionCount), int64(a.ParentA), int64(a.ParentB), a.IsGenesis,
		); err != nil {
			return fmt.Errorf("save artifact %d: %w", a.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE id > ?`, len(snap.Artifacts)); err != nil {
		return fmt.Errorf("prune artifacts: %w", err)
	}

	for _, ev := range evs {
		if err := appendEvent(ctx, tx, ev); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	logging.StoreDebug("Saved state: %d artifacts, %d events, tick %d", len(snap.Artifacts), len(evs), st.ClockTick)
	return nil
}

// Load reads the stored state, or ErrNoState.
func (s *Store) Load(ctx context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		st              State
		gen, last, tick int64
		salt            string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT seeded, current_generation, last_evolution_tick, clock_tick, salt FROM engine_state WHERE id = 1`,
	).Scan(&st.Snapshot.Seeded, &gen, &last, &tick, &salt)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, ErrNoState
	}
	if err != nil {
		return State{}, fmt.Errorf("load engine state: %w", err)
	}
	st.Snapshot.CurrentGeneration = uint64(gen)
	st.Snapshot.LastEvolutionTick = uint64(last)
	st.ClockTick = uint64(tick)
	if st.Salt, err = entropy.ParseValue(salt); err != nil {
		return State{}, fmt.Errorf("load salt: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generation, birth_tick, genome, interaction_count, parent_a, parent_b, is_genesis
		FROM artifacts ORDER BY id`)
	if err != nil {
		return State{}, fmt.Errorf("load artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a                           artifact.Artifact
			id, g, birth, count, pa, pb int64
			genome                      string
		)
		if err := rows.Scan(&id, &g, &birth, &genome, &count, &pa, &pb, &a.IsGenesis); err != nil {
			return State{}, fmt.Errorf("scan artifact: %w", err)
		}
		if a.Genome, err = dna.Parse(genome); err != nil {
			return State{}, fmt.Errorf("artifact %d genome: %w", id, err)
		}
		a.ID, a.Generation, a.BirthTick = uint64(id), uint64(g), uint64(birth)
		a.InteractionCount, a.ParentA, a.ParentB = uint64(count), uint64(pa), uint64(pb)
		st.Snapshot.Artifacts = append(st.Snapshot.Artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return State{}, fmt.Errorf("iterate artifacts: %w", err)
	}
	return st, nil
}
