package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"morphogen/internal/entropy"
	"morphogen/internal/evolution"
	"morphogen/internal/logging"
	"morphogen/internal/store"
)

// initCmd seeds the genesis generation
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and seed the genesis artifacts",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var interactCmd = &cobra.Command{
	Use:   "interact [id...]",
	Short: "Record one interaction per listed artifact",
	Long: `Records an interaction with each artifact. When the evolution interval
has elapsed, the interaction also breeds the next generation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInteract,
}

var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Breed the next generation if the interval has elapsed",
	Args:  cobra.NoArgs,
	RunE:  runEvolve,
}

var advanceCmd = &cobra.Command{
	Use:   "advance [ticks]",
	Short: "Move the stored clock forward",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdvance,
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	genesis, _ := cmd.Flags().GetInt("genesis")
	saltFlag, _ := cmd.Flags().GetString("salt")
	tick, _ := cmd.Flags().GetUint64("tick")

	db, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Load(ctx); err == nil {
		return fmt.Errorf("%s: %w", cfg.Storage.DatabasePath, evolution.ErrAlreadySeeded)
	} else if !errors.Is(err, store.ErrNoState) {
		return err
	}

	salt, err := resolveSalt(saltFlag, cfg)
	if err != nil {
		return err
	}
	clock := entropy.NewManualClock(tick)
	chain := entropy.NewChain(salt, clock)
	sink, outbox := sinkFor(cfg)
	engine, err := evolution.New(cfg.Evolution, clock, chain, evolution.WithSink(sink))
	if err != nil {
		return err
	}
	ids, err := engine.SeedGenesis(genesis, nil)
	if err != nil {
		return err
	}

	s := &session{cfg: cfg, store: db, clock: clock, chain: chain, engine: engine, outbox: outbox}
	if err := s.save(ctx); err != nil {
		return err
	}
	logging.Boot("initialized %s with %d genesis artifacts", db.Path(), len(ids))

	if writeConfig, _ := cmd.Flags().GetBool("write-config"); writeConfig {
		written := *cfg
		written.Entropy.Salt = salt.String()
		if err := written.Save(configPath); err != nil {
			return err
		}
		logger.Info("config written", zap.String("path", configPath))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Seeded %d genesis artifacts", len(ids))))
	fmt.Fprintln(out, kv("database", db.Path()))
	fmt.Fprintln(out, kv("salt", salt.String()))
	fmt.Fprintln(out, kv("tick", tick))
	fmt.Fprintln(out, kv("next evolution", tick+cfg.Evolution.Interval))
	return nil
}

func runInteract(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	var firstErr error
	for _, id := range ids {
		res, err := s.engine.Interact(id)
		if err != nil {
			reportFault(logging.Get(logging.CategoryEvolution), s.engine, err)
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(out, "#%d interactions=%d\n", res.ArtifactID, res.InteractionCount)
		if res.Offspring != 0 {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("evolution: #%d was born", res.Offspring)))
		}
	}

	if err := s.save(ctx); err != nil {
		return err
	}
	return firstErr
}

func runEvolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	id, err := s.engine.Evolve()
	if err != nil {
		reportFault(logging.Get(logging.CategoryEvolution), s.engine, err)
		if errors.Is(err, evolution.ErrCadenceNotReached) {
			st := s.engine.Stats()
			fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(fmt.Sprintf("dormant: %d ticks until evolution", st.TicksUntilEvolution)))
		}
		return err
	}
	if err := s.save(ctx); err != nil {
		return err
	}
	a, _ := s.engine.Artifact(id)
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("#%d born in generation %d from #%d and #%d", a.ID, a.Generation, a.ParentA, a.ParentB)))
	return nil
}

func runAdvance(cmd *cobra.Command, args []string) error {
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid tick count %q: %w", args[0], err)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	tick := s.clock.Advance(n)
	if err := s.save(ctx); err != nil {
		return err
	}
	st := s.engine.Stats()
	fmt.Fprintln(cmd.OutOrStdout(), kv("tick", tick))
	if st.Due {
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("evolution due"))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), kv("until evolution", st.TicksUntilEvolution))
	}
	return nil
}

func parseIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid artifact id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
