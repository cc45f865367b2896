package main

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"morphogen/internal/entropy"
	"morphogen/internal/events"
	"morphogen/internal/evolution"
	"morphogen/internal/logging"
)

// simulateCmd runs an in-memory population and never touches the database
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run concurrent interactors through several evolution cycles in memory",
	Long: `Seeds a fresh in-memory registry, then for each round runs a pool of
concurrent interactors whose picks come from the entropy chain, advances
the clock by one interval and evolves. The same salt always yields the same
population.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

// SimulationResult summarizes a simulate run.
type SimulationResult struct {
	Salt         entropy.Value
	Births       []uint64
	Interactions int
	Mutations    int
	Final        evolution.Stats
	Engine       *evolution.Engine
}

// SimulationParams configures simulate.
type SimulationParams struct {
	Genesis      int
	Rounds       int
	Workers      int
	Interactions int
	Salt         entropy.Value
}

func runSimulate(cmd *cobra.Command, args []string) error {
	var p SimulationParams
	p.Genesis, _ = cmd.Flags().GetInt("genesis")
	p.Rounds, _ = cmd.Flags().GetInt("rounds")
	p.Workers, _ = cmd.Flags().GetInt("workers")
	p.Interactions, _ = cmd.Flags().GetInt("interactions")
	saltFlag, _ := cmd.Flags().GetString("salt")

	salt, err := resolveSalt(saltFlag, cfg)
	if err != nil {
		return err
	}
	p.Salt = salt

	res, err := simulate(cmd.Context(), cfg.Evolution, p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Simulation complete"))
	fmt.Fprintln(out, kv("salt", res.Salt.String()))
	fmt.Fprintln(out, kv("interactions", res.Interactions))
	fmt.Fprintln(out, kv("births", len(res.Births)))
	fmt.Fprintln(out, kv("mutations", res.Mutations))
	fmt.Fprintln(out, kv("generation", res.Final.CurrentGeneration))
	fmt.Fprintln(out, kv("artifacts", res.Final.TotalSupply))

	all := res.Engine.Artifacts()
	sort.SliceStable(all, func(i, j int) bool { return all[i].InteractionCount > all[j].InteractionCount })
	if len(all) > 5 {
		all = all[:5]
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("Most popular"))
	fmt.Fprintln(out, artifactTable(all))
	return nil
}

func simulate(ctx context.Context, ecfg evolution.Config, p SimulationParams) (*SimulationResult, error) {
	if p.Rounds < 0 || p.Workers < 1 || p.Interactions < 0 {
		return nil, fmt.Errorf("need rounds >= 0, workers >= 1 and interactions >= 0")
	}

	var interactions, mutations atomic.Int64
	counter := events.SinkFunc(func(ev events.Event) {
		switch {
		case ev.Kind == events.Interaction:
			interactions.Add(1)
		case ev.Kind == events.ArtifactCreated && ev.Mutated:
			mutations.Add(1)
		}
	})

	clock := entropy.NewManualClock(0)
	chain := entropy.NewChain(p.Salt, clock)
	engine, err := evolution.New(ecfg, clock, chain, evolution.WithSink(counter))
	if err != nil {
		return nil, err
	}
	if _, err := engine.SeedGenesis(p.Genesis, nil); err != nil {
		return nil, err
	}

	res := &SimulationResult{Salt: p.Salt, Engine: engine}
	for round := 1; round <= p.Rounds; round++ {
		supply := engine.TotalSupply()
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < p.Workers; w++ {
			w := w
			g.Go(func() error {
				for i := 0; i < p.Interactions; i++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					pick := chain.At(uint64(round), uint64(w)<<32|uint64(i)).Mod(supply) + 1
					if _, err := engine.Interact(pick); err != nil {
						return fmt.Errorf("round %d worker %d: %w", round, w, err)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		clock.Advance(ecfg.Interval)
		id, err := engine.Evolve()
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		res.Births = append(res.Births, id)
		logging.EvolutionDebug("round %d complete: #%d born", round, id)
	}

	res.Interactions = int(interactions.Load())
	res.Mutations = int(mutations.Load())
	res.Final = engine.Stats()
	logging.Evolution("simulation finished: %d rounds, %d interactions, %d births, %d mutations",
		p.Rounds, res.Interactions, len(res.Births), res.Mutations)
	return res, nil
}
