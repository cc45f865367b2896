package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"morphogen/internal/api"
	"morphogen/internal/config"
	"morphogen/internal/entropy"
	"morphogen/internal/events"
	"morphogen/internal/evolution"
	"morphogen/internal/logging"
	"morphogen/internal/metrics"
	"morphogen/internal/store"
)

// serveCmd hosts the engine over HTTP with a wall-clock tick source
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP",
	Long: `Restores the engine from the database and serves the HTTP API. Ticks
advance with wall time (entropy.tick_duration per tick) starting from the
stored tick. State is checkpointed after every mutation, periodically, and
on shutdown. Log level changes in the config file apply without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = cfg.Server.Listen
	}

	db, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := db.Load(ctx)
	if errors.Is(err, store.ErrNoState) {
		return fmt.Errorf("%w: run `morphogen init` first", err)
	}
	if err != nil {
		return err
	}

	clock := entropy.NewTickerClock(st.ClockTick, cfg.GetTickDuration())
	chain := entropy.NewChain(st.Salt, clock)
	collector := metrics.NewCollector("morphogen")
	sink, outbox := sinkFor(cfg)
	engine, err := evolution.Restore(cfg.Evolution, clock, chain, st.Snapshot,
		evolution.WithSink(events.Fanout{collector, sink}))
	if err != nil {
		return err
	}
	collector.Observe(engine.Stats())

	var saveMu sync.Mutex
	persist := func(ctx context.Context) error {
		saveMu.Lock()
		defer saveMu.Unlock()

		// Events are delivered after their operation commits, so taking them
		// before the snapshot keeps the journal from running ahead of the state.
		var evs []events.Event
		if outbox != nil {
			evs = outbox.Take()
		}
		err := db.Commit(ctx, store.State{
			Snapshot:  engine.Snapshot(),
			ClockTick: clock.CurrentTick(),
			Salt:      chain.Salt(),
		}, evs)
		if err != nil && outbox != nil {
			outbox.Requeue(evs)
		}
		return err
	}

	srv := api.NewServer(engine,
		api.WithMetrics(collector),
		api.WithPersister(persist),
		api.WithJournal(db),
		api.WithVersion(cfg.Version),
	)
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.GetReadTimeout(),
	}

	if _, err := os.Stat(configPath); err == nil {
		watcher, err := config.NewWatcher(configPath, func(c *config.Config) {
			if err := logging.SetLevel(c.Logging.Level); err != nil {
				logger.Warn("ignoring log level", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	log := logging.Get(logging.CategoryAPI)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.API("listening on %s at tick %d (%s per tick)", listen, clock.CurrentTick(), clock.Step())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.GetPersistInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := persist(gctx); err != nil {
					logging.StoreError("checkpoint failed: %v", err)
					continue
				}
				logging.APIDebug("checkpoint at tick %d", clock.CurrentTick())
			}
		}
	})

	err = g.Wait()
	if perr := persist(context.Background()); perr != nil {
		log.Error("final checkpoint failed", zap.Error(perr))
		if err == nil {
			err = perr
		}
	}
	log.Info("stopped", zap.Uint64("tick", clock.CurrentTick()), zap.Uint64("artifacts", engine.TotalSupply()))
	return err
}
