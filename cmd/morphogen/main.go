package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"morphogen/internal/config"
	"morphogen/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "morphogen",
	Short: "morphogen - interaction-driven generative artifacts",
	Long: `morphogen keeps a registry of generative artifacts whose DNA is derived
from a deterministic entropy chain. Every interaction is a vote of fitness;
once per evolution interval the two most popular artifacts breed a child.

State lives in a SQLite database. Commands that change state save it back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Storage.DatabasePath = dbPath
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := logging.Initialize(cfg.Logging.Options()); err != nil {
			return err
		}
		logger = logging.Get(logging.CategoryBoot)
		logger.Debug("config loaded", zap.String("path", configPath), zap.String("database", cfg.Storage.DatabasePath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "morphogen.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "State database (or set MORPHOGEN_DB)")

	initCmd.Flags().Int("genesis", 10, "Number of genesis artifacts")
	initCmd.Flags().String("salt", "", "Entropy salt as 32-byte hex (default: config or random)")
	initCmd.Flags().Uint64("tick", 0, "Starting tick")
	initCmd.Flags().Bool("write-config", false, "Write the effective config, including the salt, to --config")
	lineageCmd.Flags().Bool("json", false, "Print JSON")
	showCmd.Flags().Bool("json", false, "Print JSON")
	propsCmd.Flags().Bool("metadata", false, "Print the full metadata document")
	eventsCmd.Flags().Int("limit", 20, "Most recent events to show")

	simulateCmd.Flags().Int("genesis", 10, "Number of genesis artifacts")
	simulateCmd.Flags().Int("rounds", 5, "Evolution cycles to run")
	simulateCmd.Flags().Int("workers", 4, "Concurrent interactors per round")
	simulateCmd.Flags().Int("interactions", 25, "Interactions per worker per round")
	simulateCmd.Flags().String("salt", "", "Entropy salt as 32-byte hex (default: random)")

	serveCmd.Flags().String("listen", "", "Listen address (default: config server.listen)")

	// Add commands to root
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(interactCmd)
	rootCmd.AddCommand(evolveCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(propsCmd)
	rootCmd.AddCommand(lineageCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
