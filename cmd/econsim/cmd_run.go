package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/clearing"
	"github.com/talgya/market-sim/internal/config"
	"github.com/talgya/market-sim/internal/economy"
	"github.com/talgya/market-sim/internal/engine"
	"github.com/talgya/market-sim/internal/entropy"
	"github.com/talgya/market-sim/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation scenario",
		Long: `Run simulates the configured population for the given number of days
(-1 runs until extinction) and prints the final prices and inequality.
With --db, the price history, wealth series, roster and daily statistics
are archived to a SQLite file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}

			logger := newLogger(cfg.Logging, os.Stdout)
			slog.SetDefault(logger)

			m, seed, err := buildMarket(cfg, logger)
			if err != nil {
				return err
			}
			slog.Info("market ready",
				"agents", len(m.Agents),
				"strategy", m.Strategy.Name(),
				"seed", seed,
				"days", cfg.Simulation.Days,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ran, simErr := m.Simulate(ctx, cfg.Simulation.Days)
			if simErr != nil {
				slog.Warn("simulation interrupted", "days", ran, "error", simErr)
			}

			printSummary(cmd.OutOrStdout(), m)

			if cfg.Archive.Path != "" {
				if err := archive(context.Background(), cfg.Archive.Path, m, seed); err != nil {
					return err
				}
			}
			return simErr
		},
	}

	cmd.Flags().Int("days", 0, "Days to simulate (-1 = until extinction)")
	cmd.Flags().String("strategy", "", "Clearing strategy: supply-demand or walrasian")
	cmd.Flags().Int64("seed", 0, "Random seed (0 = random)")
	cmd.Flags().Int("workers", 0, "Production parallelism (0 = GOMAXPROCS)")
	cmd.Flags().String("db", "", "Archive the run to this SQLite file")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	return cmd
}

// applyRunFlags overrides configuration values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("days") {
		cfg.Simulation.Days, _ = flags.GetInt("days")
	}
	if flags.Changed("strategy") {
		cfg.Simulation.Strategy, _ = flags.GetString("strategy")
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("workers") {
		cfg.Simulation.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("db") {
		cfg.Archive.Path, _ = flags.GetString("db")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	return cfg.Validate()
}

// buildMarket spawns the configured population and wires the strategy.
// Returns the seed actually used.
func buildMarket(cfg *config.Config, logger *slog.Logger) (*engine.Market, int64, error) {
	rules, err := cfg.AgentRules()
	if err != nil {
		return nil, 0, err
	}
	cohorts, err := cfg.Cohorts()
	if err != nil {
		return nil, 0, err
	}

	seed := entropy.Seed(cfg.Simulation.Seed)
	spawner := agents.NewSpawner(entropy.New(seed, entropy.StreamSpawner), rules)
	pop := spawner.SpawnPopulation(cohorts)

	strategy, err := newStrategy(cfg, entropy.New(seed, entropy.StreamClearing), logger)
	if err != nil {
		return nil, 0, err
	}

	m, err := engine.NewMarket(pop, cfg.Prices, strategy, engine.Options{
		Workers: cfg.Simulation.Workers,
		MaxDays: cfg.Simulation.MaxDays,
		Logger:  logger,
	})
	if err != nil {
		return nil, 0, err
	}
	return m, seed, nil
}

func newStrategy(cfg *config.Config, rng *rand.Rand, logger *slog.Logger) (engine.Strategy, error) {
	name, err := config.NormalizeStrategy(cfg.Simulation.Strategy)
	if err != nil {
		return nil, err
	}
	switch name {
	case config.StrategyWalrasian:
		return clearing.NewWalrasian(cfg.WalrasianSettings(), logger), nil
	default:
		return clearing.NewSupplyDemand(cfg.SupplyDemandSettings(), rng, logger), nil
	}
}

// newLogger builds the process logger from the logging section.
func newLogger(lc config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLevel maps a level name to a slog.Level. Unknown values default to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printSummary(w io.Writer, m *engine.Market) {
	prices := m.CurrentPrices()
	fmt.Fprintf(w, "\nSimulated %d days under %s: %d alive, %d dead, gini %.4f\n",
		m.Day, m.Strategy.Name(), len(m.Agents), len(m.Dead), m.Gini())
	for _, c := range economy.Commodities {
		h := m.PriceHistory(c)
		fmt.Fprintf(w, "  %-5s %8.3f -> %8.3f\n", c, h[0], prices[c])
	}
}

func archive(ctx context.Context, path string, m *engine.Market, seed int64) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	runID, err := db.SaveRun(ctx, m, seed)
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	fmt.Printf("Run archived as %s in %s\n", runID, path)
	return nil
}
