// Package config handles scenario configuration loading for econsim.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/clearing"
	"github.com/talgya/market-sim/internal/economy"
)

// Strategy names.
const (
	StrategySupplyDemand = "supply-demand"
	StrategyWalrasian    = "walrasian"
)

// ErrInvalid marks a configuration rejected by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config represents a complete simulation scenario.
type Config struct {
	Simulation   SimulationConfig   `mapstructure:"simulation"    yaml:"simulation"`
	Rules        RulesConfig        `mapstructure:"rules"         yaml:"rules"`
	Walrasian    WalrasianConfig    `mapstructure:"walrasian"     yaml:"walrasian"`
	SupplyDemand SupplyDemandConfig `mapstructure:"supply_demand" yaml:"supply_demand"`
	Prices       map[string]float64 `mapstructure:"prices"        yaml:"prices"`
	Population   []CohortConfig     `mapstructure:"population"    yaml:"population"`
	Logging      LoggingConfig      `mapstructure:"logging"       yaml:"logging"`
	Archive      ArchiveConfig      `mapstructure:"archive"       yaml:"archive"`
}

// SimulationConfig holds run control settings.
type SimulationConfig struct {
	Days     int    `mapstructure:"days"     yaml:"days"`     // -1 = until extinction
	MaxDays  int    `mapstructure:"max_days" yaml:"max_days"` // Cap for until-extinction runs
	Seed     int64  `mapstructure:"seed"     yaml:"seed"`     // 0 = random
	Strategy string `mapstructure:"strategy" yaml:"strategy"` // "supply-demand" or "walrasian"
	Workers  int    `mapstructure:"workers"  yaml:"workers"`  // 0 = GOMAXPROCS
}

// RulesConfig holds the production constants.
type RulesConfig struct {
	UnitsPerDay int                     `mapstructure:"units_per_day" yaml:"units_per_day"`
	DailyFood   float64                 `mapstructure:"daily_food"    yaml:"daily_food"`
	Recipes     map[string]RecipeConfig `mapstructure:"recipes"       yaml:"recipes"`
}

// RecipeConfig holds one role's tunable recipe constants.
type RecipeConfig struct {
	ToolWear      float64 `mapstructure:"tool_wear"      yaml:"tool_wear"`
	ToolThreshold float64 `mapstructure:"tool_threshold" yaml:"tool_threshold"`
	InputPerUnit  float64 `mapstructure:"input_per_unit" yaml:"input_per_unit"`
	Yield         float64 `mapstructure:"yield"          yaml:"yield"`
	DegradedYield float64 `mapstructure:"degraded_yield" yaml:"degraded_yield"`
}

// WalrasianConfig holds equilibrium search settings.
type WalrasianConfig struct {
	MaxEvaluations int     `mapstructure:"max_evaluations" yaml:"max_evaluations"`
	Tolerance      float64 `mapstructure:"tolerance"       yaml:"tolerance"`
	SimplexSize    float64 `mapstructure:"simplex_size"    yaml:"simplex_size"`
	MinDemandValue float64 `mapstructure:"min_demand_value" yaml:"min_demand_value"`
}

// SupplyDemandConfig holds heuristic price adaptation settings.
type SupplyDemandConfig struct {
	Epsilon        float64 `mapstructure:"epsilon"          yaml:"epsilon"`
	Sensitivity    float64 `mapstructure:"sensitivity"      yaml:"sensitivity"`
	MaxStep        float64 `mapstructure:"max_step"         yaml:"max_step"`
	MinDemandValue float64 `mapstructure:"min_demand_value" yaml:"min_demand_value"`
}

// CohortConfig describes a batch of identical agents.
type CohortConfig struct {
	Role  string  `mapstructure:"role"  yaml:"role"`
	Count int     `mapstructure:"count" yaml:"count"`
	Food  float64 `mapstructure:"food"  yaml:"food,omitempty"`
	Wood  float64 `mapstructure:"wood"  yaml:"wood,omitempty"`
	Ore   float64 `mapstructure:"ore"   yaml:"ore,omitempty"`
	Metal float64 `mapstructure:"metal" yaml:"metal,omitempty"`
	Tool  float64 `mapstructure:"tool"  yaml:"tool,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// ArchiveConfig holds the results archive settings.
type ArchiveConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // Empty disables the archive
}

// Default returns the reference scenario: 20 agents of each role, 20 days
// under the supply/demand strategy.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults alone always decode.
	_ = v.Unmarshal(&cfg)
	fillScenario(&cfg)
	return &cfg
}

// DefaultPrices returns the reference initial prices.
func DefaultPrices() map[string]float64 {
	return map[string]float64{
		"food":  2.00,
		"wood":  1.70,
		"ore":   2.00,
		"metal": 7.40,
		"tool":  18.00,
	}
}

// DefaultPopulation returns the reference population.
func DefaultPopulation() []CohortConfig {
	return []CohortConfig{
		{Role: "farmer", Count: 20, Food: 120, Wood: 300, Tool: 15},
		{Role: "woodcutter", Count: 20, Food: 120, Tool: 15},
		{Role: "miner", Count: 20, Food: 120, Tool: 22.5},
		{Role: "refiner", Count: 20, Food: 120, Ore: 300, Tool: 15},
		{Role: "blacksmith", Count: 20, Food: 120, Metal: 150},
	}
}

// Load reads the configuration from file and environment variables.
// An empty path searches ./econsim.yaml, then ~/.econsim/econsim.yaml; a
// missing file is not an error.
//
// Environment variables override config file values.
// Format: ECONSIM_<SECTION>_<KEY>, e.g., ECONSIM_SIMULATION_DAYS
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("econsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(homeDir(), ".econsim"))
	}

	v.SetEnvPrefix("ECONSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is fine; use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	fillScenario(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all scalar config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.days", 20)
	v.SetDefault("simulation.max_days", 10000)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.strategy", StrategySupplyDemand)
	v.SetDefault("simulation.workers", 0)

	rules := agents.DefaultRules()
	v.SetDefault("rules.units_per_day", rules.UnitsPerDay)
	v.SetDefault("rules.daily_food", rules.DailyFood)
	for _, role := range agents.Roles {
		rc := rules.Recipes[role]
		key := "rules.recipes." + strings.ToLower(role.String())
		v.SetDefault(key+".tool_wear", rc.ToolWear)
		v.SetDefault(key+".tool_threshold", rc.ToolThreshold)
		v.SetDefault(key+".input_per_unit", rc.InputPerUnit)
		v.SetDefault(key+".yield", rc.Yield)
		v.SetDefault(key+".degraded_yield", rc.DegradedYield)
	}

	w := clearing.DefaultWalrasianConfig()
	v.SetDefault("walrasian.max_evaluations", w.MaxEvaluations)
	v.SetDefault("walrasian.tolerance", w.Tolerance)
	v.SetDefault("walrasian.simplex_size", w.SimplexSize)
	v.SetDefault("walrasian.min_demand_value", w.MinDemandValue)

	sd := clearing.DefaultSupplyDemandConfig()
	v.SetDefault("supply_demand.epsilon", sd.Epsilon)
	v.SetDefault("supply_demand.sensitivity", sd.Sensitivity)
	v.SetDefault("supply_demand.max_step", sd.MaxStep)
	v.SetDefault("supply_demand.min_demand_value", sd.MinDemandValue)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("archive.path", "")
}

// fillScenario supplies the reference prices and population when the
// configuration names none. A partial price mapping is left for Validate to reject.
func fillScenario(cfg *Config) {
	if len(cfg.Prices) == 0 {
		cfg.Prices = DefaultPrices()
	}
	if len(cfg.Population) == 0 {
		cfg.Population = DefaultPopulation()
	}
}

// Validate rejects configurations that would fail before the first day.
func (c *Config) Validate() error {
	if _, err := economy.PricesFromMap(c.Prices); err != nil {
		return fmt.Errorf("%w: prices: %w", ErrInvalid, err)
	}
	if _, err := c.Cohorts(); err != nil {
		return err
	}
	if _, err := c.AgentRules(); err != nil {
		return err
	}
	if _, err := NormalizeStrategy(c.Simulation.Strategy); err != nil {
		return err
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative", ErrInvalid)
	}
	return nil
}

// NormalizeStrategy maps accepted spellings onto a strategy name.
func NormalizeStrategy(name string) (string, error) {
	switch strings.ToLower(strings.NewReplacer("_", "-", " ", "-").Replace(strings.TrimSpace(name))) {
	case "supply-demand", "supplydemand", "":
		return StrategySupplyDemand, nil
	case "walrasian", "walras":
		return StrategyWalrasian, nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalid, name)
}

// Cohorts converts the population section into agent cohorts.
func (c *Config) Cohorts() ([]agents.Cohort, error) {
	cohorts := make([]agents.Cohort, 0, len(c.Population))
	for i, pc := range c.Population {
		role, err := agents.ParseRole(pc.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: population[%d]: %w", ErrInvalid, i, err)
		}
		if pc.Count < 0 {
			return nil, fmt.Errorf("%w: population[%d]: negative count %d", ErrInvalid, i, pc.Count)
		}
		var e economy.Basket
		e[economy.Food] = pc.Food
		e[economy.Wood] = pc.Wood
		e[economy.Ore] = pc.Ore
		e[economy.Metal] = pc.Metal
		e[economy.Tool] = pc.Tool
		for _, com := range economy.Commodities {
			if e[com] < 0 {
				return nil, fmt.Errorf("%w: population[%d]: negative %s endowment", ErrInvalid, i, com)
			}
		}
		cohorts = append(cohorts, agents.Cohort{Role: role, Count: pc.Count, Endowment: e})
	}
	return cohorts, nil
}

// AgentRules builds the production rules, starting from the defaults and
// applying every recipe named in the configuration.
func (c *Config) AgentRules() (*agents.Rules, error) {
	rules := agents.DefaultRules()
	if c.Rules.UnitsPerDay != 0 {
		rules.UnitsPerDay = c.Rules.UnitsPerDay
	}
	if c.Rules.DailyFood != 0 {
		rules.DailyFood = c.Rules.DailyFood
	}

	names := make([]string, 0, len(c.Rules.Recipes))
	for name := range c.Rules.Recipes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		role, err := agents.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("%w: rules.recipes: %w", ErrInvalid, err)
		}
		rc := c.Rules.Recipes[name]
		r := &rules.Recipes[role]
		r.ToolWear = rc.ToolWear
		r.ToolThreshold = rc.ToolThreshold
		r.InputPerUnit = rc.InputPerUnit
		r.Yield = rc.Yield
		r.DegradedYield = rc.DegradedYield
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("%w: rules: %w", ErrInvalid, err)
	}
	return rules, nil
}

// WalrasianSettings converts the walrasian section for the clearing package.
func (c *Config) WalrasianSettings() clearing.WalrasianConfig {
	return clearing.WalrasianConfig{
		MaxEvaluations: c.Walrasian.MaxEvaluations,
		Tolerance:      c.Walrasian.Tolerance,
		SimplexSize:    c.Walrasian.SimplexSize,
		MinDemandValue: c.Walrasian.MinDemandValue,
	}
}

// SupplyDemandSettings converts the supply_demand section for the clearing package.
func (c *Config) SupplyDemandSettings() clearing.SupplyDemandConfig {
	return clearing.SupplyDemandConfig{
		Epsilon:        c.SupplyDemand.Epsilon,
		Sensitivity:    c.SupplyDemand.Sensitivity,
		MaxStep:        c.SupplyDemand.MaxStep,
		MinDemandValue: c.SupplyDemand.MinDemandValue,
	}
}

// Write dumps the configuration as YAML.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
