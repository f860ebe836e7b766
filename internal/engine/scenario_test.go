package engine_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/clearing"
	"github.com/talgya/market-sim/internal/config"
	"github.com/talgya/market-sim/internal/economy"
	"github.com/talgya/market-sim/internal/engine"
	"github.com/talgya/market-sim/internal/entropy"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// referenceMarket builds the default 100-agent scenario with a fixed seed.
func referenceMarket(t *testing.T, seed int64, strategy string) *engine.Market {
	t.Helper()
	cfg := config.Default()

	rules, err := cfg.AgentRules()
	if err != nil {
		t.Fatalf("AgentRules: %v", err)
	}
	cohorts, err := cfg.Cohorts()
	if err != nil {
		t.Fatalf("Cohorts: %v", err)
	}
	pop := agents.NewSpawner(entropy.New(seed, entropy.StreamSpawner), rules).SpawnPopulation(cohorts)

	var s engine.Strategy
	switch strategy {
	case config.StrategyWalrasian:
		s = clearing.NewWalrasian(cfg.WalrasianSettings(), quiet)
	default:
		s = clearing.NewSupplyDemand(cfg.SupplyDemandSettings(), entropy.New(seed, entropy.StreamClearing), quiet)
	}

	m, err := engine.NewMarket(pop, cfg.Prices, s, engine.Options{Logger: quiet})
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	return m
}

func checkInvariants(t *testing.T, m *engine.Market) {
	t.Helper()
	for _, c := range economy.Commodities {
		h := m.PriceHistory(c)
		if len(h) != m.Day+1 {
			t.Errorf("%s history length %d at day %d", c, len(h), m.Day)
		}
		for day, p := range h {
			if p < 0 {
				t.Errorf("%s price %g on day %d", c, p, day)
			}
		}
	}
	everyone := make([]*agents.Agent, 0, len(m.Agents)+len(m.Dead))
	everyone = append(everyone, m.Agents...)
	everyone = append(everyone, m.Dead...)
	for _, a := range everyone {
		for _, c := range economy.Commodities {
			if a.Inventory[c] < 0 {
				t.Errorf("%s holds %g %s", a, a.Inventory[c], c)
			}
		}
	}
	for _, a := range m.Agents {
		if a.Inventory[economy.Food] < 8 {
			t.Errorf("survivor %s holds %g food", a, a.Inventory[economy.Food])
		}
	}
	if len(m.Agents)+len(m.Dead) != 100 {
		t.Errorf("alive %d + dead %d != 100", len(m.Agents), len(m.Dead))
	}
}

func TestReferenceScenarioSupplyDemand(t *testing.T) {
	m := referenceMarket(t, 20260101, config.StrategySupplyDemand)

	prevAlive := len(m.Agents)
	m.OnDay = func(ds engine.DayStats) {
		if ds.Alive > prevAlive {
			t.Errorf("day %d: population grew from %d to %d", ds.Day, prevAlive, ds.Alive)
		}
		prevAlive = ds.Alive
		if ds.Gini < 0 || ds.Gini >= 1 {
			t.Errorf("day %d: gini %g out of range", ds.Day, ds.Gini)
		}
	}

	ran, err := m.Simulate(context.Background(), 20)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if ran != 20 || m.Day != 20 {
		t.Fatalf("ran %d days, day %d; want 20", ran, m.Day)
	}
	if len(m.Agents) > 100 {
		t.Errorf("alive = %d", len(m.Agents))
	}
	for _, c := range economy.Commodities {
		if n := len(m.PriceHistory(c)); n != 21 {
			t.Errorf("%s history length %d, want 21", c, n)
		}
	}
	checkInvariants(t, m)
}

func TestReferenceScenarioIsReproducible(t *testing.T) {
	a := referenceMarket(t, 7, config.StrategySupplyDemand)
	b := referenceMarket(t, 7, config.StrategySupplyDemand)
	if _, err := a.Simulate(context.Background(), 20); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Simulate(context.Background(), 20); err != nil {
		t.Fatal(err)
	}

	for _, c := range economy.Commodities {
		ha, hb := a.PriceHistory(c), b.PriceHistory(c)
		for day := range ha {
			if ha[day] != hb[day] {
				t.Fatalf("%s day %d: %g vs %g", c, day, ha[day], hb[day])
			}
		}
	}
	if len(a.Agents) != len(b.Agents) {
		t.Errorf("survivors %d vs %d", len(a.Agents), len(b.Agents))
	}
	for i := range a.Agents {
		if a.Agents[i].ID != b.Agents[i].ID || a.Agents[i].Inventory != b.Agents[i].Inventory {
			t.Fatalf("survivor %d differs between identical seeds", i)
		}
	}
}

func TestReferenceScenarioWalrasian(t *testing.T) {
	if testing.Short() {
		t.Skip("equilibrium search is slow")
	}
	m := referenceMarket(t, 3, config.StrategyWalrasian)

	ran, err := m.Simulate(context.Background(), 5)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if ran != 5 {
		t.Fatalf("ran %d days, want 5", ran)
	}
	checkInvariants(t, m)

	// Every failed search is reported and leaves prices where they were.
	for _, e := range m.Events {
		if e.Category != "warning" {
			continue
		}
		h := m.PriceHistory(economy.Food)
		if h[e.Day] != h[e.Day-1] {
			t.Errorf("day %d: price moved after a failed search", e.Day)
		}
	}
}
