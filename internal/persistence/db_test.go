package persistence

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/economy"
	"github.com/talgya/market-sim/internal/engine"
)

// holdPrices keeps prices fixed and trades nothing.
type holdPrices struct{}

func (holdPrices) Name() string { return "hold" }

func (holdPrices) UpdatePrice(_ []*agents.Agent, current economy.Basket) (economy.Basket, error) {
	return current, nil
}

func (holdPrices) Distribute(_ []*agents.Agent, _ economy.Basket) economy.Basket {
	return economy.Basket{}
}

func simulatedMarket(t *testing.T) *engine.Market {
	t.Helper()
	pop := []*agents.Agent{
		agents.New(uuid.New(), agents.RoleFarmer, economy.Basket{120, 300, 0, 0, 15}, nil),
		agents.New(uuid.New(), agents.RoleMiner, economy.Basket{120, 0, 0, 0, 22.5}, nil),
		agents.New(uuid.New(), agents.RoleWoodCutter, economy.Basket{9, 0, 0, 0, 15}, nil),
	}
	prices := map[string]float64{"food": 2, "wood": 1.7, "ore": 2, "metal": 7.4, "tool": 18}
	m, err := engine.NewMarket(pop, prices, holdPrices{}, engine.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	if _, err := m.Simulate(context.Background(), 3); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	return m
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := simulatedMarket(t)

	runID, err := db.SaveRun(ctx, m, 99)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := db.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != runID || r.Strategy != "hold" || r.Seed != 99 || r.Days != 3 {
		t.Errorf("run = %+v", r)
	}
	if r.Survivors != 2 || r.Deaths != 1 {
		t.Errorf("survivors %d, deaths %d; want 2, 1", r.Survivors, r.Deaths)
	}

	history, err := db.PriceHistory(ctx, runID)
	if err != nil {
		t.Fatalf("PriceHistory: %v", err)
	}
	for _, c := range economy.Commodities {
		want := m.PriceHistory(c)
		got := history[c.String()]
		if len(got) != len(want) {
			t.Fatalf("%s history length %d, want %d", c, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s day %d: %g, want %g", c, i, got[i], want[i])
			}
		}
	}

	roster, err := db.Roster(ctx, runID)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(roster) != 3 {
		t.Fatalf("roster = %d rows, want 3", len(roster))
	}
	dead := roster[2]
	if dead.Alive || dead.Role != "WoodCutter" || dead.Reason != agents.ReasonStarvation {
		t.Errorf("dead row = %+v", dead)
	}
	var inv map[string]float64
	if err := json.Unmarshal([]byte(roster[0].InventoryJSON), &inv); err != nil {
		t.Fatalf("inventory json: %v", err)
	}
	if inv["food"] != m.Agents[0].Inventory[economy.Food] {
		t.Errorf("archived food %g, want %g", inv["food"], m.Agents[0].Inventory[economy.Food])
	}

	stats, err := db.DayStats(ctx, runID)
	if err != nil {
		t.Fatalf("DayStats: %v", err)
	}
	if len(stats) != 4 {
		t.Fatalf("stats = %d days, want 4", len(stats))
	}
	if stats[3].Alive != 2 || stats[3].Deaths != 1 || stats[3].Prices != m.Stats[3].Prices {
		t.Errorf("day 3 stats = %+v", stats[3])
	}
}

func TestSaveRunKeepsRunsApart(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first, err := db.SaveRun(ctx, simulatedMarket(t), 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.SaveRun(ctx, simulatedMarket(t), 2)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("runs share an id")
	}

	runs, err := db.Runs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}
	roster, err := db.Roster(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 3 {
		t.Errorf("first run roster = %d rows, want 3", len(roster))
	}
}
