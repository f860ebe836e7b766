package agents

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/market-sim/internal/economy"
)

const tol = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < tol
}

func basket(food, wood, ore, metal, tool float64) economy.Basket {
	return economy.Basket{food, wood, ore, metal, tool}
}

func TestUnitWork(t *testing.T) {
	tests := []struct {
		name string
		role Role
		inv  economy.Basket
		want economy.Basket
	}{
		{"farmer with tool", RoleFarmer, basket(120, 300, 0, 0, 15), basket(127, 296, 0, 0, 14.8)},
		{"farmer without tool", RoleFarmer, basket(120, 300, 0, 0, 0.1), basket(124, 296, 0, 0, 0.1)},
		{"farmer short of wood", RoleFarmer, basket(10, 2, 0, 0, 15), basket(13.5, 0, 0, 0, 14.8)},
		{"farmer no wood", RoleFarmer, basket(10, 0, 0, 0, 15), basket(10, 0, 0, 0, 14.8)},
		{"woodcutter with tool", RoleWoodCutter, basket(120, 0, 0, 0, 15), basket(120, 4, 0, 0, 14.8)},
		{"woodcutter without tool", RoleWoodCutter, basket(120, 0, 0, 0, 0), basket(120, 2, 0, 0, 0)},
		{"miner with tool", RoleMiner, basket(120, 0, 0, 0, 22.5), basket(120, 0, 3, 0, 22.2)},
		{"miner below threshold", RoleMiner, basket(120, 0, 0, 0, 0.29), basket(120, 0, 1, 0, 0.29)},
		{"refiner with tool", RoleRefiner, basket(120, 0, 300, 0, 15), basket(120, 0, 296, 2, 14.8)},
		{"refiner without tool", RoleRefiner, basket(120, 0, 300, 0, 0), basket(120, 0, 296, 1, 0)},
		{"refiner short of ore", RoleRefiner, basket(120, 0, 2, 0, 15), basket(120, 0, 0, 1, 14.8)},
		{"blacksmith", RoleBlacksmith, basket(120, 0, 0, 150, 0), basket(120, 0, 0, 148.8, 0.816)},
		{"blacksmith short of metal", RoleBlacksmith, basket(120, 0, 0, 1, 0), basket(120, 0, 0, 0, 0.68)},
		{"blacksmith ignores tools", RoleBlacksmith, basket(120, 0, 0, 10, 5), basket(120, 0, 0, 8.8, 5.816)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(AgentID{}, tt.role, tt.inv, nil)
			a.UnitWork()
			for _, c := range economy.Commodities {
				if !approx(a.Inventory[c], tt.want[c]) {
					t.Errorf("%s = %g, want %g", c, a.Inventory[c], tt.want[c])
				}
			}
		})
	}
}

func TestUnitWorkToolThresholdBoundary(t *testing.T) {
	rules := DefaultRules()
	rules.Recipes[RoleWoodCutter].ToolWear = 0.25
	rules.Recipes[RoleWoodCutter].ToolThreshold = 0.5

	at := New(AgentID{}, RoleWoodCutter, basket(0, 0, 0, 0, 0.5), rules)
	at.UnitWork()
	if !approx(at.Inventory[economy.Wood], 4) || !approx(at.Inventory[economy.Tool], 0.25) {
		t.Errorf("at threshold: wood %g tool %g, want 4 and 0.25", at.Inventory[economy.Wood], at.Inventory[economy.Tool])
	}

	below := New(AgentID{}, RoleWoodCutter, basket(0, 0, 0, 0, 0.49), rules)
	below.UnitWork()
	if !approx(below.Inventory[economy.Wood], 2) || !approx(below.Inventory[economy.Tool], 0.49) {
		t.Errorf("below threshold: wood %g tool %g, want 2 and 0.49", below.Inventory[economy.Wood], below.Inventory[economy.Tool])
	}
}

func TestWorkRunsFullDay(t *testing.T) {
	a := New(AgentID{}, RoleFarmer, basket(120, 300, 0, 0, 15), nil)
	if err := a.Work(); err != nil {
		t.Fatalf("Work: %v", err)
	}
	// 5 units × 7 food − 8 subsistence.
	if !approx(a.Inventory[economy.Food], 147) {
		t.Errorf("food = %g, want 147", a.Inventory[economy.Food])
	}
	if !approx(a.Inventory[economy.Wood], 280) {
		t.Errorf("wood = %g, want 280", a.Inventory[economy.Wood])
	}
	if !approx(a.Inventory[economy.Tool], 14) {
		t.Errorf("tool = %g, want 14", a.Inventory[economy.Tool])
	}
}

func TestWorkStarving(t *testing.T) {
	a := New(AgentID{}, RoleMiner, basket(5, 0, 0, 0, 22.5), nil)
	err := a.Work()
	if !errors.Is(err, ErrStarving) {
		t.Fatalf("err = %v, want ErrStarving", err)
	}
	if a.Inventory[economy.Food] != 5 {
		t.Errorf("food consumed on failure: %g", a.Inventory[economy.Food])
	}
	// Production still happened.
	if !approx(a.Inventory[economy.Ore], 15) {
		t.Errorf("ore = %g, want 15", a.Inventory[economy.Ore])
	}
}

func TestWorkNeverNegative(t *testing.T) {
	for _, role := range Roles {
		a := New(AgentID{}, role, basket(1000, 0.3, 0.7, 0.1, 0.21), nil)
		for day := 0; day < 50; day++ {
			if err := a.Work(); err != nil {
				t.Fatalf("%s day %d: %v", role, day, err)
			}
			for _, c := range economy.Commodities {
				if a.Inventory[c] < 0 {
					t.Fatalf("%s day %d: %s = %g", role, day, c, a.Inventory[c])
				}
			}
		}
	}
}

func TestRulesValidate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}

	r := DefaultRules()
	r.UnitsPerDay = 0
	if err := r.Validate(); err == nil {
		t.Error("expected error for zero units per day")
	}

	r = DefaultRules()
	r.Recipes[RoleMiner].ToolThreshold = 0.1
	if err := r.Validate(); err == nil {
		t.Error("expected error for threshold below wear")
	}
}

func TestDieIsFinal(t *testing.T) {
	a := New(AgentID{}, RoleMiner, basket(0, 0, 0, 0, 0), nil)
	a.Die(3, ReasonStarvation)
	a.Die(5, "other")
	if a.Alive || a.DeathReason != ReasonStarvation || a.DiedOnDay != 3 {
		t.Errorf("agent = %+v, want dead of starvation on day 3", a)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"farmer", RoleFarmer},
		{"WoodCutter", RoleWoodCutter},
		{"wood_cutter", RoleWoodCutter},
		{"miner", RoleMiner},
		{"Refiner", RoleRefiner},
		{"black-smith", RoleBlacksmith},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseRole(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseRole("baker"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}
