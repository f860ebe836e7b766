// Role production recipes. Each unit of work converts inputs into the role's
// output, wearing the tool when one is held.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/market-sim/internal/economy"
)

// Recipe describes one role's production per unit of work.
//
// With an input, source = min(held input, InputPerUnit) is consumed and
// Yield·source is produced; without one, Yield is produced outright. When the
// tool charge is below ToolThreshold the degraded branch uses DegradedYield and
// wears nothing. A zero ToolWear means the role needs no tool at all.
type Recipe struct {
	Output        economy.Commodity
	Input         economy.Commodity
	HasInput      bool
	InputPerUnit  float64
	Yield         float64
	DegradedYield float64
	ToolWear      float64
	ToolThreshold float64
}

// UsesTool returns true if the role wears tools when producing.
func (r Recipe) UsesTool() bool {
	return r.ToolWear > 0
}

// Rules holds the economy-wide production constants.
type Rules struct {
	UnitsPerDay int              // Units of work per day
	DailyFood   float64          // Subsistence cost consumed after each day's work
	Recipes     [NumRoles]Recipe // Indexed by Role
}

// DefaultRules returns the reference production constants.
func DefaultRules() *Rules {
	return &Rules{
		UnitsPerDay: 5,
		DailyFood:   8,
		Recipes: [NumRoles]Recipe{
			RoleFarmer: {
				Output: economy.Food, Input: economy.Wood, HasInput: true,
				InputPerUnit: 4, Yield: 1.75, DegradedYield: 1,
				ToolWear: 0.2, ToolThreshold: 0.2,
			},
			RoleWoodCutter: {
				Output: economy.Wood,
				Yield:  4, DegradedYield: 2,
				ToolWear: 0.2, ToolThreshold: 0.2,
			},
			RoleMiner: {
				Output: economy.Ore,
				Yield:  3, DegradedYield: 1,
				ToolWear: 0.3, ToolThreshold: 0.3,
			},
			RoleRefiner: {
				Output: economy.Metal, Input: economy.Ore, HasInput: true,
				InputPerUnit: 4, Yield: 0.5, DegradedYield: 0.25,
				ToolWear: 0.2, ToolThreshold: 0.2,
			},
			RoleBlacksmith: {
				Output: economy.Tool, Input: economy.Metal, HasInput: true,
				InputPerUnit: 1.2, Yield: 0.68, DegradedYield: 0.68,
			},
		},
	}
}

// Validate checks the rules for values that would break production.
func (r *Rules) Validate() error {
	if r.UnitsPerDay <= 0 {
		return fmt.Errorf("units per day must be positive, got %d", r.UnitsPerDay)
	}
	if r.DailyFood < 0 {
		return fmt.Errorf("daily food must be non-negative, got %g", r.DailyFood)
	}
	for _, role := range Roles {
		rc := r.Recipes[role]
		if rc.InputPerUnit < 0 || rc.Yield < 0 || rc.DegradedYield < 0 || rc.ToolWear < 0 || rc.ToolThreshold < 0 {
			return fmt.Errorf("%s recipe: negative constant", role)
		}
		if rc.UsesTool() && rc.ToolThreshold < rc.ToolWear {
			return fmt.Errorf("%s recipe: tool threshold %g below wear %g", role, rc.ToolThreshold, rc.ToolWear)
		}
	}
	return nil
}

// ErrStarving is returned by Work when the agent cannot pay the daily food cost.
var ErrStarving = errors.New("insufficient food for subsistence")

// UnitWork runs one unit of production. Inputs are clamped to what is held,
// so a short stock yields proportionally less rather than a negative balance.
func (a *Agent) UnitWork() {
	produce(a.Recipe(), &a.Inventory)
}

// produce applies one unit of a recipe to an inventory.
func produce(rc Recipe, inv *economy.Basket) {
	yield := rc.Yield
	if rc.UsesTool() {
		if inv[economy.Tool] >= rc.ToolThreshold {
			inv.Take(economy.Tool, rc.ToolWear)
		} else {
			yield = rc.DegradedYield
		}
	}

	if !rc.HasInput {
		inv.Add(rc.Output, yield)
		return
	}

	source := inv.Take(rc.Input, rc.InputPerUnit)
	inv.Add(rc.Output, yield*source)
}

// Work runs a full day: UnitsPerDay units of production followed by the
// subsistence cost. Returns ErrStarving, without consuming, if food is short
// after production. The market filters starving agents before calling Work.
func (a *Agent) Work() error {
	for i := 0; i < a.rules.UnitsPerDay; i++ {
		a.UnitWork()
	}
	if a.Starving() {
		return fmt.Errorf("%s: %w (held %.3f, need %.3f)",
			a, ErrStarving, a.Inventory[economy.Food], a.rules.DailyFood)
	}
	a.Inventory.Take(economy.Food, a.rules.DailyFood)
	return nil
}
