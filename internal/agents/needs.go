package agents

import (
	"github.com/talgya/market-sim/internal/economy"
)

// Shortage returns the quantities the agent wants to acquire: its food
// shortfall against the subsistence cost (unless food is its own output), a
// day's worth of its input, and a day's worth of tool wear.
// Pure function of the current inventory.
func (a *Agent) Shortage() economy.Basket {
	var s economy.Basket
	rc := a.Recipe()
	inv := &a.Inventory
	days := float64(a.rules.UnitsPerDay)

	if rc.Output != economy.Food {
		s[economy.Food] = floor0(a.rules.DailyFood - inv[economy.Food])
	}
	if rc.HasInput {
		s[rc.Input] = floor0(rc.InputPerUnit*days - inv[rc.Input])
	}
	if rc.UsesTool() {
		s[economy.Tool] = floor0(rc.ToolWear*days - inv[economy.Tool])
	}
	// Never short of what it makes.
	s[rc.Output] = 0
	return s
}

// Surplus returns the quantities the agent is willing to sell: its own output
// only. Food producers hold back the subsistence reserve.
func (a *Agent) Surplus() economy.Basket {
	var s economy.Basket
	rc := a.Recipe()
	reserve := 0.0
	if rc.Output == economy.Food {
		reserve = a.rules.DailyFood
	}
	s[rc.Output] = floor0(a.Inventory[rc.Output] - reserve)
	return s
}

func floor0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
