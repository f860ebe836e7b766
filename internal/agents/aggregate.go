package agents

import (
	"github.com/talgya/market-sim/internal/economy"
)

// TotalDemand sums every agent's shortage of c.
func TotalDemand(pop []*Agent, c economy.Commodity) float64 {
	total := 0.0
	for _, a := range pop {
		s := a.Shortage()
		total += s[c]
	}
	return total
}

// TotalSupply sums every agent's surplus of c.
func TotalSupply(pop []*Agent, c economy.Commodity) float64 {
	total := 0.0
	for _, a := range pop {
		s := a.Surplus()
		total += s[c]
	}
	return total
}

// AggregateDemand returns total shortage per commodity in one pass.
func AggregateDemand(pop []*Agent) economy.Basket {
	var total economy.Basket
	for _, a := range pop {
		s := a.Shortage()
		for c := range total {
			total[c] += s[c]
		}
	}
	return total
}

// AggregateSupply returns total surplus per commodity in one pass.
func AggregateSupply(pop []*Agent) economy.Basket {
	var total economy.Basket
	for _, a := range pop {
		s := a.Surplus()
		for c := range total {
			total[c] += s[c]
		}
	}
	return total
}

// DemandMatrix returns one shortage vector per agent, in population order.
func DemandMatrix(pop []*Agent) []economy.Basket {
	m := make([]economy.Basket, len(pop))
	for i, a := range pop {
		m[i] = a.Shortage()
	}
	return m
}

// SupplyMatrix returns one surplus vector per agent, in population order.
func SupplyMatrix(pop []*Agent) []economy.Basket {
	m := make([]economy.Basket, len(pop))
	for i, a := range pop {
		m[i] = a.Surplus()
	}
	return m
}

// TakeSupply removes each agent's surplus from its inventory and returns the
// vectors actually removed, in population order.
func TakeSupply(pop []*Agent) []economy.Basket {
	taken := make([]economy.Basket, len(pop))
	for i, a := range pop {
		s := a.Surplus()
		for _, c := range economy.Commodities {
			taken[i][c] = a.Inventory.Take(c, s[c])
		}
	}
	return taken
}
