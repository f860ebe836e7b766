// Market aggregates: population-level supply, demand and wealth queries
// shared by every clearing strategy.
package engine

import (
	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/economy"
)

// TotalDemand returns the summed shortage of c across the alive population.
func (m *Market) TotalDemand(c economy.Commodity) float64 {
	return agents.TotalDemand(m.Agents, c)
}

// TotalSupply returns the summed surplus of c across the alive population.
func (m *Market) TotalSupply(c economy.Commodity) float64 {
	return agents.TotalSupply(m.Agents, c)
}

// DemandMatrix returns one shortage vector per alive agent.
func (m *Market) DemandMatrix() []economy.Basket {
	return agents.DemandMatrix(m.Agents)
}

// SupplyMatrix returns one surplus vector per alive agent.
func (m *Market) SupplyMatrix() []economy.Basket {
	return agents.SupplyMatrix(m.Agents)
}

// CurrentWealth values an agent's inventory at current prices.
func (m *Market) CurrentWealth(a *agents.Agent) float64 {
	return a.Wealth(m.CurrentPrices())
}

// Wealths returns the current wealth of every alive agent, in roster order.
func (m *Market) Wealths() []float64 {
	prices := m.CurrentPrices()
	w := make([]float64, len(m.Agents))
	for i, a := range m.Agents {
		w[i] = a.Wealth(prices)
	}
	return w
}

// Gini returns the Gini coefficient of the alive population's current wealth.
func (m *Market) Gini() float64 {
	return Gini(m.Wealths())
}
