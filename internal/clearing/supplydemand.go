// Package clearing provides the market-clearing strategies the engine
// delegates price setting and redistribution to.
package clearing

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/economy"
)

// SupplyDemandConfig tunes the heuristic price adaptation.
type SupplyDemandConfig struct {
	Epsilon        float64 // Guards the demand/supply ratio against zero supply
	Sensitivity    float64 // Price move per unit of ratio, before the cap
	MaxStep        float64 // Per-day move cap, as a fraction of price
	MinDemandValue float64 // Buyers whose priced shortage is below this are skipped
}

// DefaultSupplyDemandConfig returns the reference tuning.
func DefaultSupplyDemandConfig() SupplyDemandConfig {
	return SupplyDemandConfig{
		Epsilon:        1e-3,
		Sensitivity:    0.1,
		MaxStep:        0.05,
		MinDemandValue: 0.01,
	}
}

// SupplyDemand moves each price toward balance by a capped step and rations
// the collected supply among buyers in a random order.
type SupplyDemand struct {
	cfg SupplyDemandConfig
	rng *rand.Rand
	log *slog.Logger
}

// NewSupplyDemand creates the strategy. rng drives the buyer order and must be
// non-nil; seed it for reproducible runs. A nil logger uses slog.Default().
func NewSupplyDemand(cfg SupplyDemandConfig, rng *rand.Rand, logger *slog.Logger) *SupplyDemand {
	if logger == nil {
		logger = slog.Default()
	}
	return &SupplyDemand{cfg: cfg, rng: rng, log: logger}
}

func (s *SupplyDemand) Name() string { return "supply-demand" }

// UpdatePrice raises a price when demand exceeds supply and lowers it
// otherwise. The move is min(price·ratio·sensitivity, price·max step), so no
// price changes by more than the cap in one day whatever the imbalance.
func (s *SupplyDemand) UpdatePrice(pop []*agents.Agent, current economy.Basket) (economy.Basket, error) {
	demand := agents.AggregateDemand(pop)
	supply := agents.AggregateSupply(pop)

	var next economy.Basket
	for _, c := range economy.Commodities {
		p := current[c]
		ratio := (demand[c] + s.cfg.Epsilon) / (supply[c] + s.cfg.Epsilon)
		step := math.Min(p*ratio*s.cfg.Sensitivity, p*s.cfg.MaxStep)
		if ratio > 1 {
			next[c] = p + step
		} else {
			next[c] = p - step
		}
	}
	return next, nil
}

// Distribute collects every agent's surplus, credits each seller with its
// value, then lets agents in shuffled order spend that value on their
// shortages, proportionally across commodities and capped by what is left in
// the pool. Buyers never take more than their shortage. Stock left unsold is
// returned to its sellers pro rata.
func (s *SupplyDemand) Distribute(pop []*agents.Agent, prices economy.Basket) economy.Basket {
	taken := agents.TakeSupply(pop)

	var pool, collected economy.Basket
	earned := make([]float64, len(pop))
	for i, t := range taken {
		earned[i] = t.Dot(prices)
		for c := range pool {
			pool[c] += t[c]
		}
	}
	collected = pool

	var volume economy.Basket
	for _, i := range s.rng.Perm(len(pop)) {
		a := pop[i]
		short := a.Shortage()
		value := short.Dot(prices)
		if value < s.cfg.MinDemandValue {
			if !short.IsZero() {
				s.log.Debug("degenerate demand, skipping buyer", "agent", a.ID, "role", a.Role, "value", value)
			}
			continue
		}

		frac := earned[i] / value
		if frac > 1 {
			frac = 1
		}
		if frac <= 0 {
			continue
		}

		for _, c := range economy.Commodities {
			got := math.Min(short[c]*frac, pool[c])
			if got <= 0 {
				continue
			}
			pool[c] -= got
			a.Inventory.Add(c, got)
			volume[c] += got
		}
	}

	for _, c := range economy.Commodities {
		if pool[c] <= 0 || collected[c] <= 0 {
			continue
		}
		for i, a := range pop {
			a.Inventory.Add(c, pool[c]*taken[i][c]/collected[c])
		}
	}

	return volume
}
