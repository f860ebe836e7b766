// Package engine provides the day-stepped market simulation: the alive
// roster, price history, production phase and pluggable clearing.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/economy"
)

// Strategy sets prices and redistributes commodities once per day.
// The Market never knows which concrete strategy it runs.
type Strategy interface {
	// Name identifies the strategy in logs and archives.
	Name() string

	// UpdatePrice returns the next price vector. On a recoverable failure it
	// returns the prices to use anyway (normally current) with a non-nil error.
	UpdatePrice(pop []*agents.Agent, current economy.Basket) (economy.Basket, error)

	// Distribute takes supply from the population and credits buyers.
	// Returns the quantity of each commodity handed to buyers.
	Distribute(pop []*agents.Agent, prices economy.Basket) economy.Basket
}

var (
	ErrNoStrategy = errors.New("no clearing strategy")
	ErrNilAgent   = errors.New("nil agent")
)

// DefaultMaxDays caps runs that continue until extinction.
const DefaultMaxDays = 10000

// Options tunes a Market. The zero value is usable.
type Options struct {
	Workers int          // Production parallelism, 0 = GOMAXPROCS
	MaxDays int          // Cap for until-extinction runs, 0 = DefaultMaxDays
	Logger  *slog.Logger // nil = slog.Default()
}

// Market owns the population and the price history, and drives the daily loop.
type Market struct {
	Agents   []*agents.Agent // Alive, in construction order
	Dead     []*agents.Agent // Removed agents, frozen at death
	Strategy Strategy
	Day      int     // Days simulated so far
	Events   []Event // Deaths and clearing warnings

	// Stats holds one entry per day, starting with day 0 at construction.
	Stats []DayStats

	// OnDay is called after each simulated day, if set.
	OnDay func(DayStats)

	prices  [economy.NumCommodities][]float64
	wealth  []WealthSnapshot
	workers int
	maxDays int
	log     *slog.Logger
}

// Event is a notable occurrence in the market.
type Event struct {
	Day         int            `json:"day"`
	AgentID     agents.AgentID `json:"agent_id,omitempty"`
	Role        string         `json:"role,omitempty"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "death", "warning"
}

// WealthSnapshot is every alive agent's wealth at the end of a day.
type WealthSnapshot struct {
	Day    int                        `json:"day"`
	Wealth map[agents.AgentID]float64 `json:"wealth"`
}

// RosterEntry describes one agent, alive or dead.
type RosterEntry struct {
	ID        agents.AgentID `json:"id"`
	Role      agents.Role    `json:"role"`
	Alive     bool           `json:"alive"`
	Reason    string         `json:"reason,omitempty"`
	DiedOnDay int            `json:"died_on_day,omitempty"`
	Inventory economy.Basket `json:"inventory"`
}

// NewMarket creates a market over the given agents. The price mapping must
// name exactly the five commodities; malformed input is rejected here, before
// any day runs.
func NewMarket(pop []*agents.Agent, prices map[string]float64, strategy Strategy, opts Options) (*Market, error) {
	p, err := economy.PricesFromMap(prices)
	if err != nil {
		return nil, fmt.Errorf("initial prices: %w", err)
	}
	if strategy == nil {
		return nil, ErrNoStrategy
	}

	m := &Market{
		Strategy: strategy,
		workers:  opts.Workers,
		maxDays:  opts.MaxDays,
		log:      opts.Logger,
	}
	if m.workers <= 0 {
		m.workers = runtime.GOMAXPROCS(0)
	}
	if m.maxDays <= 0 {
		m.maxDays = DefaultMaxDays
	}
	if m.log == nil {
		m.log = slog.Default()
	}

	for i, a := range pop {
		if a == nil {
			return nil, fmt.Errorf("agent %d: %w", i, ErrNilAgent)
		}
		if a.Alive {
			m.Agents = append(m.Agents, a)
		} else {
			m.Dead = append(m.Dead, a)
		}
	}

	for _, c := range economy.Commodities {
		m.prices[c] = []float64{p[c]}
	}

	m.recordDay(economy.Basket{}, 0)
	return m, nil
}

// CurrentPrices returns the latest price of every commodity.
func (m *Market) CurrentPrices() economy.Basket {
	var p economy.Basket
	for _, c := range economy.Commodities {
		h := m.prices[c]
		p[c] = h[len(h)-1]
	}
	return p
}

// CurrentPrice returns the latest price of c.
func (m *Market) CurrentPrice(c economy.Commodity) float64 {
	h := m.prices[c]
	return h[len(h)-1]
}

// PriceHistory returns a copy of c's price history: the seed price followed
// by one entry per simulated day.
func (m *Market) PriceHistory(c economy.Commodity) []float64 {
	out := make([]float64, len(m.prices[c]))
	copy(out, m.prices[c])
	return out
}

// PriceHistories returns a copy of every commodity's price history, keyed by name.
func (m *Market) PriceHistories() map[string][]float64 {
	out := make(map[string][]float64, economy.NumCommodities)
	for _, c := range economy.Commodities {
		out[c.String()] = m.PriceHistory(c)
	}
	return out
}

// WealthSeries returns a copy of the per-day wealth snapshots, day 0 first.
func (m *Market) WealthSeries() []WealthSnapshot {
	out := make([]WealthSnapshot, len(m.wealth))
	for i, snap := range m.wealth {
		w := make(map[agents.AgentID]float64, len(snap.Wealth))
		for id, v := range snap.Wealth {
			w[id] = v
		}
		out[i] = WealthSnapshot{Day: snap.Day, Wealth: w}
	}
	return out
}

// Roster returns every agent, alive first, then dead in order of death.
func (m *Market) Roster() []RosterEntry {
	out := make([]RosterEntry, 0, len(m.Agents)+len(m.Dead))
	for _, a := range m.Agents {
		out = append(out, rosterEntry(a))
	}
	for _, a := range m.Dead {
		out = append(out, rosterEntry(a))
	}
	return out
}

func rosterEntry(a *agents.Agent) RosterEntry {
	return RosterEntry{
		ID:        a.ID,
		Role:      a.Role,
		Alive:     a.Alive,
		Reason:    a.DeathReason,
		DiedOnDay: a.DiedOnDay,
		Inventory: a.Inventory,
	}
}
