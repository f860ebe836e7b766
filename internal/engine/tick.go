// Daily loop: starvation filter → production → price update → distribution.
package engine

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/economy"
)

// UntilExtinction runs Simulate until the population is empty (or MaxDays).
const UntilExtinction = -1

// Simulate advances the market by up to days days, stopping early when the
// population is empty. A negative day count runs until extinction, capped at
// MaxDays. Returns the number of days simulated by this call.
//
// The context is checked between days; a day once started always completes,
// so the price history stays in step with Day.
func (m *Market) Simulate(ctx context.Context, days int) (int, error) {
	budget := days
	if days < 0 {
		budget = m.maxDays
	}

	ran := 0
	for ran < budget && len(m.Agents) > 0 {
		if err := ctx.Err(); err != nil {
			return ran, fmt.Errorf("day %d: %w", m.Day+1, err)
		}
		m.step(ran+1 == budget)
		ran++
	}

	if ran > 0 && len(m.Agents) == 0 {
		m.log.Info("population extinct", "day", m.Day, "deaths", len(m.Dead))
	}
	return ran, nil
}

// step runs one simulated day. On the last day of a run the starvation filter
// is applied once more after distribution, so no agent ends the run alive
// while holding less than a day's food.
func (m *Market) step(last bool) {
	day := m.Day + 1
	deaths := len(m.Dead)

	// 1. Starvation filter.
	m.reap(day)

	// 2. Production. Strict barrier before the aggregate reads below.
	m.produce(day)

	// 3. Price update.
	current := m.CurrentPrices()
	next := current
	if len(m.Agents) > 0 {
		next = m.updatePrice(day, current)
	}
	for _, c := range economy.Commodities {
		m.prices[c] = append(m.prices[c], next[c])
	}
	m.Day = day

	// 4. Distribution.
	var volume economy.Basket
	if len(m.Agents) > 0 {
		volume = m.Strategy.Distribute(m.Agents, next)
		for _, a := range m.Agents {
			a.Inventory.Clamp()
		}
	}

	if last {
		m.reap(day)
	}

	ds := m.recordDay(volume, len(m.Dead)-deaths)
	m.log.Info("daily report",
		"day", day,
		"strategy", m.Strategy.Name(),
		"alive", ds.Alive,
		"deaths", ds.Deaths,
		"gini", fmt.Sprintf("%.4f", ds.Gini),
		"total_wealth", fmt.Sprintf("%.2f", ds.TotalWealth),
		"prices", formatPrices(next),
	)
	if m.OnDay != nil {
		m.OnDay(ds)
	}
}

// reap removes every agent whose food cannot cover the day's subsistence.
func (m *Market) reap(day int) {
	alive := m.Agents[:0:0]
	for _, a := range m.Agents {
		if a.Starving() {
			m.kill(a, day, agents.ReasonStarvation)
			continue
		}
		alive = append(alive, a)
	}
	m.Agents = alive
}

// produce runs every agent's Work in parallel. Each agent touches only its own
// inventory; errors are handled sequentially after the barrier.
func (m *Market) produce(day int) {
	errs := make([]error, len(m.Agents))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, a := range m.Agents {
		i, a := i, a
		g.Go(func() error {
			errs[i] = a.Work()
			return nil
		})
	}
	_ = g.Wait()

	alive := m.Agents[:0:0]
	for i, a := range m.Agents {
		if errs[i] != nil {
			m.log.Warn("production failed", "day", day, "agent", a.ID, "role", a.Role, "error", errs[i])
			m.kill(a, day, agents.ReasonStarvation)
			continue
		}
		alive = append(alive, a)
	}
	m.Agents = alive
}

// updatePrice asks the strategy for the next prices. A strategy error is
// reported and the prices it returned are still used; anything non-finite or
// negative falls back to the current prices.
func (m *Market) updatePrice(day int, current economy.Basket) economy.Basket {
	next, err := m.Strategy.UpdatePrice(m.Agents, current)
	if err != nil {
		m.log.Warn("price update degraded", "day", day, "strategy", m.Strategy.Name(), "error", err)
		m.Events = append(m.Events, Event{
			Day:         day,
			Description: err.Error(),
			Category:    "warning",
		})
	}
	for _, c := range economy.Commodities {
		if math.IsNaN(next[c]) || math.IsInf(next[c], 0) || next[c] < 0 {
			m.log.Warn("invalid price rejected", "day", day, "commodity", c, "price", next[c])
			return current
		}
	}
	return next
}

func (m *Market) kill(a *agents.Agent, day int, reason string) {
	a.Die(day, reason)
	m.Dead = append(m.Dead, a)
	m.Events = append(m.Events, Event{
		Day:         day,
		AgentID:     a.ID,
		Role:        a.Role.String(),
		Description: fmt.Sprintf("%s %s died of %s", a.Role, a.ID, reason),
		Category:    "death",
	})
	m.log.Info("agent died", "day", day, "role", a.Role.String(), "id", a.ID, "reason", reason)
}

func formatPrices(p economy.Basket) string {
	return fmt.Sprintf("food=%.3f wood=%.3f ore=%.3f metal=%.3f tool=%.3f",
		p[economy.Food], p[economy.Wood], p[economy.Ore], p[economy.Metal], p[economy.Tool])
}
