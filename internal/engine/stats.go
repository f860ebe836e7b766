package engine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/economy"
)

// PercentileLevels are the wealth percentiles tracked each day.
var PercentileLevels = [7]float64{0.01, 0.05, 0.25, 0.50, 0.75, 0.95, 0.99}

// DayStats tracks aggregate statistics for one day.
type DayStats struct {
	Day         int            `json:"day"`
	Alive       int            `json:"alive"`
	Deaths      int            `json:"deaths"`       // Cumulative
	DeathsToday int            `json:"deaths_today"` // Removed during this day
	TotalWealth float64        `json:"total_wealth"`
	MeanWealth  float64        `json:"mean_wealth"`
	StdDev      float64        `json:"std_dev"`
	Gini        float64        `json:"gini"`
	Percentiles [7]float64     `json:"percentiles"` // At PercentileLevels
	Prices      economy.Basket `json:"prices"`
	Volume      economy.Basket `json:"volume"` // Redistributed quantity
}

// Gini returns the mean-absolute-difference Gini coefficient
// Σ_i Σ_{j>i} |w_i − w_j| / (N² · mean(w)). Zero for an empty population or
// non-positive mean.
func Gini(wealth []float64) float64 {
	n := len(wealth)
	if n == 0 {
		return 0
	}
	mean := stat.Mean(wealth, nil)
	if mean <= 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, wealth)
	sort.Float64s(sorted)

	// For ascending order, Σ_{i<j} (w_j − w_i) = Σ_k w_k·(2k − n + 1).
	total := 0.0
	for k, w := range sorted {
		total += w * float64(2*k-n+1)
	}
	return total / (float64(n) * float64(n) * mean)
}

// Distribution summarizes a wealth vector.
type Distribution struct {
	Total       float64
	Mean        float64
	StdDev      float64
	Gini        float64
	Percentiles [7]float64
}

// Summarize computes the distribution statistics of a wealth vector.
func Summarize(wealth []float64) Distribution {
	var d Distribution
	if len(wealth) == 0 {
		return d
	}

	sorted := make([]float64, len(wealth))
	copy(sorted, wealth)
	sort.Float64s(sorted)

	mean, variance := stat.PopMeanVariance(sorted, nil)
	d.Mean = mean
	d.StdDev = math.Sqrt(variance)
	d.Total = mean * float64(len(sorted))
	d.Gini = Gini(sorted)
	for i, p := range PercentileLevels {
		d.Percentiles[i] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	return d
}

// recordDay appends the day's statistics and wealth snapshot.
func (m *Market) recordDay(volume economy.Basket, deathsToday int) DayStats {
	prices := m.CurrentPrices()
	snap := WealthSnapshot{Day: m.Day, Wealth: make(map[agents.AgentID]float64, len(m.Agents))}
	wealth := make([]float64, len(m.Agents))
	for i, a := range m.Agents {
		wealth[i] = a.Wealth(prices)
		snap.Wealth[a.ID] = wealth[i]
	}
	m.wealth = append(m.wealth, snap)

	dist := Summarize(wealth)
	ds := DayStats{
		Day:         m.Day,
		Alive:       len(m.Agents),
		Deaths:      len(m.Dead),
		DeathsToday: deathsToday,
		TotalWealth: dist.Total,
		MeanWealth:  dist.Mean,
		StdDev:      dist.StdDev,
		Gini:        dist.Gini,
		Percentiles: dist.Percentiles,
		Prices:      prices,
		Volume:      volume,
	}
	m.Stats = append(m.Stats, ds)
	return ds
}
