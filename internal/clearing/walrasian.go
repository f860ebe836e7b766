package clearing

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/talgya/market-sim/internal/agents"
	"github.com/talgya/market-sim/internal/economy"
)

var (
	// ErrNoConvergence marks a price search that failed; the previous prices are kept.
	ErrNoConvergence = errors.New("price search did not converge")

	// ErrDegenerateDemand marks a population with no priced demand at all.
	ErrDegenerateDemand = errors.New("degenerate demand")
)

// WalrasianConfig tunes the equilibrium price search.
type WalrasianConfig struct {
	MaxEvaluations int     // Objective evaluations per day
	Tolerance      float64 // Absolute objective change treated as converged
	SimplexSize    float64 // Initial Nelder-Mead simplex edge
	MinDemandValue float64 // Agents whose priced shortage is below this are left out
}

// DefaultWalrasianConfig returns the reference tuning.
func DefaultWalrasianConfig() WalrasianConfig {
	return WalrasianConfig{
		MaxEvaluations: 20000,
		Tolerance:      1e-9,
		SimplexSize:    0.5,
		MinDemandValue: 0.01,
	}
}

// Walrasian searches for the price vector that minimizes price-weighted
// aggregate excess demand, seeded with the previous day's prices.
//
// For agent j with shortage A_j and surplus B_j, excess demand is
// (B_j·p / A_j·p)·A_j − B_j. The objective is Σ_c (p_c·z_c)² over the summed
// excess demand z. Because z is unchanged by scaling p, the search runs on the
// simplex Σp = Σp_prev; |x| is projected onto it, so every price is non-negative.
type Walrasian struct {
	cfg WalrasianConfig
	log *slog.Logger
}

// NewWalrasian creates the strategy. A nil logger uses slog.Default().
func NewWalrasian(cfg WalrasianConfig, logger *slog.Logger) *Walrasian {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walrasian{cfg: cfg, log: logger}
}

func (w *Walrasian) Name() string { return "walrasian" }

// UpdatePrice runs the search. On failure it returns current unchanged
// together with an error wrapping ErrNoConvergence.
func (w *Walrasian) UpdatePrice(pop []*agents.Agent, current economy.Basket) (economy.Basket, error) {
	demand := agents.DemandMatrix(pop)
	supply := agents.SupplyMatrix(pop)

	level := current.Sum()
	if level <= 0 {
		return current, fmt.Errorf("%w: zero price level", ErrNoConvergence)
	}

	if _, ok := w.excessDemand(demand, supply, current); !ok {
		return current, fmt.Errorf("%w: %w", ErrNoConvergence, ErrDegenerateDemand)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			p, ok := project(x, level)
			if !ok {
				return math.MaxFloat64
			}
			z, ok := w.excessDemand(demand, supply, p)
			if !ok {
				return math.MaxFloat64
			}
			f := 0.0
			for c := range z {
				v := p[c] * z[c]
				f += v * v
			}
			return f
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: w.cfg.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   w.cfg.Tolerance,
			Iterations: 100,
		},
	}

	x0 := make([]float64, economy.NumCommodities)
	copy(x0, current[:])

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{SimplexSize: w.cfg.SimplexSize})
	if err != nil {
		return current, fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}
	if result.Status.Early() {
		return current, fmt.Errorf("%w: stopped with status %v", ErrNoConvergence, result.Status)
	}

	next, ok := project(result.X, level)
	if !ok || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return current, fmt.Errorf("%w: infeasible solution", ErrNoConvergence)
	}
	for _, v := range next {
		if math.IsNaN(v) || v < 0 {
			return current, fmt.Errorf("%w: infeasible price", ErrNoConvergence)
		}
	}
	return next, nil
}

// excessDemand sums each agent's excess demand at p. Agents whose priced
// shortage is below the threshold are left out. Returns false if none remain.
func (w *Walrasian) excessDemand(demand, supply []economy.Basket, p economy.Basket) (economy.Basket, bool) {
	var z economy.Basket
	n := 0
	for j := range demand {
		ap := demand[j].Dot(p)
		if ap < w.cfg.MinDemandValue {
			continue
		}
		ratio := supply[j].Dot(p) / ap
		for c := range z {
			z[c] += ratio*demand[j][c] - supply[j][c]
		}
		n++
	}
	return z, n > 0
}

// project maps x onto non-negative prices summing to level.
func project(x []float64, level float64) (economy.Basket, bool) {
	var p economy.Basket
	sum := 0.0
	for c := range p {
		p[c] = math.Abs(x[c])
		sum += p[c]
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return p, false
	}
	scale := level / sum
	for c := range p {
		p[c] *= scale
	}
	return p, true
}

// Distribute takes every agent's surplus, then credits agent i with
// shortage_i(c)·r_i(c) for each commodity, where r_i = (B_i·p / A_i·p)·A_i − B_i
// is evaluated on the pre-distribution vectors. Negative credits are dropped.
func (w *Walrasian) Distribute(pop []*agents.Agent, prices economy.Basket) economy.Basket {
	demand := agents.DemandMatrix(pop)
	supply := agents.SupplyMatrix(pop)
	agents.TakeSupply(pop)

	var volume economy.Basket
	for i, a := range pop {
		r, ok := intensity(demand[i], supply[i], prices, w.cfg.MinDemandValue)
		if !ok {
			if !demand[i].IsZero() {
				w.log.Debug("degenerate demand, skipping buyer", "agent", a.ID, "role", a.Role)
			}
			continue
		}
		for _, c := range economy.Commodities {
			credit := demand[i][c] * r[c]
			if credit <= 0 {
				continue
			}
			a.Inventory.Add(c, credit)
			volume[c] += credit
		}
	}
	return volume
}

// intensity returns the per-commodity vector (B·p / A·p)·A − B.
func intensity(a, b, p economy.Basket, minValue float64) (economy.Basket, bool) {
	var r economy.Basket
	ap := a.Dot(p)
	if ap < minValue {
		return r, false
	}
	ratio := b.Dot(p) / ap
	for c := range r {
		r[c] = ratio*a[c] - b[c]
	}
	return r, true
}
