// Package economy provides the commodity set and the fixed-size quantity
// vectors shared by inventories, shortages, surpluses and prices.
package economy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Commodity enumerates the tradeable goods.
type Commodity uint8

const (
	Food  Commodity = iota // Subsistence, Farmer output
	Wood                   // Farmer input
	Ore                    // Refiner input
	Metal                  // Blacksmith input
	Tool                   // Worn by every producer except the Blacksmith
)

// NumCommodities is the total number of commodities.
const NumCommodities = 5

var commodityNames = [NumCommodities]string{"food", "wood", "ore", "metal", "tool"}

// Commodities lists every commodity in index order.
var Commodities = [NumCommodities]Commodity{Food, Wood, Ore, Metal, Tool}

func (c Commodity) String() string {
	if int(c) < NumCommodities {
		return commodityNames[c]
	}
	return fmt.Sprintf("commodity(%d)", uint8(c))
}

var (
	ErrUnknownCommodity = errors.New("unknown commodity")
	ErrMissingCommodity = errors.New("missing commodity")
	ErrNegativePrice    = errors.New("negative price")
)

// ParseCommodity maps a case-insensitive name to its commodity.
func ParseCommodity(name string) (Commodity, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, cn := range commodityNames {
		if cn == n {
			return Commodity(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommodity, name)
}

// Basket is a fixed-size quantity vector indexed by Commodity.
// The key set is always the same five goods, so no map is needed.
type Basket [NumCommodities]float64

// Get returns the quantity held of c.
func (b *Basket) Get(c Commodity) float64 { return b[c] }

// Add credits n units of c. Negative n is ignored.
func (b *Basket) Add(c Commodity, n float64) {
	if n <= 0 {
		return
	}
	b[c] += n
}

// Take removes up to n units of c and returns how much was actually removed.
// The request is clamped to the quantity held, so the balance never goes negative.
func (b *Basket) Take(c Commodity, n float64) float64 {
	if n <= 0 {
		return 0
	}
	held := b[c]
	if held < 0 {
		held = 0
	}
	if n > held {
		n = held
	}
	b[c] = held - n
	return n
}

// Clamp zeroes any negative entries left behind by floating-point noise.
func (b *Basket) Clamp() {
	for i := range b {
		if b[i] < 0 {
			b[i] = 0
		}
	}
}

// Dot returns Σ b[c]·o[c].
func (b Basket) Dot(o Basket) float64 {
	return floats.Dot(b[:], o[:])
}

// Sum returns Σ b[c].
func (b Basket) Sum() float64 {
	return floats.Sum(b[:])
}

// IsZero returns true if every quantity is zero.
func (b Basket) IsZero() bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Map returns the basket as a name-keyed map, for reporting.
func (b Basket) Map() map[string]float64 {
	m := make(map[string]float64, NumCommodities)
	for _, c := range Commodities {
		m[c.String()] = b[c]
	}
	return m
}

// PricesFromMap converts a name-keyed price mapping into a price vector.
// The mapping must cover exactly the five commodities with non-negative prices.
func PricesFromMap(m map[string]float64) (Basket, error) {
	var p Basket
	seen := [NumCommodities]bool{}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		c, err := ParseCommodity(k)
		if err != nil {
			return p, err
		}
		v := m[k]
		if v < 0 {
			return p, fmt.Errorf("%w: %s=%g", ErrNegativePrice, c, v)
		}
		p[c] = v
		seen[c] = true
	}
	for _, c := range Commodities {
		if !seen[c] {
			return p, fmt.Errorf("%w: %s", ErrMissingCommodity, c)
		}
	}
	return p, nil
}
