// Package agents provides the producer data model, role recipes, and the
// shortage/surplus queries the market clears against.
package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/market-sim/internal/economy"
)

// AgentID is a unique identifier for an agent.
type AgentID = uuid.UUID

// Role is an agent's fixed productive specialty.
type Role uint8

const (
	RoleFarmer Role = iota
	RoleWoodCutter
	RoleMiner
	RoleRefiner
	RoleBlacksmith
)

// NumRoles is the number of producer roles.
const NumRoles = 5

var roleNames = [NumRoles]string{"Farmer", "WoodCutter", "Miner", "Refiner", "Blacksmith"}

// Roles lists every role in index order.
var Roles = [NumRoles]Role{RoleFarmer, RoleWoodCutter, RoleMiner, RoleRefiner, RoleBlacksmith}

func (r Role) String() string {
	if int(r) < NumRoles {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

var ErrUnknownRole = errors.New("unknown role")

// ParseRole maps a case-insensitive role name to its Role.
// "blacksmith" and "black_smith" are both accepted, as are "woodcutter" and "wood_cutter".
func ParseRole(name string) (Role, error) {
	n := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(name))
	for i, rn := range roleNames {
		if strings.ToLower(rn) == n {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// Death reasons.
const (
	ReasonStarvation = "starvation"
)

// Agent is a single producer. Its role is fixed at construction; its inventory
// is mutated by its own production and by market distribution, never concurrently.
type Agent struct {
	ID        AgentID        `json:"id"`
	Role      Role           `json:"role"`
	Inventory economy.Basket `json:"inventory"`

	// Metadata
	Alive       bool   `json:"alive"`
	DeathReason string `json:"death_reason,omitempty"`
	DiedOnDay   int    `json:"died_on_day,omitempty"`

	rules *Rules
}

// New creates a live agent with the given endowment. A nil rules pointer
// selects DefaultRules.
func New(id AgentID, role Role, endowment economy.Basket, rules *Rules) *Agent {
	if rules == nil {
		rules = DefaultRules()
	}
	endowment.Clamp()
	return &Agent{
		ID:        id,
		Role:      role,
		Inventory: endowment,
		Alive:     true,
		rules:     rules,
	}
}

// Rules returns the production rules the agent works under.
func (a *Agent) Rules() *Rules {
	return a.rules
}

// Recipe returns the agent's role recipe.
func (a *Agent) Recipe() Recipe {
	return a.rules.Recipes[a.Role]
}

// Die marks the agent dead. Death is final: later calls keep the first reason.
func (a *Agent) Die(day int, reason string) {
	if !a.Alive {
		return
	}
	a.Alive = false
	a.DeathReason = reason
	a.DiedOnDay = day
}

// Starving reports whether the agent cannot cover a day's subsistence.
func (a *Agent) Starving() bool {
	return a.Inventory[economy.Food] < a.rules.DailyFood
}

// Wealth values the inventory at the given prices.
func (a *Agent) Wealth(prices economy.Basket) float64 {
	return a.Inventory.Dot(prices)
}

func (a *Agent) String() string {
	return fmt.Sprintf("%s %s", a.Role, a.ID)
}
