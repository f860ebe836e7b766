// Agent spawning: creates the initial population with reproducible ids.
package agents

import (
	cryptorand "crypto/rand"
	"io"
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/market-sim/internal/economy"
)

// Cohort describes a batch of identical agents.
type Cohort struct {
	Role      Role
	Count     int
	Endowment economy.Basket
}

// Spawner creates agents for the simulation.
type Spawner struct {
	ids   io.Reader
	rules *Rules
}

// NewSpawner creates an agent spawner. Ids are drawn from rng, so the same
// seed yields the same ids. A nil rng falls back to crypto/rand; a nil rules
// pointer selects DefaultRules.
func NewSpawner(rng *rand.Rand, rules *Rules) *Spawner {
	if rules == nil {
		rules = DefaultRules()
	}
	var ids io.Reader = cryptorand.Reader
	if rng != nil {
		ids = rng
	}
	return &Spawner{ids: ids, rules: rules}
}

// Rules returns the rules every spawned agent shares.
func (s *Spawner) Rules() *Rules {
	return s.rules
}

// Spawn creates one agent.
func (s *Spawner) Spawn(role Role, endowment economy.Basket) *Agent {
	return New(s.nextID(), role, endowment, s.rules)
}

// SpawnPopulation creates every cohort in order.
func (s *Spawner) SpawnPopulation(cohorts []Cohort) []*Agent {
	total := 0
	for _, c := range cohorts {
		total += c.Count
	}
	agents := make([]*Agent, 0, total)

	for _, c := range cohorts {
		for i := 0; i < c.Count; i++ {
			agents = append(agents, s.Spawn(c.Role, c.Endowment))
		}
	}

	return agents
}

func (s *Spawner) nextID() AgentID {
	id, err := uuid.NewRandomFromReader(s.ids)
	if err != nil {
		// math/rand never fails a read.
		return uuid.New()
	}
	return id
}
