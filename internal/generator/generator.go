// Package generator picks round content for the content server.
package generator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/verte-zerg/killchain/internal/catalog"
)

// repeatWeight is the relative chance of serving the previous incident again.
const repeatWeight = 0.1

// Generator selects incidents. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Generator. A zero seed selects a time-based seed.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Pick selects an incident uniformly, biased away from the incident with id
// previous so consecutive rounds rarely repeat.
func (g *Generator) Pick(incidents []catalog.ContentIncident, previous string) (catalog.ContentIncident, bool) {
	if len(incidents) == 0 {
		return catalog.ContentIncident{}, false
	}
	weights := make([]float64, len(incidents))
	total := 0.0
	for i, inc := range incidents {
		w := 1.0
		if previous != "" && inc.ID == previous && len(incidents) > 1 {
			w = repeatWeight
		}
		weights[i] = w
		total += w
	}

	g.mu.Lock()
	r := g.rnd.Float64() * total
	g.mu.Unlock()

	acc := 0.0
	idx := len(incidents) - 1
	for j, w := range weights {
		acc += w
		if r < acc {
			idx = j
			break
		}
	}
	return incidents[idx], true
}
