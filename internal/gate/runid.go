package gate

import (
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator names gatekeeper runs.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable run IDs, so listing runs by ID
// also lists them by start time.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. Panics if the generator fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined run IDs in order, for tests.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next ID. Panics when the IDs are exhausted so a test
// that starts more runs than expected fails loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all run IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
