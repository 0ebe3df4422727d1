package service

import (
	"math/rand"
	"sync"
	"time"
)

// Randomizer is the source of randomness used by the allocation planner.
type Randomizer interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomizer returns a goroutine-safe time seeded source.
func NewRandomizer() Randomizer {
	return &lockedRand{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededRandomizer returns a deterministic source.
func NewSeededRandomizer(seed int64) Randomizer {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

func (r *lockedRand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rnd.Shuffle(n, swap)
}
