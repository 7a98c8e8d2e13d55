// Package rng provides the seeded pseudo-random source every generator draws
// from. A single RNG is owned by one render call; it is never shared across
// concurrent renders, so reproducibility is "same seed, same call".
package rng

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RNG is a deterministic random source. Not safe for concurrent use.
type RNG struct {
	seed int64
	r    *rand.Rand
}

// New returns an RNG seeded with seed.
func New(seed int64) *RNG {
	return &RNG{seed: seed, r: rand.New(rand.NewSource(seed))}
}

// FromClock returns an RNG seeded from wall-clock entropy, for callers that
// did not ask for reproducible output.
func FromClock() *RNG {
	return New(ClockSeed())
}

// ClockSeed returns a wall-clock derived seed.
func ClockSeed() int64 {
	return time.Now().UnixNano()
}

// Seed returns the seed the RNG was constructed with.
func (g *RNG) Seed() int64 { return g.seed }

// Next returns a float in [0,1).
func (g *RNG) Next() float64 { return g.r.Float64() }

// Between returns a float in [min,max). If max < min the bounds are swapped.
func (g *RNG) Between(min, max float64) float64 {
	if math.IsNaN(min) || math.IsNaN(max) {
		panic(fmt.Sprintf("rng: NaN bound in Between(%v, %v)", min, max))
	}
	if max < min {
		min, max = max, min
	}
	return min + g.r.Float64()*(max-min)
}

// RangeInt returns an integer in [min,max], inclusive on both ends. It floors
// next*(max-min+1), so max is drawn with the same probability as any other
// value.
func (g *RNG) RangeInt(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + int(math.Floor(g.r.Float64()*float64(max-min+1)))
}

// Intn returns an integer in [0,n). n must be positive.
func (g *RNG) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("rng: Intn called with n=%d", n))
	}
	return int(g.r.Float64() * float64(n))
}

// Bool returns true with probability p.
func (g *RNG) Bool(p float64) bool { return g.r.Float64() < p }

// Sign returns -1 or 1 with equal probability.
func (g *RNG) Sign() float64 {
	if g.r.Float64() < 0.5 {
		return -1
	}
	return 1
}

// Jitter returns a float in [-mag,mag).
func (g *RNG) Jitter(mag float64) float64 { return g.Between(-mag, mag) }

// Choice returns a uniformly chosen element of list. It panics on an empty
// list.
func Choice[T any](g *RNG, list []T) T {
	if len(list) == 0 {
		panic("rng: Choice on empty list")
	}
	return list[g.Intn(len(list))]
}

// Shuffle returns a shuffled copy of list (Fisher-Yates). The input is left
// untouched.
func Shuffle[T any](g *RNG, list []T) []T {
	out := append([]T(nil), list...)
	for i := len(out) - 1; i > 0; i-- {
		j := g.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Sample returns n distinct elements of list in random order. When n >=
// len(list) it returns a full shuffle.
func Sample[T any](g *RNG, list []T, n int) []T {
	out := Shuffle(g, list)
	if n < 0 {
		n = 0
	}
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// WeightedIndex returns an index into weights chosen with probability
// proportional to its weight. Non-positive weights are never chosen unless
// every weight is non-positive, in which case the choice is uniform.
func WeightedIndex(g *RNG, weights []float64) int {
	if len(weights) == 0 {
		panic("rng: WeightedIndex on empty weights")
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return g.Intn(len(weights))
	}
	target := g.Next() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if target < w {
			return i
		}
		target -= w
	}
	// Floating point residue; return the last positive weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return len(weights) - 1
}
