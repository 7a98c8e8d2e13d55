package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
	assert.Equal(t, int64(42), a.Seed())
}

func TestBetween(t *testing.T) {
	g := New(1)
	for i := 0; i < 1000; i++ {
		v := g.Between(-2, 3)
		require.GreaterOrEqual(t, v, -2.0)
		require.Less(t, v, 3.0)
	}
	// Swapped bounds are tolerated.
	v := g.Between(5, 1)
	assert.GreaterOrEqual(t, v, 1.0)
	assert.Less(t, v, 5.0)

	assert.Panics(t, func() { g.Between(0, nan()) })
}

func TestRangeIntInclusive(t *testing.T) {
	g := New(7)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := g.RangeInt(3, 6)
		require.GreaterOrEqual(t, v, 3)
		require.LessOrEqual(t, v, 6)
		seen[v] = true
	}
	assert.Len(t, seen, 4, "both ends must be reachable")
	assert.Equal(t, 5, g.RangeInt(5, 5))
}

func TestSample(t *testing.T) {
	g := New(3)
	list := []int{1, 2, 3, 4, 5}

	s := Sample(g, list, 3)
	require.Len(t, s, 3)
	uniq := map[int]bool{}
	for _, v := range s {
		uniq[v] = true
	}
	assert.Len(t, uniq, 3)

	full := Sample(g, list, 10)
	assert.ElementsMatch(t, list, full)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, list, "input must not be mutated")

	assert.Empty(t, Sample(g, list, -1))
}

func TestChoice(t *testing.T) {
	g := New(9)
	list := []string{"a", "b", "c"}
	for i := 0; i < 50; i++ {
		assert.Contains(t, list, Choice(g, list))
	}
	assert.Panics(t, func() { Choice(g, []string{}) })
}

func TestWeightedIndex(t *testing.T) {
	g := New(11)
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[WeightedIndex(g, []float64{0, 1, 3})]++
	}
	assert.Zero(t, counts[0])
	assert.Greater(t, counts[2], counts[1])

	// All non-positive weights fall back to uniform.
	idx := WeightedIndex(g, []float64{0, 0})
	assert.Contains(t, []int{0, 1}, idx)
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}
