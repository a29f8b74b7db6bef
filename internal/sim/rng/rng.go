// Package rng wraps the pseudo-random sources used by the simulation so tests
// can inject a deterministic sequence.
package rng

import "math/rand"

// Source is the subset of *rand.Rand the simulation draws from.
type Source interface {
	Float64() float64
	Intn(n int) int
}

func New(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

// IntRange draws uniformly from [lo, hi). Degenerate ranges return lo.
func IntRange(r Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo)
}

// IntIncl draws uniformly from [lo, hi].
func IntIncl(r Source, lo, hi int) int { return IntRange(r, lo, hi+1) }

// Uniform draws uniformly from [lo, hi).
func Uniform(r Source, lo, hi float64) float64 { return lo + (hi-lo)*r.Float64() }

// Chance reports a success with probability p.
func Chance(r Source, p float64) bool { return r.Float64() < p }

// Script replays fixed values. Float64 and Intn consume from separate queues;
// an exhausted queue returns its fallback (0.99 / 0).
type Script struct {
	Floats []float64
	Ints   []int
}

func (s *Script) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0.99
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}

func (s *Script) Intn(n int) int {
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if n > 0 {
		v %= n
		if v < 0 {
			v += n
		}
	}
	return v
}
