// Package generator produces the synthetic ticketing datasets: events,
// transactions, and attendance CSV files, deterministic for a given seed.
package generator

import (
	"math"
	"math/rand"
)

// Sampler wraps a seeded source with the distributions the datasets draw
// from. It is not safe for concurrent use.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler seeded for reproducible output.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform draw from [0, 1).
func (s *Sampler) Float64() float64 {
	return s.rng.Float64()
}

// IntRange returns a uniform draw from [lo, hi).
func (s *Sampler) IntRange(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo)
}

// Normal returns a gaussian draw with the given mean and standard deviation.
func (s *Sampler) Normal(mean, stddev float64) float64 {
	return mean + stddev*s.rng.NormFloat64()
}

// Gamma returns a draw from the gamma distribution with the given shape and
// scale, using the Marsaglia-Tsang squeeze method.
func (s *Sampler) Gamma(shape, scale float64) float64 {
	if shape <= 0 || scale <= 0 {
		return 0
	}
	if shape < 1 {
		// Boost to shape+1 and correct with a uniform power.
		return s.Gamma(shape+1, scale) * math.Pow(s.rng.Float64(), 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		x := s.rng.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := s.rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// Poisson returns a draw from the Poisson distribution with mean lambda,
// using Knuth's multiplication method. Fine for the small lambdas the
// basket sizes use.
func (s *Sampler) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= s.rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// Weighted returns an index drawn according to the weight vector. Weights
// need not sum to one.
func (s *Sampler) Weighted(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	u := s.rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if u < cum {
			return i
		}
	}
	return len(weights) - 1
}

// Perm returns a random permutation of [0, n).
func (s *Sampler) Perm(n int) []int {
	return s.rng.Perm(n)
}
