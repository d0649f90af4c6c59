package model

import "math/rand/v2"

// Parameters is a complete set of substitution model parameters.
type Parameters struct {
	Freq  Frequency
	Subst RateMatrix
}

// NewParameters generates parameters from a seed. Frequencies are drawn
// first, then the rate matrix, so the same seed always gives the same
// parameters.
func NewParameters(seed uint64) Parameters {
	rng := rand.New(rand.NewPCG(seed, seed))
	freq := NewFrequency(rng)
	subst := NewRateMatrix(rng)
	return Parameters{Freq: freq, Subst: subst}
}
