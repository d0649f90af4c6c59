package model

import (
	"math/rand/v2"

	"github.com/gonum/matrix/mat64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"
)

// minFreq is added to every frequency before normalization.
const minFreq = 0.001

// Frequency is a vector of stationary state frequencies.
type Frequency []float64

// NewFrequency draws frequencies from the flat Dirichlet distribution.
// Every frequency is then increased by 0.001 and the vector is
// renormalized, so no frequency is close to zero.
func NewFrequency(src rand.Source) Frequency {
	alpha := make([]float64, NStates)
	for i := range alpha {
		alpha[i] = 1
	}
	f := distmv.NewDirichlet(alpha, src).Rand(nil)
	for i := range f {
		f[i] += minFreq
	}
	floats.Scale(1/floats.Norm(f, 1), f)
	return Frequency(f)
}

func (f Frequency) mul(p mat64.Matrix) Frequency {
	v := mat64.NewDense(1, NStates, append([]float64(nil), f...))
	r := mat64.NewDense(1, NStates, nil)
	r.Mul(v, p)
	return Frequency(r.RawRowView(0))
}

// Permute returns frequencies in the root estimator state order
// (f * P).
func (f Frequency) Permute() Frequency {
	return f.mul(statePermutation)
}

// Unpermute is the inverse of Permute.
func (f Frequency) Unpermute() Frequency {
	return f.mul(statePermutation.T())
}

// NativeString returns frequencies separated by spaces.
func (f Frequency) NativeString() string {
	return join(f, " ")
}

// PermutedString returns permuted frequencies separated by commas.
func (f Frequency) PermutedString() string {
	return join(f.Permute(), ",")
}
