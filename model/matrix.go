// Package model generates random parameters of the general
// (non-reversible) nucleotide substitution model: a rate matrix and
// stationary frequencies.
//
// Parameters are generated in the state order of the sequence
// simulator (T, C, A, G). Permute converts them to the A, C, G, T
// order used by the root estimator.
package model

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"
)

// NStates is the number of nucleotide states.
const NStates = 4

// minRate is added to every rate so none of them is zero.
const minRate = 0.01

// statePermutation maps simulator state order onto the root estimator
// state order.
var statePermutation = mat64.NewDense(NStates, NStates, []float64{
	0, 0, 0, 1,
	0, 1, 0, 0,
	1, 0, 0, 0,
	0, 0, 1, 0,
})

// RateMatrix is an instantaneous rate matrix. Every row sums to zero.
type RateMatrix struct {
	Q *mat64.Dense
}

// NewRateMatrix creates a random rate matrix. Off-diagonal rates are
// uniform in [0.01, 1.01).
func NewRateMatrix(rng *rand.Rand) RateMatrix {
	q := mat64.NewDense(NStates, NStates, nil)
	for i := 0; i < NStates; i++ {
		for j := 0; j < NStates; j++ {
			// the diagonal is drawn as well to keep the random stream
			// identical to the full matrix draw
			v := rng.Float64() + minRate
			if i != j {
				q.Set(i, j, v)
			}
		}
	}
	for i := 0; i < NStates; i++ {
		rowSum := 0.0
		for j := 0; j < NStates; j++ {
			if i != j {
				rowSum += q.At(i, j)
			}
		}
		q.Set(i, i, -rowSum)
	}
	return RateMatrix{Q: q}
}

// OffDiagonal returns off-diagonal rates in row-major order.
func (m RateMatrix) OffDiagonal() []float64 {
	r := make([]float64, 0, NStates*(NStates-1))
	for i := 0; i < NStates; i++ {
		for j := 0; j < NStates; j++ {
			if i != j {
				r = append(r, m.Q.At(i, j))
			}
		}
	}
	return r
}

// Permute returns the matrix in the root estimator state order
// (P^T * Q * P).
func (m RateMatrix) Permute() RateMatrix {
	tmp := mat64.NewDense(NStates, NStates, nil)
	tmp.Mul(statePermutation.T(), m.Q)
	q := mat64.NewDense(NStates, NStates, nil)
	q.Mul(tmp, statePermutation)
	return RateMatrix{Q: q}
}

// Unpermute is the inverse of Permute (P * Q * P^T).
func (m RateMatrix) Unpermute() RateMatrix {
	tmp := mat64.NewDense(NStates, NStates, nil)
	tmp.Mul(statePermutation, m.Q)
	q := mat64.NewDense(NStates, NStates, nil)
	q.Mul(tmp, statePermutation.T())
	return RateMatrix{Q: q}
}

// NativeString returns off-diagonal rates separated by spaces, as
// expected by the simulator control file.
func (m RateMatrix) NativeString() string {
	return join(m.OffDiagonal(), " ")
}

// PermutedString returns off-diagonal rates of the permuted matrix
// separated by commas.
func (m RateMatrix) PermutedString() string {
	return join(m.Permute().OffDiagonal(), ",")
}

// join formats floats with the shortest exact representation.
func join(v []float64, sep string) string {
	s := make([]string, len(v))
	for i, f := range v {
		s[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(s, sep)
}
