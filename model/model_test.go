package model

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/gonum/matrix/mat64"
)

const smallDiff = 1e-9

func appreq(a, b float64) bool {
	return math.Abs(a-b) <= smallDiff
}

func TestRateMatrixRows(tst *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for k := 0; k < 100; k++ {
		m := NewRateMatrix(rng)
		for i := 0; i < NStates; i++ {
			rowSum := 0.0
			for j := 0; j < NStates; j++ {
				v := m.Q.At(i, j)
				if i != j && (v < minRate || v >= 1+minRate) {
					tst.Error("Rate out of range:", i, j, v)
				}
				rowSum += v
			}
			if !appreq(rowSum, 0) {
				tst.Error("Row doesn't sum to zero:", i, rowSum)
			}
		}
	}
}

func TestRateMatrixPermutation(tst *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	m := NewRateMatrix(rng)
	p := m.Permute()

	// T,C,A,G -> A,C,G,T
	order := []int{2, 1, 3, 0}
	for i := 0; i < NStates; i++ {
		for j := 0; j < NStates; j++ {
			if p.Q.At(i, j) != m.Q.At(order[i], order[j]) {
				tst.Error("Wrong permutation at", i, j)
			}
		}
	}

	if !mat64.Equal(p.Unpermute().Q, m.Q) {
		tst.Error("Unpermute(Permute(M)) != M")
	}
	if !mat64.Equal(m.Unpermute().Permute().Q, m.Q) {
		tst.Error("Permute(Unpermute(M)) != M")
	}
	// the permutation is a 3-cycle
	if !mat64.Equal(p.Permute().Permute().Q, m.Q) {
		tst.Error("Permute^3(M) != M")
	}
	if mat64.Equal(p.Permute().Q, m.Q) {
		tst.Error("Permute^2(M) should differ from M")
	}

	// permuted matrix is still a rate matrix
	for i := 0; i < NStates; i++ {
		rowSum := 0.0
		for j := 0; j < NStates; j++ {
			rowSum += p.Q.At(i, j)
		}
		if !appreq(rowSum, 0) {
			tst.Error("Permuted row doesn't sum to zero:", i, rowSum)
		}
	}
}

func TestRateMatrixStrings(tst *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	m := NewRateMatrix(rng)

	native := strings.Fields(m.NativeString())
	if len(native) != 12 {
		tst.Fatal("Wrong number of native rates:", len(native))
	}
	for i, v := range m.OffDiagonal() {
		f, err := strconv.ParseFloat(native[i], 64)
		if err != nil || f != v {
			tst.Error("Native rate mismatch:", native[i], v)
		}
	}
	// row-major, diagonal skipped
	if native[0] != strconv.FormatFloat(m.Q.At(0, 1), 'g', -1, 64) ||
		native[3] != strconv.FormatFloat(m.Q.At(1, 0), 'g', -1, 64) ||
		native[11] != strconv.FormatFloat(m.Q.At(3, 2), 'g', -1, 64) {
		tst.Error("Wrong native order:", m.NativeString())
	}

	permuted := strings.Split(m.PermutedString(), ",")
	if len(permuted) != 12 {
		tst.Fatal("Wrong number of permuted rates:", len(permuted))
	}
	// first permuted entry is A->C, i.e. native (2, 1)
	if permuted[0] != strconv.FormatFloat(m.Q.At(2, 1), 'g', -1, 64) {
		tst.Error("Wrong permuted order:", m.PermutedString())
	}
}

func TestFrequency(tst *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	for k := 0; k < 100; k++ {
		f := NewFrequency(rng)
		if len(f) != NStates {
			tst.Fatal("Wrong number of frequencies:", len(f))
		}
		sum := 0.0
		for _, v := range f {
			if v <= 0 {
				tst.Error("Non-positive frequency:", f)
			}
			// the floor survives normalization
			if v < minFreq/(1+NStates*minFreq)-smallDiff {
				tst.Error("Frequency below the floor:", f)
			}
			sum += v
		}
		if !appreq(sum, 1) {
			tst.Error("Frequencies don't sum to one:", sum)
		}
	}
}

func TestFrequencyPermutation(tst *testing.T) {
	f := Frequency{0.1, 0.2, 0.3, 0.4}
	p := f.Permute()
	expected := []float64{0.3, 0.2, 0.4, 0.1}
	for i := range expected {
		if !appreq(p[i], expected[i]) {
			tst.Error("Wrong permuted frequencies:", p)
		}
	}
	u := p.Unpermute()
	for i := range f {
		if !appreq(u[i], f[i]) {
			tst.Error("Unpermute(Permute(f)) != f:", u)
		}
	}
	if f.NativeString() != "0.1 0.2 0.3 0.4" {
		tst.Error("Wrong native string:", f.NativeString())
	}
	if f.PermutedString() != "0.3,0.2,0.4,0.1" {
		tst.Error("Wrong permuted string:", f.PermutedString())
	}
}

func TestParametersSeed(tst *testing.T) {
	p1 := NewParameters(42)
	p2 := NewParameters(42)
	p3 := NewParameters(43)
	if p1.Subst.NativeString() != p2.Subst.NativeString() ||
		p1.Freq.NativeString() != p2.Freq.NativeString() {
		tst.Error("Same seed gives different parameters")
	}
	if p1.Subst.NativeString() == p3.Subst.NativeString() {
		tst.Error("Different seeds give the same parameters")
	}
}
