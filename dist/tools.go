// Package dist implements quantile functions used for confidence
// intervals.
package dist

import (
	"math"

	"github.com/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// QuantileNormal returns quantile for normal distribution.
func QuantileNormal(prob float64) float64 {
	return mathext.NormalQuantile(prob)
}

/*
QuantileT returns z so that Prob{x<z}=prob where x is Student t
distributed with df degrees of freedom. Infinite df gives the normal
quantile.

Returns NaN if prob is not in (0, 1) or df is not positive.
*/
func QuantileT(prob, df float64) float64 {
	if prob <= 0 || prob >= 1 || df <= 0 || math.IsNaN(df) {
		return math.NaN()
	}
	if math.IsInf(df, 1) {
		return QuantileNormal(prob)
	}
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(prob)
}
