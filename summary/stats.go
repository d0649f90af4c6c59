package summary

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"bitbucket.org/Davydov/rootbench/dist"
)

// confidence is the confidence level of the mean intervals.
const confidence = 0.95

// Stats is a summary of a sample.
type Stats struct {
	// N is the sample size.
	N int `json:"n"`
	// Mean is the sample mean.
	Mean float64 `json:"mean"`
	// Median is the sample median.
	Median float64 `json:"median"`
	// Std is the population standard deviation.
	Std float64 `json:"std"`
	// CI95 is the half-width of the 95% confidence interval of the
	// mean (Student t), zero for samples smaller than two.
	CI95 float64 `json:"ci95"`
}

// Median returns the median, for even sample sizes it's the average of
// the two middle values.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// MeanCI returns the half-width of the confidence interval of the
// mean.
func MeanCI(x []float64, level float64) float64 {
	n := float64(len(x))
	if len(x) < 2 {
		return 0
	}
	sd := stat.StdDev(x, nil)
	return dist.QuantileT(1-(1-level)/2, n-1) * sd / math.Sqrt(n)
}

// Compute returns sample statistics.
func Compute(x []float64) Stats {
	if len(x) == 0 {
		return Stats{}
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	return Stats{
		N:      len(x),
		Mean:   mean,
		Median: Median(x),
		Std:    std,
		CI95:   MeanCI(x, confidence),
	}
}
