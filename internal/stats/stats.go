// Package stats holds the numeric primitives used by the risk models.
package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrSingular is returned when a least-squares system has no unique solution.
var ErrSingular = errors.New("stats: singular system")

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample (n-1) standard deviation, or 0 with fewer than
// two values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Returns converts a price series to simple period returns. Non-positive
// prices are skipped together with the return that would use them.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev <= 0 || prices[i] <= 0 {
			continue
		}
		out = append(out, (prices[i]-prev)/prev)
	}
	return out
}

// Pearson returns the correlation coefficient of two equal-length series.
// ok is false when the series are too short or either has zero variance.
func Pearson(x, y []float64) (r float64, ok bool) {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0, false
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return Clamp(sxy/math.Sqrt(sxx*syy), -1, 1), true
}

// Quantile returns the empirical q-quantile (lower nearest rank) of xs.
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(math.Floor(Clamp(q, 0, 1) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

var zTable = []struct {
	confidence float64
	z          float64
}{
	{0.90, 1.282},
	{0.95, 1.645},
	{0.99, 2.326},
}

// ZScore returns the one-sided normal z value for the supported confidence
// level closest to confidence (90%, 95% or 99%).
func ZScore(confidence float64) float64 {
	best := zTable[0]
	for _, e := range zTable[1:] {
		if math.Abs(e.confidence-confidence) < math.Abs(best.confidence-confidence) {
			best = e
		}
	}
	return best.z
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RidgeRegression fits y ≈ X·β minimising ‖y − Xβ‖² + λ‖β‖². Callers add
// an intercept column themselves. The normal equations are solved by
// Gaussian elimination with partial pivoting.
func RidgeRegression(X [][]float64, y []float64, lambda float64) ([]float64, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, ErrSingular
	}
	k := len(X[0])
	// augmented matrix [XᵀX + λI | Xᵀy]
	a := make([][]float64, k)
	for i := range a {
		a[i] = make([]float64, k+1)
	}
	for r, row := range X {
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				a[i][j] += row[i] * row[j]
			}
			a[i][k] += row[i] * y[r]
		}
	}
	for i := 0; i < k; i++ {
		a[i][i] += lambda
	}

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, ErrSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := 0; r < k; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for c := col; c <= k; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	beta := make([]float64, k)
	for i := 0; i < k; i++ {
		beta[i] = a[i][k] / a[i][i]
	}
	return beta, nil
}
