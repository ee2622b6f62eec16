// Package changepoint implements penalized segmentation (PELT) and
// cumulative-sum drift detection over scalar metric series.
package changepoint

import (
	"fmt"
	"math"
	"sort"
)

// CostModel selects the segment cost function for PELT.
type CostModel string

const (
	// CostL2 is the additive Gaussian-like cost: sum of squared
	// deviations from the segment mean.
	CostL2 CostModel = "l2"
	// CostRBF is the distribution-free kernelized cost built on a
	// Gaussian kernel with median-heuristic bandwidth.
	CostRBF CostModel = "rbf"
)

// ParseCostModel validates a cost model name; empty defaults to l2.
func ParseCostModel(s string) (CostModel, error) {
	switch CostModel(s) {
	case "":
		return CostL2, nil
	case CostL2, CostRBF:
		return CostModel(s), nil
	}
	return "", fmt.Errorf("unknown cost model %q", s)
}

// Segments shorter than this are never produced; segmentation on a
// single point is undefined.
const minSegment = 2

// Pelt runs exact penalized segmentation over a 1-D signal and returns
// the ordered regime boundaries, always including len(signal) as the
// terminal sentinel. A signal shorter than two points returns
// {0, len(signal)} without running the algorithm.
func Pelt(signal []float64, model CostModel, penalty float64) []int {
	n := len(signal)
	if n < minSegment {
		return []int{0, n}
	}

	var cost func(s, e int) float64
	switch model {
	case CostRBF:
		cost = rbfCost(signal)
	default:
		cost = l2Cost(signal)
	}

	inf := math.Inf(1)
	best := make([]float64, n+1)
	prev := make([]int, n+1)
	for i := range best {
		best[i] = inf
	}
	best[0] = -penalty

	candidates := []int{0}
	for t := minSegment; t <= n; t++ {
		bestCost := inf
		bestStart := 0
		for _, s := range candidates {
			if t-s < minSegment {
				continue
			}
			c := best[s] + cost(s, t) + penalty
			if c < bestCost {
				bestCost = c
				bestStart = s
			}
		}
		best[t] = bestCost
		prev[t] = bestStart

		// Prune starts that can never improve on the current optimum.
		pruned := candidates[:0]
		for _, s := range candidates {
			if t-s < minSegment || best[s]+cost(s, t) <= best[t] {
				pruned = append(pruned, s)
			}
		}
		candidates = append(pruned, t)
	}

	var bkps []int
	for t := n; t > 0; t = prev[t] {
		bkps = append(bkps, t)
	}
	sort.Ints(bkps)
	return bkps
}

// l2Cost returns a constant-time segment cost backed by prefix sums.
func l2Cost(signal []float64) func(s, e int) float64 {
	n := len(signal)
	sum := make([]float64, n+1)
	sumSq := make([]float64, n+1)
	for i, v := range signal {
		sum[i+1] = sum[i] + v
		sumSq[i+1] = sumSq[i] + v*v
	}
	return func(s, e int) float64 {
		length := float64(e - s)
		segSum := sum[e] - sum[s]
		return sumSq[e] - sumSq[s] - segSum*segSum/length
	}
}

// rbfCost precomputes the Gram matrix of a Gaussian kernel and serves
// segment costs from its 2-D prefix sums.
func rbfCost(signal []float64) func(s, e int) float64 {
	n := len(signal)

	// Median heuristic for the kernel bandwidth.
	var dists []float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := signal[i] - signal[j]
			dists = append(dists, d*d)
		}
	}
	gamma := 1.0
	if m := median(dists); m > 0 {
		gamma = 1.0 / m
	}

	// prefix[i][j] = sum of K[0:i][0:j]
	prefix := make([][]float64, n+1)
	for i := range prefix {
		prefix[i] = make([]float64, n+1)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := signal[i] - signal[j]
			k := math.Exp(-gamma * d * d)
			prefix[i+1][j+1] = k + prefix[i][j+1] + prefix[i+1][j] - prefix[i][j]
		}
	}

	return func(s, e int) float64 {
		length := float64(e - s)
		segSum := prefix[e][e] - prefix[s][e] - prefix[e][s] + prefix[s][s]
		return length - segSum/length
	}
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
