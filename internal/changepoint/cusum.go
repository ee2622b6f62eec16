package changepoint

import "math"

// Cusum flags drift points in a 1-D signal. It accumulates the running
// sum of deviations from the series mean and reports every index whose
// absolute cumulative deviation exceeds threshold times the standard
// deviation of the cumulative-sum series. O(n), coarser than PELT.
func Cusum(signal []float64, threshold float64) []int {
	n := len(signal)
	if n < 2 {
		return nil
	}

	var sum float64
	for _, v := range signal {
		sum += v
	}
	mean := sum / float64(n)

	cum := make([]float64, n)
	running := 0.0
	for i, v := range signal {
		running += v - mean
		cum[i] = running
	}

	var sq float64
	var cumMean float64
	for _, c := range cum {
		cumMean += c
	}
	cumMean /= float64(n)
	for _, c := range cum {
		d := c - cumMean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(n))
	if std == 0 {
		return nil
	}

	var flagged []int
	for i, c := range cum {
		if math.Abs(c) > threshold*std {
			flagged = append(flagged, i)
		}
	}
	return flagged
}
