package util

// Median is the 50th percentile with linear interpolation between the two
// middle values. sorted must be in ascending order and non-empty.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
