// Package smooth de-noises a score series with a trailing moving average.
package smooth

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Trailing returns a same-length series where position i holds the unweighted
// mean of values[i-window+1..i]. The first window-1 positions are NaN
// (insufficient history). A window below 2 disables smoothing: every position
// comes back NaN. The input is never modified.
func Trailing(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		out[i] = stat.Mean(values[i-window+1:i+1], nil)
	}
	return out
}
