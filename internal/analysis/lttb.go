package analysis

import "math"

// LTTB returns the indices of the points kept by Largest-Triangle-Three-Buckets
// downsampling of (x, y) to k points. The first and last points are always
// kept, indices are strictly increasing and the output length is min(k, n).
// x must be strictly increasing.
func LTTB(x, y []float64, k int) []int {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	switch {
	case k <= 0 || n == 0:
		return []int{}
	case k >= n:
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	case k == 1:
		return []int{0}
	case k == 2:
		return []int{0, n - 1}
	}

	// Interior points [1, n-2] split into k-2 buckets with integer bounds so
	// the result never depends on float rounding.
	bound := func(i int) int { return 1 + i*(n-2)/(k-2) }

	out := make([]int, 0, k)
	out = append(out, 0)
	a := 0
	for b := 0; b < k-2; b++ {
		lo, hi := bound(b), bound(b+1)

		var avgX, avgY float64
		if b+1 < k-2 {
			nlo, nhi := bound(b+1), bound(b+2)
			for j := nlo; j < nhi; j++ {
				avgX += x[j]
				avgY += y[j]
			}
			cnt := float64(nhi - nlo)
			avgX /= cnt
			avgY /= cnt
		} else {
			avgX, avgY = x[n-1], y[n-1]
		}

		best, bestArea := lo, -1.0
		for j := lo; j < hi; j++ {
			area := math.Abs((x[a]-avgX)*(y[j]-y[a]) - (x[a]-x[j])*(avgY-y[a]))
			if area > bestArea {
				best, bestArea = j, area
			}
		}
		out = append(out, best)
		a = best
	}
	return append(out, n-1)
}
