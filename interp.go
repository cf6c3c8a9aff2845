// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

// binarySearch returns the index i of the interval of x that brackets xi:
// x[i] <= xi < x[i+1], with clamped boundaries. Queries at or below x[0]
// return 0; queries at or above x[len(x)-2] return len(x)-2, so i+1 is
// always a valid index. x must be sorted ascending with at least two
// points.
//
// Both the policy solver's interpolation and the propagator's weight
// computation go through this function, which keeps their bracketing
// conventions identical.
func binarySearch(x []float64, xi float64) int {
	nx := len(x)

	if xi <= x[0] {
		return 0
	}
	if xi >= x[nx-2] {
		return nx - 2
	}

	imin := 0
	half := nx / 2
	for half != 0 {
		imid := imin + half
		if x[imid] <= xi {
			imin = imid
		}
		nx -= half
		half = nx / 2
	}
	return imin
}

// interpMonotone evaluates the piecewise-linear map defined by the
// monotone abscissa x and ordinates y at every query point, writing
// results into out (len(out) == len(q)). Queries outside [x[0], x[n-1]]
// take the endpoint value (flat extrapolation), which keeps interpolated
// asset choices inside the grid and the propagator's weights in [0,1].
func interpMonotone(x, y, q, out []float64) {
	n := len(x)
	for k, xi := range q {
		if xi <= x[0] {
			out[k] = y[0]
			continue
		}
		if xi >= x[n-1] {
			out[k] = y[n-1]
			continue
		}
		i := binarySearch(x, xi)
		rel := (xi - x[i]) / (x[i+1] - x[i])
		out[k] = y[i] + rel*(y[i+1]-y[i])
	}
}
