// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Iteration control for the ergodic-distribution power iteration. The
// income chains here are tiny (Ne ~ 7) and mix fast, so these never bind
// on well-formed inputs.
const (
	ergodicTol     = 1e-13
	ergodicMaxIter = 10000
)

// NewGrids constructs the asset grid and the discretized income process
// from the configuration and validates them. Idempotent: the same Params
// always produce the same grids.
func NewGrids(par *Params) (*Grids, error) {
	eGrid, eTrans, eErgodic, err := markovRouwenhorst(par.Rho, par.SigmaE, par.Ne)
	if err != nil {
		return nil, fmt.Errorf("income process: %w", err)
	}

	g := &Grids{
		AGrid:    equilogspace(0, par.AMax, par.Na),
		EGrid:    eGrid,
		ETrans:   eTrans,
		EErgodic: eErgodic,
	}
	g.ETransT = mat.DenseCopyOf(eTrans.T())

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate fails fast on malformed grids: a non-increasing asset grid,
// a first grid point away from the borrowing constraint, or a transition
// matrix whose rows do not sum to one.
func (g *Grids) Validate() error {
	if len(g.AGrid) < 2 {
		return fmt.Errorf("asset grid needs at least 2 points, got %d", len(g.AGrid))
	}
	if g.AGrid[0] != 0 {
		return fmt.Errorf("asset grid must start at the borrowing constraint 0, got %g", g.AGrid[0])
	}
	for i := 1; i < len(g.AGrid); i++ {
		if g.AGrid[i] <= g.AGrid[i-1] {
			return fmt.Errorf("asset grid not strictly increasing at index %d: %g <= %g",
				i, g.AGrid[i], g.AGrid[i-1])
		}
	}

	ne := len(g.EGrid)
	r, c := g.ETrans.Dims()
	if r != ne || c != ne {
		return fmt.Errorf("transition matrix is %dx%d, want %dx%d", r, c, ne, ne)
	}
	if len(g.EErgodic) != ne {
		return fmt.Errorf("ergodic distribution has %d entries, want %d", len(g.EErgodic), ne)
	}
	for i := 0; i < ne; i++ {
		rowSum := 0.0
		for j := 0; j < ne; j++ {
			p := g.ETrans.At(i, j)
			if p < 0 {
				return fmt.Errorf("transition matrix has negative entry at (%d,%d): %g", i, j, p)
			}
			rowSum += p
		}
		if math.Abs(rowSum-1) > 1e-10 {
			return fmt.Errorf("transition matrix row %d sums to %.12f, want 1", i, rowSum)
		}
	}
	ergSum := 0.0
	for _, p := range g.EErgodic {
		ergSum += p
	}
	if math.Abs(ergSum-1) > 1e-10 {
		return fmt.Errorf("ergodic distribution sums to %.12f, want 1", ergSum)
	}
	return nil
}

// equilogspace returns n points from xMin to xMax, spaced geometrically
// around a pivot offset of 0.25 so the grid packs points near the
// borrowing constraint where the policy function curves most. The first
// point is set to xMin exactly.
func equilogspace(xMin, xMax float64, n int) []float64 {
	pivot := math.Abs(xMin) + 0.25
	lo := math.Log(xMin + pivot)
	hi := math.Log(xMax + pivot)

	y := make([]float64, n)
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n-1)
		y[i] = math.Exp(lo+f*(hi-lo)) - pivot
	}
	y[0] = xMin
	return y
}

// markovRouwenhorst discretizes the AR(1) log-income process
// log e' = rho*log e + eps, eps ~ N(0, sigma^2), into an n-state Markov
// chain using the Rouwenhorst method. Income levels are scaled so mean
// income under the ergodic distribution is exactly 1.
func markovRouwenhorst(rho, sigma float64, n int) (levels []float64, trans *mat.Dense, ergodic []float64, err error) {
	if n < 1 {
		return nil, nil, nil, fmt.Errorf("need at least one income state, got %d", n)
	}
	if n == 1 {
		// Degenerate chain: a single state with unit income.
		return []float64{1}, mat.NewDense(1, 1, []float64{1}), []float64{1}, nil
	}
	if sigma <= 0 {
		return nil, nil, nil, fmt.Errorf("shock std must be positive with %d states, got %g", n, sigma)
	}

	trans = rouwenhorstTransition(rho, n)

	ergodic, err = ergodicDistribution(trans)
	if err != nil {
		return nil, nil, nil, err
	}

	// Evenly spaced log-income states, rescaled to the target dispersion.
	s := make([]float64, n)
	for i := 0; i < n; i++ {
		s[i] = -1 + 2*float64(i)/float64(n-1)
	}
	mean := 0.0
	for i := 0; i < n; i++ {
		mean += ergodic[i] * s[i]
	}
	variance := 0.0
	for i := 0; i < n; i++ {
		d := s[i] - mean
		variance += ergodic[i] * d * d
	}
	scale := sigma / math.Sqrt(variance)

	levels = make([]float64, n)
	meanIncome := 0.0
	for i := 0; i < n; i++ {
		levels[i] = math.Exp(s[i] * scale)
		meanIncome += ergodic[i] * levels[i]
	}
	for i := 0; i < n; i++ {
		levels[i] /= meanIncome
	}

	return levels, trans, ergodic, nil
}

// rouwenhorstTransition builds the n-state Rouwenhorst transition matrix
// by growing the 2-state chain one state at a time: each n-1 matrix is
// embedded into the four corners of the n matrix and interior rows are
// halved to restore row sums.
func rouwenhorstTransition(rho float64, n int) *mat.Dense {
	p := (1 + rho) / 2

	cur := [][]float64{
		{p, 1 - p},
		{1 - p, p},
	}

	for m := 3; m <= n; m++ {
		next := make([][]float64, m)
		for i := range next {
			next[i] = make([]float64, m)
		}
		for i := 0; i < m-1; i++ {
			for j := 0; j < m-1; j++ {
				v := cur[i][j]
				next[i][j] += p * v
				next[i][j+1] += (1 - p) * v
				next[i+1][j] += (1 - p) * v
				next[i+1][j+1] += p * v
			}
		}
		for i := 1; i < m-1; i++ {
			for j := 0; j < m; j++ {
				next[i][j] /= 2
			}
		}
		cur = next
	}

	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		copy(data[i*n:(i+1)*n], cur[i])
	}
	return mat.NewDense(n, n, data)
}

// ergodicDistribution finds the stationary distribution of a
// row-stochastic matrix by power iteration on its transpose, starting
// from the uniform distribution.
func ergodicDistribution(trans *mat.Dense) ([]float64, error) {
	n, _ := trans.Dims()

	pi := make([]float64, n)
	for i := range pi {
		pi[i] = 1 / float64(n)
	}
	next := make([]float64, n)

	residual := math.Inf(1)
	for it := 0; it < ergodicMaxIter; it++ {
		// next = pi @ trans
		for j := 0; j < n; j++ {
			next[j] = 0
		}
		for i := 0; i < n; i++ {
			row := trans.RawRowView(i)
			for j := 0; j < n; j++ {
				next[j] += pi[i] * row[j]
			}
		}

		residual = 0
		for j := 0; j < n; j++ {
			if d := math.Abs(next[j] - pi[j]); d > residual {
				residual = d
			}
		}
		pi, next = next, pi

		if residual < ergodicTol {
			return pi, nil
		}
	}

	return nil, &ConvergenceError{
		Loop:       "ergodic",
		Iterations: ergodicMaxIter,
		Residual:   residual,
		Tol:        ergodicTol,
	}
}
