// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

// DistributionPropagator pushes a probability mass over the
// (income state x asset) grid forward in time using the interpolation
// weights implied by an asset policy and the income transition matrix.
//
// A propagator is not safe for concurrent use: Advance reuses an internal
// scratch matrix. Params and Grids are never mutated.
type DistributionPropagator struct {
	par   *Params
	grids *Grids
	log   *slog.Logger

	// scratch holds the asset-dimension redistribution before the income
	// transition is applied.
	scratch *mat.Dense
}

// NewDistributionPropagator builds a propagator over the given
// configuration and grids.
func NewDistributionPropagator(par *Params, grids *Grids, log *slog.Logger) *DistributionPropagator {
	ne := len(grids.EGrid)
	na := len(grids.AGrid)
	return &DistributionPropagator{
		par:     par,
		grids:   grids,
		log:     log,
		scratch: mat.NewDense(ne, na, nil),
	}
}

// Locate computes, for every cell, the asset-grid interval bracketing the
// policy's asset choice and the mass weight on its lower endpoint,
// writing them into w. Choices exactly on a grid point get weight exactly
// 1 (or 0 at the top of the grid); choices outside the grid are clamped
// to the boundary intervals.
func (p *DistributionPropagator) Locate(assets *mat.Dense, w *InterpWeights) {
	aGrid := p.grids.AGrid
	na := len(aGrid)

	var wg sync.WaitGroup
	for e := range p.grids.EGrid {
		wg.Add(1)
		go func(e int) {
			defer wg.Done()
			row := assets.RawRowView(e)
			idx := w.idx[e]
			wgt := w.wgt[e]
			for i := 0; i < na; i++ {
				a := row[i]
				j := binarySearch(aGrid, a)
				idx[i] = j
				// Clamping keeps boundary weights in [0,1]; interior
				// weights already are because aGrid[j] <= a < aGrid[j+1].
				wgt[i] = math.Min(math.Max((aGrid[j+1]-a)/(aGrid[j+1]-aGrid[j]), 0), 1)
			}
		}(e)
	}
	wg.Wait()
}

// Advance performs one forward step of the distribution: mass in each cell
// is split across the two bracketing asset grid points per the weights
// (income state held fixed), then the income transition is applied via the
// transposed transition matrix. The result is written into dNew, which
// must not alias d.
//
// Mass is conserved exactly up to floating rounding: the weights sum to 1
// within each cell and the transition matrix rows sum to 1, so no
// renormalization is performed.
func (p *DistributionPropagator) Advance(d *mat.Dense, w *InterpWeights, dNew *mat.Dense) {
	na := len(p.grids.AGrid)

	// Asset-dimension scatter. Each income state writes only its own row
	// of scratch, so the per-state goroutines never overlap.
	p.scratch.Zero()
	var wg sync.WaitGroup
	for e := range p.grids.EGrid {
		wg.Add(1)
		go func(e int) {
			defer wg.Done()
			src := d.RawRowView(e)
			dst := p.scratch.RawRowView(e)
			idx := w.idx[e]
			wgt := w.wgt[e]
			for i := 0; i < na; i++ {
				mass := src[i]
				j := idx[i]
				dst[j] += mass * wgt[i]
				dst[j+1] += mass * (1 - wgt[i])
			}
		}(e)
	}
	wg.Wait()

	// Income transition: every output state collects from all input
	// states. Serial dense phase, sequenced after the parallel scatter.
	dNew.Mul(p.grids.ETransT, p.scratch)
}

// DefaultDistribution returns the usual initial guess: the ergodic income
// distribution spread uniformly over the asset grid.
func DefaultDistribution(grids *Grids) *mat.Dense {
	ne := len(grids.EGrid)
	na := len(grids.AGrid)
	d := mat.NewDense(ne, na, nil)
	for e := 0; e < ne; e++ {
		row := d.RawRowView(e)
		mass := grids.EErgodic[e] / float64(na)
		for i := 0; i < na; i++ {
			row[i] = mass
		}
	}
	return d
}

// SimulateSteadyState iterates Advance to a fixed point of the
// distribution under the converged stationary policy. The weights are
// computed once up front since the policy does not change across
// iterations. d0, if non-nil, seeds the iteration; otherwise
// DefaultDistribution is used. Fails with a ConvergenceError when
// MaxIterSimulate is exhausted.
func (p *DistributionPropagator) SimulateSteadyState(pol *Policy, d0 *mat.Dense) (*mat.Dense, error) {
	start := time.Now()
	ne := len(p.grids.EGrid)
	na := len(p.grids.AGrid)

	w := NewInterpWeights(ne, na)
	p.Locate(pol.Assets, w)

	d := mat.NewDense(ne, na, nil)
	if d0 != nil {
		dr, dc := d0.Dims()
		if dr != ne || dc != na {
			return nil, fmt.Errorf("initial distribution is %dx%d, want %dx%d", dr, dc, ne, na)
		}
		d.Copy(d0)
	} else {
		d.Copy(DefaultDistribution(p.grids))
	}
	dNew := mat.NewDense(ne, na, nil)

	residual := math.Inf(1)
	for it := 0; it < p.par.MaxIterSimulate; it++ {
		p.Advance(d, w, dNew)

		residual = maxAbsDiff(dNew, d)
		d, dNew = dNew, d

		if residual < p.par.SimulateTol {
			p.log.Info("household distribution simulated",
				"iterations", it+1,
				"residual", residual,
				"elapsed", time.Since(start))
			return d, nil
		}
		p.log.Debug("simulate iteration", "it", it, "residual", residual)
	}

	return nil, &ConvergenceError{
		Loop:       "steady-state simulate",
		Iterations: p.par.MaxIterSimulate,
		Residual:   residual,
		Tol:        p.par.SimulateTol,
	}
}

// SimulatePath walks the distribution forward along a transition path:
// period t uses the weights implied by path[t]'s asset policy (recomputed
// every period since the policy varies along the path) and advances the
// previous period's distribution, starting from d0 (normally the
// stationary distribution). A single forward pass with no convergence
// check, mirroring the backward-solved policy path.
func (p *DistributionPropagator) SimulatePath(path []*Policy, d0 *mat.Dense) ([]*mat.Dense, error) {
	tpT := len(path)
	if tpT == 0 {
		return nil, fmt.Errorf("empty policy path")
	}
	ne := len(p.grids.EGrid)
	na := len(p.grids.AGrid)
	dr, dc := d0.Dims()
	if dr != ne || dc != na {
		return nil, fmt.Errorf("initial distribution is %dx%d, want %dx%d", dr, dc, ne, na)
	}

	start := time.Now()
	w := NewInterpWeights(ne, na)
	out := make([]*mat.Dense, tpT)

	for t := 0; t < tpT; t++ {
		p.Locate(path[t].Assets, w)

		dLag := d0
		if t > 0 {
			dLag = out[t-1]
		}
		out[t] = mat.NewDense(ne, na, nil)
		p.Advance(dLag, w, out[t])
	}

	p.log.Info("household distribution simulated along transition path",
		"periods", tpT,
		"elapsed", time.Since(start))
	return out, nil
}
