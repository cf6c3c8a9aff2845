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

// HouseholdSolver computes consumption/savings policies by the Endogenous
// Grid Method: a single backward step per period, iterated to a fixed
// point for the stationary problem or swept once backward in time along a
// transition path.
//
// A solver is not safe for concurrent use: Step reuses internal scratch
// buffers. Params and Grids are never mutated.
type HouseholdSolver struct {
	par   *Params
	grids *Grids
	log   *slog.Logger

	// betaTrans = beta * ETrans, fixed for the solver's lifetime.
	betaTrans *mat.Dense
	// margUPlus holds the post-decision expected marginal utility of the
	// current step.
	margUPlus *mat.Dense
}

// NewHouseholdSolver builds a solver over the given configuration and
// grids.
func NewHouseholdSolver(par *Params, grids *Grids, log *slog.Logger) *HouseholdSolver {
	ne := len(grids.EGrid)
	na := len(grids.AGrid)

	betaTrans := mat.NewDense(ne, ne, nil)
	betaTrans.Scale(par.Beta, grids.ETrans)

	return &HouseholdSolver{
		par:       par,
		grids:     grids,
		log:       log,
		betaTrans: betaTrans,
		margUPlus: mat.NewDense(ne, na, nil),
	}
}

// fillCashOnHand sets m[e,a] = (1+r)*AGrid[a] + w*EGrid[e].
func (s *HouseholdSolver) fillCashOnHand(r, w float64, m *mat.Dense) {
	for e := range s.grids.EGrid {
		row := m.RawRowView(e)
		labor := w * s.grids.EGrid[e]
		for a, ga := range s.grids.AGrid {
			row[a] = (1+r)*ga + labor
		}
	}
}

// Step performs one EGM time iteration at prices (r, w), taking vaP as the
// continuation marginal value and writing the period's policy into pol.
// vaP may alias pol.MarginalValue: the expectation is materialized before
// any output row is written.
//
// The per-income-state phase has no cross-state dependency, so each state
// runs on its own goroutine writing a disjoint row block; the output is
// bit-identical regardless of scheduling.
func (s *HouseholdSolver) Step(r, w float64, vaP *mat.Dense, pol *Policy) {
	// Post-decision expected marginal utility: beta * Pi @ Va'.
	// Serial dense phase; must complete before the parallel phase reads it.
	s.margUPlus.Mul(s.betaTrans, vaP)

	s.fillCashOnHand(r, w, pol.CashOnHand)

	sigma := s.par.Sigma
	aGrid := s.grids.AGrid
	na := len(aGrid)

	var wg sync.WaitGroup
	for e := range s.grids.EGrid {
		wg.Add(1)
		go func(e int) {
			defer wg.Done()

			mu := s.margUPlus.RawRowView(e)
			m := pol.CashOnHand.RawRowView(e)
			a := pol.Assets.RawRowView(e)
			c := pol.Consumption.RawRowView(e)
			va := pol.MarginalValue.RawRowView(e)

			// Invert the CRRA first-order condition on the endogenous grid.
			cEndo := make([]float64, na)
			mEndo := make([]float64, na)
			for i := 0; i < na; i++ {
				cEndo[i] = math.Pow(mu[i], -1/sigma)
				mEndo[i] = cEndo[i] + aGrid[i]
			}

			// Map the exogenous cash-on-hand grid back onto asset choices.
			interpMonotone(mEndo, aGrid, m, a)

			// Borrowing constraint binds at the bottom of the grid.
			a[0] = math.Max(a[0], 0)

			for i := 0; i < na; i++ {
				c[i] = m[i] - a[i]
				va[i] = (1 + r) * math.Pow(c[i], -sigma)
			}
		}(e)
	}
	wg.Wait()
}

// SolveSteadyState iterates Step to a fixed point of the asset policy at
// constant prices (r, w). warmVa, if non-nil, seeds the continuation
// marginal value; otherwise the default guess Va = (1+r)*(0.1*m)^(-sigma)
// is used. Fails with a ConvergenceError when MaxIterSolve is exhausted.
func (s *HouseholdSolver) SolveSteadyState(r, w float64, warmVa *mat.Dense) (*Policy, error) {
	start := time.Now()
	ne := len(s.grids.EGrid)
	na := len(s.grids.AGrid)

	pol := NewPolicy(ne, na)
	s.fillCashOnHand(r, w, pol.CashOnHand)

	if warmVa != nil {
		wr, wc := warmVa.Dims()
		if wr != ne || wc != na {
			return nil, fmt.Errorf("warm-start marginal value is %dx%d, want %dx%d", wr, wc, ne, na)
		}
		pol.MarginalValue.Copy(warmVa)
	} else {
		for e := 0; e < ne; e++ {
			m := pol.CashOnHand.RawRowView(e)
			va := pol.MarginalValue.RawRowView(e)
			for i := 0; i < na; i++ {
				va[i] = (1 + r) * math.Pow(0.1*m[i], -s.par.Sigma)
			}
		}
	}

	aOld := mat.NewDense(ne, na, nil)
	residual := math.Inf(1)

	for it := 0; it < s.par.MaxIterSolve; it++ {
		aOld.Copy(pol.Assets)
		s.Step(r, w, pol.MarginalValue, pol)

		residual = maxAbsDiff(pol.Assets, aOld)
		if residual < s.par.SolveTol {
			s.log.Info("household problem solved",
				"iterations", it+1,
				"residual", residual,
				"elapsed", time.Since(start))
			return pol, nil
		}
		s.log.Debug("solve iteration", "it", it, "residual", residual)
	}

	return nil, &ConvergenceError{
		Loop:       "steady-state solve",
		Iterations: s.par.MaxIterSolve,
		Residual:   residual,
		Tol:        s.par.SolveTol,
	}
}

// SolvePath solves the household problem along a transition path by
// backward induction: period T-1 uses terminalVa (the converged stationary
// marginal value) as its continuation, each earlier period uses its
// successor. Every period is solved exactly once; there is no convergence
// loop and no failure mode beyond malformed inputs.
func (s *HouseholdSolver) SolvePath(rPath, wPath []float64, terminalVa *mat.Dense) ([]*Policy, error) {
	tpT := len(rPath)
	if tpT == 0 {
		return nil, fmt.Errorf("empty rate path")
	}
	if len(wPath) != tpT {
		return nil, fmt.Errorf("rate path has %d periods but wage path has %d", tpT, len(wPath))
	}
	ne := len(s.grids.EGrid)
	na := len(s.grids.AGrid)
	tr, tc := terminalVa.Dims()
	if tr != ne || tc != na {
		return nil, fmt.Errorf("terminal marginal value is %dx%d, want %dx%d", tr, tc, ne, na)
	}

	start := time.Now()
	path := make([]*Policy, tpT)
	for t := range path {
		path[t] = NewPolicy(ne, na)
	}

	for t := tpT - 1; t >= 0; t-- {
		vaP := terminalVa
		if t < tpT-1 {
			vaP = path[t+1].MarginalValue
		}
		s.Step(rPath[t], wPath[t], vaP, path[t])
	}

	s.log.Info("household problem solved along transition path",
		"periods", tpT,
		"elapsed", time.Since(start))
	return path, nil
}
