// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// TestLocateExactOnGridPoints: an asset choice landing exactly on a grid
// point must get weight exactly 1 (or 0 at the top interval) so no mass
// smears to the neighboring point.
func TestLocateExactOnGridPoints(t *testing.T) {
	par, grids := toyModel()
	prop := NewDistributionPropagator(par, grids, testLogger())

	assets := mat.NewDense(1, 3, []float64{0, 1, 5})
	w := NewInterpWeights(1, 3)
	prop.Locate(assets, w)

	assert.Equal(t, 0, w.idx[0][0])
	assert.Equal(t, 1.0, w.wgt[0][0], "choice at grid[0] must put all mass on grid[0]")

	assert.Equal(t, 1, w.idx[0][1])
	assert.Equal(t, 1.0, w.wgt[0][1], "choice at grid[1] must put all mass on grid[1]")

	assert.Equal(t, 1, w.idx[0][2])
	assert.Equal(t, 0.0, w.wgt[0][2], "choice at the grid maximum must put all mass on the last point")
}

// TestLocateInteriorAndClamped checks proportional weights between grid
// points and clamping outside the grid.
func TestLocateInteriorAndClamped(t *testing.T) {
	par, grids := toyModel()
	prop := NewDistributionPropagator(par, grids, testLogger())

	assets := mat.NewDense(1, 3, []float64{0.25, 3, 7})
	w := NewInterpWeights(1, 3)
	prop.Locate(assets, w)

	// 0.25 sits a quarter into [0,1]: weight 0.75 on the lower point.
	assert.Equal(t, 0, w.idx[0][0])
	assert.InDelta(t, 0.75, w.wgt[0][0], 1e-15)

	// 3 sits halfway into [1,5].
	assert.Equal(t, 1, w.idx[0][1])
	assert.InDelta(t, 0.5, w.wgt[0][1], 1e-15)

	// 7 is above the grid: clamped to the last interval with weight 0.
	assert.Equal(t, 1, w.idx[0][2])
	assert.Equal(t, 0.0, w.wgt[0][2])
}

// TestAdvanceConservesMass: one forward step of a solved model must keep
// the distribution non-negative and summing to one within 1e-9.
func TestAdvanceConservesMass(t *testing.T) {
	par, grids := smallModel(t)
	solver := NewHouseholdSolver(par, grids, testLogger())
	prop := NewDistributionPropagator(par, grids, testLogger())

	r := 0.02
	pol, err := solver.SolveSteadyState(r, NewFirm(par).ImpliedW(r), nil)
	require.NoError(t, err)

	w := NewInterpWeights(par.Ne, par.Na)
	prop.Locate(pol.Assets, w)

	d := DefaultDistribution(grids)
	require.InDelta(t, 1.0, matSum(d), 1e-12, "initial guess must be a distribution")

	dNew := mat.NewDense(par.Ne, par.Na, nil)
	for step := 0; step < 25; step++ {
		prop.Advance(d, w, dNew)
		assert.InDelta(t, 1.0, matSum(dNew), 1e-9, "mass must be conserved at step %d", step)
		for e := 0; e < par.Ne; e++ {
			row := dNew.RawRowView(e)
			for a := 0; a < par.Na; a++ {
				assert.GreaterOrEqual(t, row[a], 0.0, "mass must stay non-negative at (%d,%d)", e, a)
			}
		}
		d, dNew = dNew, d
	}
}

// TestSimulateSteadyState: the distribution iteration converges and one
// further step moves it by less than the simulate tolerance.
func TestSimulateSteadyState(t *testing.T) {
	par, grids := smallModel(t)
	solver := NewHouseholdSolver(par, grids, testLogger())
	prop := NewDistributionPropagator(par, grids, testLogger())

	r := 0.02
	pol, err := solver.SolveSteadyState(r, NewFirm(par).ImpliedW(r), nil)
	require.NoError(t, err)

	d, err := prop.SimulateSteadyState(pol, nil)
	require.NoError(t, err, "stationary distribution must converge within the cap")
	assert.InDelta(t, 1.0, matSum(d), 1e-9)

	// Idempotence at the fixed point.
	w := NewInterpWeights(par.Ne, par.Na)
	prop.Locate(pol.Assets, w)
	dNew := mat.NewDense(par.Ne, par.Na, nil)
	prop.Advance(d, w, dNew)
	assert.Less(t, maxAbsDiff(dNew, d), par.SimulateTol,
		"a converged distribution must be a fixed point of Advance")
}

// TestSimulateSteadyStateMarginals: integrating the stationary joint
// distribution over assets must recover the ergodic income distribution,
// since the income transition is applied every step.
func TestSimulateSteadyStateMarginals(t *testing.T) {
	par, grids := smallModel(t)
	solver := NewHouseholdSolver(par, grids, testLogger())
	prop := NewDistributionPropagator(par, grids, testLogger())

	r := 0.02
	pol, err := solver.SolveSteadyState(r, NewFirm(par).ImpliedW(r), nil)
	require.NoError(t, err)
	d, err := prop.SimulateSteadyState(pol, nil)
	require.NoError(t, err)

	for e := 0; e < par.Ne; e++ {
		marginal := 0.0
		row := d.RawRowView(e)
		for a := 0; a < par.Na; a++ {
			marginal += row[a]
		}
		assert.InDelta(t, grids.EErgodic[e], marginal, 1e-6,
			"income marginal must match the ergodic distribution at state %d", e)
	}
}

// TestSimulateSteadyStateConvergenceFailure surfaces the loop diagnostics
// when the iteration budget is exhausted.
func TestSimulateSteadyStateConvergenceFailure(t *testing.T) {
	par, grids := smallModel(t)
	solver := NewHouseholdSolver(par, grids, testLogger())

	r := 0.02
	pol, err := solver.SolveSteadyState(r, NewFirm(par).ImpliedW(r), nil)
	require.NoError(t, err)

	par.MaxIterSimulate = 1
	prop := NewDistributionPropagator(par, grids, testLogger())
	_, err = prop.SimulateSteadyState(pol, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConvergence)

	var convErr *ConvergenceError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "steady-state simulate", convErr.Loop)
	assert.Equal(t, 1, convErr.Iterations)
	assert.Greater(t, convErr.Residual, par.SimulateTol)
}

// TestSimulatePath: a forward pass conserves mass every period and
// rejects malformed inputs.
func TestSimulatePath(t *testing.T) {
	par, grids := smallModel(t)
	solver := NewHouseholdSolver(par, grids, testLogger())
	prop := NewDistributionPropagator(par, grids, testLogger())
	firm := NewFirm(par)

	rSS := 0.02
	pol, err := solver.SolveSteadyState(rSS, firm.ImpliedW(rSS), nil)
	require.NoError(t, err)
	d0, err := prop.SimulateSteadyState(pol, nil)
	require.NoError(t, err)

	tpT := 10
	rPath := make([]float64, tpT)
	wPath := make([]float64, tpT)
	for tt := 0; tt < tpT; tt++ {
		rPath[tt] = rSS + 0.001*pow(0.8, tt)
		wPath[tt] = firm.ImpliedW(rPath[tt])
	}
	path, err := solver.SolvePath(rPath, wPath, pol.MarginalValue)
	require.NoError(t, err)

	dPath, err := prop.SimulatePath(path, d0)
	require.NoError(t, err)
	require.Len(t, dPath, tpT)
	for tt := 0; tt < tpT; tt++ {
		assert.InDelta(t, 1.0, matSum(dPath[tt]), 1e-9, "mass must be conserved at period %d", tt)
	}

	_, err = prop.SimulatePath(nil, d0)
	assert.Error(t, err, "empty policy path must be rejected")
	_, err = prop.SimulatePath(path, mat.NewDense(1, 1, nil))
	assert.Error(t, err, "mis-shaped initial distribution must be rejected")
}

// TestDefaultDistribution: the default guess is the ergodic income
// distribution spread uniformly over assets.
func TestDefaultDistribution(t *testing.T) {
	_, grids := smallModel(t)
	d := DefaultDistribution(grids)

	assert.InDelta(t, 1.0, matSum(d), 1e-12)
	for e := range grids.EGrid {
		row := d.RawRowView(e)
		want := grids.EErgodic[e] / float64(len(grids.AGrid))
		for a := range grids.AGrid {
			assert.Equal(t, want, row[a])
		}
	}
}
