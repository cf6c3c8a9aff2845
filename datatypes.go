// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Params holds the model configuration. It is read-only for the lifetime
// of a solve or simulate run; every engine receives it by pointer and
// never mutates it.
type Params struct {
	// Preferences
	Sigma float64 // CRRA coefficient
	Beta  float64 // discount factor

	// Production
	Z     float64 // technology level
	Alpha float64 // Cobb-Douglas capital share
	Delta float64 // depreciation rate

	// Income process
	Rho    float64 // AR(1) persistence of log income
	SigmaE float64 // std. of the persistent shock
	Ne     int     // number of discretized income states

	// Asset grid
	AMax float64 // maximum asset holding on the grid
	Na   int     // number of asset grid points

	// Transition path
	TpT int // number of periods on the transition path

	// Iteration control
	MaxIterSolve    int     // iteration cap for the policy fixed point
	MaxIterSimulate int     // iteration cap for the distribution fixed point
	SolveTol        float64 // sup-norm tolerance on the asset policy
	SimulateTol     float64 // sup-norm tolerance on the distribution
}

// Grids bundles the discretized state space: the asset grid and the
// discretized income process. Immutable after construction; shared
// read-only by the solver and the propagator.
type Grids struct {
	// AGrid is the asset grid: strictly increasing, AGrid[0] = 0
	// (the borrowing constraint).
	AGrid []float64

	// EGrid holds the income levels, normalized to unit mean income
	// under the ergodic distribution.
	EGrid []float64

	// ETrans is the Ne x Ne row-stochastic income transition matrix.
	ETrans *mat.Dense

	// ETransT is the transpose of ETrans, precomputed once because the
	// distribution iteration applies it every step.
	ETransT *mat.Dense

	// EErgodic is the stationary distribution of ETrans.
	EErgodic []float64
}

// Policy holds one period's household decision rules on the
// (income state x asset) grid. All matrices are Ne x Na. Mutated only by
// the HouseholdSolver.
type Policy struct {
	// Assets is the end-of-period asset choice a'(e,a), always >= 0.
	Assets *mat.Dense

	// Consumption is c(e,a) = CashOnHand - Assets, exact by construction.
	Consumption *mat.Dense

	// CashOnHand is m(e,a) = (1+r)*AGrid[a] + w*EGrid[e].
	CashOnHand *mat.Dense

	// MarginalValue is Va(e,a) = (1+r)*c^(-sigma), the envelope condition.
	MarginalValue *mat.Dense
}

// NewPolicy allocates a zeroed policy of shape ne x na.
func NewPolicy(ne, na int) *Policy {
	return &Policy{
		Assets:        mat.NewDense(ne, na, nil),
		Consumption:   mat.NewDense(ne, na, nil),
		CashOnHand:    mat.NewDense(ne, na, nil),
		MarginalValue: mat.NewDense(ne, na, nil),
	}
}

// InterpWeights decomposes each cell's off-grid asset choice into mass on
// the two bracketing asset grid points: weight wgt[e][a] at AGrid[idx[e][a]]
// and 1-wgt[e][a] at AGrid[idx[e][a]+1]. Recomputed from the current
// policy before every propagation run.
type InterpWeights struct {
	idx [][]int
	wgt [][]float64
}

// NewInterpWeights allocates weights of shape ne x na.
func NewInterpWeights(ne, na int) *InterpWeights {
	w := &InterpWeights{
		idx: make([][]int, ne),
		wgt: make([][]float64, ne),
	}
	for e := 0; e < ne; e++ {
		w.idx[e] = make([]int, na)
		w.wgt[e] = make([]float64, na)
	}
	return w
}

// ErrConvergence is the sentinel for any fixed-point loop that exhausts
// its iteration budget. Retrying with identical inputs is deterministic
// and would fail identically; callers should change the initial guess,
// tolerance, or prices instead.
var ErrConvergence = errors.New("fixed-point iteration exceeded maximum iterations")

// ConvergenceError reports which loop failed, how many iterations it ran,
// and the last residual it observed against its tolerance.
type ConvergenceError struct {
	Loop       string  // "steady-state solve", "steady-state simulate", "ergodic"
	Iterations int     // iterations performed before giving up
	Residual   float64 // last sup-norm residual
	Tol        float64 // tolerance the residual failed to meet
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s did not converge after %d iterations (residual %.3e, tolerance %.3e)",
		e.Loop, e.Iterations, e.Residual, e.Tol)
}

func (e *ConvergenceError) Unwrap() error { return ErrConvergence }

// maxAbsDiff returns the sup-norm distance between two matrices of equal
// shape. Used as the convergence residual by both fixed-point loops.
func maxAbsDiff(a, b *mat.Dense) float64 {
	r, c := a.Dims()
	maxDiff := 0.0
	for i := 0; i < r; i++ {
		ra := a.RawRowView(i)
		rb := b.RawRowView(i)
		for j := 0; j < c; j++ {
			d := math.Abs(ra[j] - rb[j])
			if d > maxDiff {
				maxDiff = d
			}
		}
	}
	return maxDiff
}

// massWeightedSum returns sum_{e,a} d[e,a]*x[e,a], the aggregation used
// for capital supply and aggregate consumption.
func massWeightedSum(d, x *mat.Dense) float64 {
	r, c := d.Dims()
	total := 0.0
	for i := 0; i < r; i++ {
		rd := d.RawRowView(i)
		rx := x.RawRowView(i)
		for j := 0; j < c; j++ {
			total += rd[j] * rx[j]
		}
	}
	return total
}
