// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// testLogger silences engine logging in tests.
func testLogger() *slog.Logger {
	return NewLogger("error", io.Discard)
}

// toyModel is the minimal scenario: one income state, three asset grid
// points, no income risk.
func toyModel() (*Params, *Grids) {
	par := &Params{
		Sigma: 1.0,
		Beta:  0.95,
		Z:     1.0,
		Alpha: 0.11,
		Delta: 0.025,
		Ne:    1,
		AMax:  5.0,
		Na:    3,
		TpT:   10,

		MaxIterSolve:    5000,
		MaxIterSimulate: 5000,
		SolveTol:        1e-10,
		SimulateTol:     1e-10,
	}
	trans := mat.NewDense(1, 1, []float64{1})
	grids := &Grids{
		AGrid:    []float64{0, 1, 5},
		EGrid:    []float64{1},
		ETrans:   trans,
		ETransT:  mat.DenseCopyOf(trans.T()),
		EErgodic: []float64{1},
	}
	return par, grids
}

// smallModel is a fast but non-degenerate model: three income states on a
// Rouwenhorst chain and a coarse asset grid.
func smallModel(t *testing.T) (*Params, *Grids) {
	t.Helper()
	par := &Params{
		Sigma:  1.0,
		Beta:   0.95,
		Z:      1.0,
		Alpha:  0.11,
		Delta:  0.025,
		Rho:    0.9,
		SigmaE: 0.4,
		Ne:     3,
		AMax:   20.0,
		Na:     40,
		TpT:    20,

		MaxIterSolve:    5000,
		MaxIterSimulate: 5000,
		SolveTol:        1e-10,
		SimulateTol:     1e-10,
	}
	grids, err := NewGrids(par)
	require.NoError(t, err, "small model grids must construct")
	return par, grids
}

// matSum adds up every element of a matrix.
func matSum(m *mat.Dense) float64 {
	r, c := m.Dims()
	total := 0.0
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := 0; j < c; j++ {
			total += row[j]
		}
	}
	return total
}
