// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Firm is the representative firm with Cobb-Douglas technology
// Y = Z * k^alpha (k is capital per unit of labor). All methods are
// closed-form factor-price maps; nothing here iterates.
type Firm struct {
	Z     float64 // technology level
	Alpha float64 // capital share
	Delta float64 // depreciation rate
}

// NewFirm builds the firm block from the model configuration.
func NewFirm(par *Params) Firm {
	return Firm{Z: par.Z, Alpha: par.Alpha, Delta: par.Delta}
}

// ImpliedR returns the interest rate implied by capital intensity k under
// optimal firm behavior: r = Z*alpha*k^(alpha-1) - delta.
func (f Firm) ImpliedR(k float64) float64 {
	return f.Z*f.Alpha*math.Pow(k, f.Alpha-1) - f.Delta
}

// ImpliedW returns the wage implied by the interest rate r under optimal
// firm behavior.
func (f Firm) ImpliedW(r float64) float64 {
	return f.Z * (1 - f.Alpha) * math.Pow((r+f.Delta)/(f.Z*f.Alpha), f.Alpha/(f.Alpha-1))
}

// CapitalDemand returns the firm's demand for capital per unit of labor
// given the interest rate r.
func (f Firm) CapitalDemand(r float64) float64 {
	return math.Pow((r+f.Delta)/(f.Z*f.Alpha), 1/(f.Alpha-1))
}

// Production returns output at capital intensity k.
func (f Firm) Production(k float64) float64 {
	return f.Z * math.Pow(k, f.Alpha)
}

// SteadyState collects the stationary-equilibrium aggregates: prices,
// firm-side output and capital demand, and the household-side capital
// supply and consumption read off the converged policy and distribution.
type SteadyState struct {
	R       float64 // interest rate
	W       float64 // wage
	Y       float64 // output
	KDemand float64 // firm capital demand
	KSupply float64 // household capital supply (mass-weighted assets)
	C       float64 // aggregate consumption (mass-weighted)
}

// ComputeSteadyState aggregates a converged stationary policy and
// distribution and pairs them with the firm's closed forms at rate r.
// Pure read-only reduction.
func ComputeSteadyState(firm Firm, r float64, pol *Policy, d *mat.Dense) SteadyState {
	kd := firm.CapitalDemand(r)
	return SteadyState{
		R:       r,
		W:       firm.ImpliedW(r),
		Y:       firm.Production(kd),
		KDemand: kd,
		KSupply: massWeightedSum(d, pol.Assets),
		C:       massWeightedSum(d, pol.Consumption),
	}
}

// CapitalResidual is the capital-market clearing gap: supply minus demand.
// Zero at a general equilibrium rate.
func (ss SteadyState) CapitalResidual() float64 {
	return ss.KSupply - ss.KDemand
}

// GoodsResidual is the goods-market clearing gap:
// Y - C - delta*K_supply. Zero at a general equilibrium rate.
func (ss SteadyState) GoodsResidual(delta float64) float64 {
	return ss.Y - ss.C - delta*ss.KSupply
}

// AggregatePath reduces a solved policy path and its simulated
// distribution path to per-period capital supply and consumption series.
func AggregatePath(path []*Policy, dPath []*mat.Dense) (capital, consumption []float64) {
	capital = make([]float64, len(path))
	consumption = make([]float64, len(path))
	for t := range path {
		capital[t] = massWeightedSum(dPath[t], path[t].Assets)
		consumption[t] = massWeightedSum(dPath[t], path[t].Consumption)
	}
	return capital, consumption
}
