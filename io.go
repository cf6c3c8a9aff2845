// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// LoadRatePathCSV loads an interest-rate path from a single-column CSV
// file with a header row. Row t holds r[t].
func LoadRatePathCSV(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 1 {
		return nil, fmt.Errorf("rate path file must have exactly one column, got %d", len(header))
	}

	var rates []float64
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}
		v, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parse rate at row %d (%q): %w", row+2, record[0], err)
		}
		rates = append(rates, v)
		row++
	}

	if len(rates) == 0 {
		return nil, fmt.Errorf("no rates in %s", path)
	}
	return rates, nil
}

// OutputPolicyToCSV writes the stationary policy cell by cell with the
// columns: e, a, asset_grid, income, assets, consumption, cash_on_hand.
func OutputPolicyToCSV(path string, grids *Grids, pol *Policy) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"e", "a", "asset_grid", "income", "assets", "consumption", "cash_on_hand"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for e := range grids.EGrid {
		for a := range grids.AGrid {
			record := []string{
				strconv.Itoa(e),
				strconv.Itoa(a),
				formatFloat(grids.AGrid[a]),
				formatFloat(grids.EGrid[e]),
				formatFloat(pol.Assets.At(e, a)),
				formatFloat(pol.Consumption.At(e, a)),
				formatFloat(pol.CashOnHand.At(e, a)),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	return nil
}

// OutputDistributionToCSV writes the stationary distribution cell by cell
// with the columns: e, a, asset_grid, mass.
func OutputDistributionToCSV(path string, grids *Grids, d *mat.Dense) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"e", "a", "asset_grid", "mass"}); err != nil {
		return err
	}

	for e := range grids.EGrid {
		for a := range grids.AGrid {
			record := []string{
				strconv.Itoa(e),
				strconv.Itoa(a),
				formatFloat(grids.AGrid[a]),
				formatFloat(d.At(e, a)),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	return nil
}

// OutputSteadyStateToCSV writes the steady-state summary as a two-column
// name/value table, including the market-clearing residuals.
func OutputSteadyStateToCSV(path string, ss SteadyState, delta float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	rows := [][]string{
		{"name", "value"},
		{"r", formatFloat(ss.R)},
		{"w", formatFloat(ss.W)},
		{"Y", formatFloat(ss.Y)},
		{"K_demand", formatFloat(ss.KDemand)},
		{"K_supply", formatFloat(ss.KSupply)},
		{"C", formatFloat(ss.C)},
		{"K_to_Y", formatFloat(ss.KDemand / ss.Y)},
		{"capital_clearing", formatFloat(ss.CapitalResidual())},
		{"goods_clearing", formatFloat(ss.GoodsResidual(delta))},
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// OutputPathAggregatesToCSV writes the per-period transition-path
// aggregates with the columns: t, r, w, capital, consumption.
func OutputPathAggregatesToCSV(path string, rPath, wPath, capital, consumption []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"t", "r", "w", "capital", "consumption"}); err != nil {
		return err
	}
	for t := range rPath {
		record := []string{
			strconv.Itoa(t),
			formatFloat(rPath[t]),
			formatFloat(wPath[t]),
			formatFloat(capital[t]),
			formatFloat(consumption[t]),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}
