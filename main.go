// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var version = "0.1.0"

// checkpointName is the key under which the driver stores the stationary
// policy and distribution for warm-starting later runs.
const checkpointName = "steady_state"

func main() {
	var (
		configPath     string
		outDir         string
		checkpointPath string
		logLevel       string
	)

	rootCmd := &cobra.Command{
		Use:   "gemodel",
		Short: "Heterogeneous-agent buffer-stock savings model",
		Long: `gemodel solves and simulates a buffer-stock consumption-saving problem
for a continuum of households facing idiosyncratic income risk and a
borrowing constraint, for use in a general equilibrium model.

It computes the stationary equilibrium (EGM policy solve plus
distribution iteration) and the perfect-foresight transition path for a
given interest-rate sequence.`,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a yaml config file (defaults used when empty)")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "Directory for CSV output (no files written when empty)")
	rootCmd.PersistentFlags().StringVar(&checkpointPath, "checkpoint", "", "Path to a sqlite checkpoint database for warm starts")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: info or debug (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSteadyStateCmd(&configPath, &outDir, &checkpointPath, &logLevel),
		newTransitionCmd(&configPath, &outDir, &checkpointPath, &logLevel),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gemodel version %s\n", version)
		},
	}
}

func newSteadyStateCmd(configPath, outDir, checkpointPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "steadystate",
		Short: "Solve and simulate the stationary equilibrium at the configured rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			run, err := solveSteadyState(cfg, logger, *checkpointPath)
			if err != nil {
				return err
			}
			reportSteadyState(logger, run.ss, cfg.Delta)

			if *outDir != "" {
				if err := writeSteadyStateOutputs(*outDir, cfg, run); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newTransitionCmd(configPath, outDir, checkpointPath, logLevel *string) *cobra.Command {
	var ratePathFile string

	cmd := &cobra.Command{
		Use:   "transition",
		Short: "Solve and simulate the full transition path back to the steady state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			run, err := solveSteadyState(cfg, logger, *checkpointPath)
			if err != nil {
				return err
			}
			reportSteadyState(logger, run.ss, cfg.Delta)

			rPath, err := buildRatePath(cfg, ratePathFile)
			if err != nil {
				return err
			}
			wPath := make([]float64, len(rPath))
			for t, r := range rPath {
				wPath[t] = run.firm.ImpliedW(r)
			}

			path, err := run.solver.SolvePath(rPath, wPath, run.policy.MarginalValue)
			if err != nil {
				return err
			}
			dPath, err := run.propagator.SimulatePath(path, run.distribution)
			if err != nil {
				return err
			}
			capital, consumption := AggregatePath(path, dPath)

			logger.Info("transition path complete",
				"periods", len(rPath),
				"terminal_capital", capital[len(capital)-1],
				"terminal_consumption", consumption[len(consumption)-1])

			if *outDir != "" {
				out := filepath.Join(*outDir, "transition_aggregates.csv")
				if err := OutputPathAggregatesToCSV(out, rPath, wPath, capital, consumption); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				logger.Info("transition aggregates written", "path", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ratePathFile, "rate-path", "", "CSV file with the interest-rate path (one column, header row); synthesized from the shock config when empty")
	return cmd
}

// setup loads and validates the configuration and builds the logger.
func setup(configPath, logLevel string) (Config, *slog.Logger, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, NewLogger(cfg.LogLevel, os.Stderr), nil
}

// steadyStateRun bundles the objects a transition run reuses from the
// stationary solve.
type steadyStateRun struct {
	grids        *Grids
	firm         Firm
	solver       *HouseholdSolver
	propagator   *DistributionPropagator
	policy       *Policy
	distribution *mat.Dense
	ss           SteadyState
}

// solveSteadyState runs the full stationary pipeline: grids, firm prices,
// policy solve, distribution simulate, aggregation. When a checkpoint
// database is given, a stored policy/distribution of matching shape seeds
// the iterations and the converged result is written back.
func solveSteadyState(cfg Config, logger *slog.Logger, checkpointPath string) (*steadyStateRun, error) {
	par := cfg.Params()

	grids, err := NewGrids(par)
	if err != nil {
		return nil, err
	}

	firm := NewFirm(par)
	w := firm.ImpliedW(cfg.RSS)
	logger.Info("firm block", "r", cfg.RSS, "w", w, "k_demand", firm.CapitalDemand(cfg.RSS))

	var store *CheckpointStore
	var warmVa, warmD *mat.Dense
	if checkpointPath != "" {
		store, err = OpenCheckpointStore(checkpointPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		if pol, err := store.LoadPolicy(checkpointName, par.Ne, par.Na); err == nil {
			warmVa = pol.MarginalValue
			logger.Info("warm-starting policy solve from checkpoint", "name", checkpointName)
		} else if !errors.Is(err, ErrNoCheckpoint) {
			logger.Warn("policy checkpoint unusable, starting cold", "err", err)
		}
		if d, err := store.LoadDistribution(checkpointName, par.Ne, par.Na); err == nil {
			warmD = d
			logger.Info("warm-starting distribution simulate from checkpoint", "name", checkpointName)
		} else if !errors.Is(err, ErrNoCheckpoint) {
			logger.Warn("distribution checkpoint unusable, starting cold", "err", err)
		}
	}

	solver := NewHouseholdSolver(par, grids, logger)
	pol, err := solver.SolveSteadyState(cfg.RSS, w, warmVa)
	if err != nil {
		return nil, err
	}

	propagator := NewDistributionPropagator(par, grids, logger)
	d, err := propagator.SimulateSteadyState(pol, warmD)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.SavePolicy(checkpointName, pol); err != nil {
			logger.Warn("could not save policy checkpoint", "err", err)
		}
		if err := store.SaveDistribution(checkpointName, d); err != nil {
			logger.Warn("could not save distribution checkpoint", "err", err)
		}
	}

	return &steadyStateRun{
		grids:        grids,
		firm:         firm,
		solver:       solver,
		propagator:   propagator,
		policy:       pol,
		distribution: d,
		ss:           ComputeSteadyState(firm, cfg.RSS, pol, d),
	}, nil
}

// reportSteadyState logs the steady-state summary and the market-clearing
// residuals.
func reportSteadyState(logger *slog.Logger, ss SteadyState, delta float64) {
	logger.Info("steady state",
		"r", ss.R,
		"w", ss.W,
		"Y", ss.Y,
		"K_to_Y", ss.KDemand/ss.Y,
		"K_supply", ss.KSupply,
		"C", ss.C)
	logger.Info("market clearing",
		"capital", ss.CapitalResidual(),
		"goods", ss.GoodsResidual(delta))
}

// writeSteadyStateOutputs writes the policy, distribution, and summary
// CSVs into dir, creating it if needed.
func writeSteadyStateOutputs(dir string, cfg Config, run *steadyStateRun) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	outputs := []struct {
		name  string
		write func(string) error
	}{
		{"policy.csv", func(p string) error { return OutputPolicyToCSV(p, run.grids, run.policy) }},
		{"distribution.csv", func(p string) error { return OutputDistributionToCSV(p, run.grids, run.distribution) }},
		{"steady_state.csv", func(p string) error { return OutputSteadyStateToCSV(p, run.ss, cfg.Delta) }},
	}
	for _, out := range outputs {
		path := filepath.Join(dir, out.name)
		if err := out.write(path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// buildRatePath returns the interest-rate path for the transition: either
// the contents of a CSV file, or a deviation from the steady-state rate
// decaying geometrically at the configured persistence.
func buildRatePath(cfg Config, ratePathFile string) ([]float64, error) {
	if ratePathFile != "" {
		return LoadRatePathCSV(ratePathFile)
	}

	rPath := make([]float64, cfg.TpT)
	for t := range rPath {
		rPath[t] = cfg.RSS + cfg.ShockSize*math.Pow(cfg.ShockPersistence, float64(t))
	}
	return rPath, nil
}
