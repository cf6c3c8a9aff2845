// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the driver's configuration surface. Every field is a plain
// scalar read once at setup; changing Na or Ne requires rebuilding the
// grids and reallocating every array, which the driver does by
// constructing everything fresh from the config.
type Config struct {
	// Preferences
	Sigma float64 `yaml:"sigma"` // CRRA coefficient
	Beta  float64 `yaml:"beta"`  // discount factor

	// Production
	Z     float64 `yaml:"z"`     // technology level
	Alpha float64 `yaml:"alpha"` // Cobb-Douglas capital share
	Delta float64 `yaml:"delta"` // depreciation rate

	// Income process
	Rho    float64 `yaml:"rho"`     // AR(1) persistence
	SigmaE float64 `yaml:"sigma_e"` // shock std
	Ne     int     `yaml:"ne"`      // income states

	// Asset grid
	AMax float64 `yaml:"a_max"` // grid maximum
	Na   int     `yaml:"na"`    // grid points

	// Transition path
	TpT int `yaml:"tp_t"` // path length

	// Iteration control
	MaxIterSolve    int     `yaml:"max_iter_solve"`
	MaxIterSimulate int     `yaml:"max_iter_simulate"`
	SolveTol        float64 `yaml:"solve_tol"`
	SimulateTol     float64 `yaml:"simulate_tol"`

	// Driver
	RSS              float64 `yaml:"r_ss"`              // steady-state interest rate
	ShockSize        float64 `yaml:"shock_size"`        // initial rate deviation on the transition path
	ShockPersistence float64 `yaml:"shock_persistence"` // geometric decay of the deviation
	LogLevel         string  `yaml:"log_level"`         // "info" or "debug"
}

// DefaultConfig returns the baseline calibration.
func DefaultConfig() Config {
	return Config{
		Sigma:  1.0,
		Beta:   0.982,
		Z:      1.0,
		Alpha:  0.11,
		Delta:  0.025,
		Rho:    0.966,
		SigmaE: 0.50,
		Ne:     7,
		AMax:   200.0,
		Na:     500,
		TpT:    500,

		MaxIterSolve:    5000,
		MaxIterSimulate: 5000,
		SolveTol:        1e-10,
		SimulateTol:     1e-10,

		RSS:              0.01,
		ShockSize:        0.0,
		ShockPersistence: 0.9,
		LogLevel:         "info",
	}
}

// LoadConfig reads a yaml config file over the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate fails fast on economically or numerically meaningless
// configurations, before any array is allocated.
func (c Config) Validate() error {
	if c.Sigma <= 0 {
		return fmt.Errorf("sigma must be positive, got %g", c.Sigma)
	}
	if c.Beta <= 0 || c.Beta >= 1 {
		return fmt.Errorf("beta must be in (0,1), got %g", c.Beta)
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0,1), got %g", c.Alpha)
	}
	if c.Delta < 0 || c.Delta > 1 {
		return fmt.Errorf("delta must be in [0,1], got %g", c.Delta)
	}
	if c.Rho < 0 || c.Rho >= 1 {
		return fmt.Errorf("rho must be in [0,1), got %g", c.Rho)
	}
	if c.Ne < 1 {
		return fmt.Errorf("ne must be at least 1, got %d", c.Ne)
	}
	if c.Ne > 1 && c.SigmaE <= 0 {
		return fmt.Errorf("sigma_e must be positive with %d income states, got %g", c.Ne, c.SigmaE)
	}
	if c.Na < 2 {
		return fmt.Errorf("na must be at least 2, got %d", c.Na)
	}
	if c.AMax <= 0 {
		return fmt.Errorf("a_max must be positive, got %g", c.AMax)
	}
	if c.TpT < 1 {
		return fmt.Errorf("tp_t must be at least 1, got %d", c.TpT)
	}
	if c.MaxIterSolve < 1 || c.MaxIterSimulate < 1 {
		return fmt.Errorf("iteration caps must be at least 1, got solve=%d simulate=%d",
			c.MaxIterSolve, c.MaxIterSimulate)
	}
	if c.SolveTol <= 0 || c.SimulateTol <= 0 {
		return fmt.Errorf("tolerances must be positive, got solve=%g simulate=%g",
			c.SolveTol, c.SimulateTol)
	}
	if c.RSS+c.Delta <= 0 {
		return fmt.Errorf("r_ss + delta must be positive for firm behavior, got %g", c.RSS+c.Delta)
	}
	if c.Beta*(1+c.RSS) >= 1 {
		return fmt.Errorf("beta*(1+r_ss) must be below 1 for a stationary buffer stock, got %g",
			c.Beta*(1+c.RSS))
	}
	return nil
}

// Params extracts the immutable model parameters from the config.
func (c Config) Params() *Params {
	return &Params{
		Sigma:           c.Sigma,
		Beta:            c.Beta,
		Z:               c.Z,
		Alpha:           c.Alpha,
		Delta:           c.Delta,
		Rho:             c.Rho,
		SigmaE:          c.SigmaE,
		Ne:              c.Ne,
		AMax:            c.AMax,
		Na:              c.Na,
		TpT:             c.TpT,
		MaxIterSolve:    c.MaxIterSolve,
		MaxIterSimulate: c.MaxIterSimulate,
		SolveTol:        c.SolveTol,
		SimulateTol:     c.SimulateTol,
	}
}
