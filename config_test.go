// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig pins the baseline calibration.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1.0, cfg.Sigma)
	assert.Equal(t, 0.982, cfg.Beta)
	assert.Equal(t, 0.11, cfg.Alpha)
	assert.Equal(t, 0.025, cfg.Delta)
	assert.Equal(t, 0.966, cfg.Rho)
	assert.Equal(t, 0.50, cfg.SigmaE)
	assert.Equal(t, 7, cfg.Ne)
	assert.Equal(t, 200.0, cfg.AMax)
	assert.Equal(t, 500, cfg.Na)
	assert.Equal(t, 500, cfg.TpT)
	assert.Equal(t, 5000, cfg.MaxIterSolve)
	assert.Equal(t, 5000, cfg.MaxIterSimulate)
	assert.Equal(t, 1e-10, cfg.SolveTol)
	assert.Equal(t, 1e-10, cfg.SimulateTol)

	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

// TestLoadConfigOverlaysDefaults: a partial yaml file overrides only the
// keys it names.
func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("na: 50\nbeta: 0.9\nlog_level: debug\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Na, "overridden")
	assert.Equal(t, 0.9, cfg.Beta, "overridden")
	assert.Equal(t, "debug", cfg.LogLevel, "overridden")
	assert.Equal(t, 7, cfg.Ne, "default kept")
	assert.Equal(t, 200.0, cfg.AMax, "default kept")
}

// TestLoadConfigEmptyPath returns the defaults untouched.
func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// TestLoadConfigErrors: missing files and malformed yaml fail loudly.
func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("na: [not a number\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

// TestConfigValidateRejects meaningless calibrations at configuration
// time, before any array is allocated.
func TestConfigValidateRejects(t *testing.T) {
	mutate := func(f func(*Config)) Config {
		cfg := DefaultConfig()
		f(&cfg)
		return cfg
	}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero sigma", mutate(func(c *Config) { c.Sigma = 0 })},
		{"beta at one", mutate(func(c *Config) { c.Beta = 1 })},
		{"alpha above one", mutate(func(c *Config) { c.Alpha = 1.2 })},
		{"negative delta", mutate(func(c *Config) { c.Delta = -0.1 })},
		{"rho at one", mutate(func(c *Config) { c.Rho = 1 })},
		{"no income states", mutate(func(c *Config) { c.Ne = 0 })},
		{"zero shock std with risk", mutate(func(c *Config) { c.SigmaE = 0 })},
		{"single grid point", mutate(func(c *Config) { c.Na = 1 })},
		{"non-positive grid max", mutate(func(c *Config) { c.AMax = 0 })},
		{"empty path", mutate(func(c *Config) { c.TpT = 0 })},
		{"zero iteration cap", mutate(func(c *Config) { c.MaxIterSolve = 0 })},
		{"zero tolerance", mutate(func(c *Config) { c.SolveTol = 0 })},
		{"impatience violated", mutate(func(c *Config) { c.RSS = 0.05; c.Beta = 0.99 })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

// TestConfigParams: the extracted Params mirror the config scalars.
func TestConfigParams(t *testing.T) {
	cfg := DefaultConfig()
	par := cfg.Params()

	assert.Equal(t, cfg.Sigma, par.Sigma)
	assert.Equal(t, cfg.Beta, par.Beta)
	assert.Equal(t, cfg.Ne, par.Ne)
	assert.Equal(t, cfg.Na, par.Na)
	assert.Equal(t, cfg.TpT, par.TpT)
	assert.Equal(t, cfg.SolveTol, par.SolveTol)
}
