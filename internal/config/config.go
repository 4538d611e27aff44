// Package config provides unified configuration loading for cablesim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SimConfig contains all cablesim configuration settings.
type SimConfig struct {
	// Run contains the simulation time window settings.
	Run RunConfig `json:"run" yaml:"run"`

	// Binning contains the event delivery time binning settings.
	Binning BinningConfig `json:"binning" yaml:"binning"`

	// Network describes the synthetic network driven by the runner.
	Network NetworkConfig `json:"network" yaml:"network"`

	// Backend contains the cable backend's electrical constants.
	Backend BackendConfig `json:"backend" yaml:"backend"`

	// Logging contains settings for operational and diagnostic logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// RunConfig sets the simulated time window. All times are milliseconds.
type RunConfig struct {
	// TFinal is the total simulated time.
	TFinal float64 `json:"tfinal" yaml:"tfinal"`

	// Dt is the nominal integration step.
	Dt float64 `json:"dt" yaml:"dt"`

	// Epoch is the advance window length; spikes are exchanged between
	// cells at epoch boundaries.
	Epoch float64 `json:"epoch" yaml:"epoch"`

	// SampleEvery is the soma voltage sampling period. Zero disables
	// sampling.
	SampleEvery float64 `json:"sample_every" yaml:"sample_every"`
}

// BinningConfig selects the event time binning policy.
type BinningConfig struct {
	// Policy is "none" (default), "regular" or "following".
	Policy string `json:"policy" yaml:"policy"`

	// Interval is the bin width, ignored by the "none" policy.
	Interval float64 `json:"interval" yaml:"interval"`
}

// NetworkConfig describes the synthetic ring network built by the runner.
type NetworkConfig struct {
	// Cells is the number of cells.
	Cells int `json:"cells" yaml:"cells"`

	// Morphology is an optional path to an SWC file used for every cell.
	// When empty, a built-in soma-plus-two-dendrites template is used.
	Morphology string `json:"morphology" yaml:"morphology"`

	// FanOut is the number of downstream cells each spike reaches.
	FanOut int `json:"fan_out" yaml:"fan_out"`

	// Weight is the synaptic weight of generated connections.
	Weight float64 `json:"weight" yaml:"weight"`

	// Delay is the axonal delay of generated connections, in ms.
	Delay float64 `json:"delay" yaml:"delay"`

	// StimCells is how many cells receive the driving stimulus current.
	StimCells int `json:"stim_cells" yaml:"stim_cells"`

	// StimAmplitude is the driving stimulus current.
	StimAmplitude float64 `json:"stim_amplitude" yaml:"stim_amplitude"`
}

// BackendConfig holds the cable backend's electrical constants. Voltages
// are mV; conductances and capacitances are in consistent arbitrary units.
type BackendConfig struct {
	Capacitance         float64 `json:"capacitance" yaml:"capacitance"`
	LeakConductance     float64 `json:"leak_conductance" yaml:"leak_conductance"`
	RestPotential       float64 `json:"rest_potential" yaml:"rest_potential"`
	Threshold           float64 `json:"threshold" yaml:"threshold"`
	ResetPotential      float64 `json:"reset_potential" yaml:"reset_potential"`
	SynTau              float64 `json:"syn_tau" yaml:"syn_tau"`
	SynReversal         float64 `json:"syn_reversal" yaml:"syn_reversal"`
	CouplingConductance float64 `json:"coupling_conductance" yaml:"coupling_conductance"`
}

// LoggingConfig configures cablesim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables diagnostic logging to the run directory.
	Level string `json:"level" yaml:"level"`
}

// Default returns a SimConfig with sensible defaults.
func Default() *SimConfig {
	return &SimConfig{
		Run: RunConfig{
			TFinal:      100,
			Dt:          0.025,
			Epoch:       1,
			SampleEvery: 1,
		},
		Binning: BinningConfig{
			Policy:   "none",
			Interval: 0,
		},
		Network: NetworkConfig{
			Cells:         4,
			FanOut:        1,
			Weight:        0.5,
			Delay:         1,
			StimCells:     1,
			StimAmplitude: 5,
		},
		Backend: BackendConfig{
			Capacitance:         1.0,
			LeakConductance:     0.1,
			RestPotential:       -65,
			Threshold:           -50,
			ResetPotential:      -70,
			SynTau:              2.0,
			SynReversal:         0,
			CouplingConductance: 0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.cablesim/config.yaml -> environment variables
func Load() (*SimConfig, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".cablesim", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *SimConfig) Validate() error {
	if c.Run.TFinal < 0 {
		return fmt.Errorf("tfinal must be non-negative, got %g", c.Run.TFinal)
	}
	if c.Run.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Run.Dt)
	}
	if c.Run.Epoch <= 0 {
		return fmt.Errorf("epoch must be positive, got %g", c.Run.Epoch)
	}
	if c.Run.SampleEvery < 0 {
		return fmt.Errorf("sample_every must be non-negative, got %g", c.Run.SampleEvery)
	}

	validPolicies := map[string]bool{"": true, "none": true, "regular": true, "following": true}
	if !validPolicies[c.Binning.Policy] {
		return fmt.Errorf("invalid binning policy: %s (valid: none, regular, following, or empty for default)", c.Binning.Policy)
	}
	if c.Binning.Interval < 0 {
		return fmt.Errorf("binning interval must be non-negative, got %g", c.Binning.Interval)
	}
	if (c.Binning.Policy == "regular" || c.Binning.Policy == "following") && c.Binning.Interval == 0 {
		return fmt.Errorf("binning policy %q requires a positive interval", c.Binning.Policy)
	}

	if c.Network.Cells < 1 {
		return fmt.Errorf("network needs at least one cell, got %d", c.Network.Cells)
	}
	if c.Network.FanOut < 0 || c.Network.FanOut >= c.Network.Cells {
		return fmt.Errorf("fan_out must be in [0, cells), got %d", c.Network.FanOut)
	}
	if c.Network.Delay < 0 {
		return fmt.Errorf("delay must be non-negative, got %g", c.Network.Delay)
	}
	if c.Network.StimCells < 0 || c.Network.StimCells > c.Network.Cells {
		return fmt.Errorf("stim_cells must be in [0, cells], got %d", c.Network.StimCells)
	}

	if c.Backend.Capacitance <= 0 {
		return fmt.Errorf("capacitance must be positive, got %g", c.Backend.Capacitance)
	}
	if c.Backend.LeakConductance <= 0 {
		return fmt.Errorf("leak_conductance must be positive, got %g", c.Backend.LeakConductance)
	}
	if c.Backend.SynTau <= 0 {
		return fmt.Errorf("syn_tau must be positive, got %g", c.Backend.SynTau)
	}
	if c.Backend.Threshold <= c.Backend.ResetPotential {
		return fmt.Errorf("threshold (%g) must exceed reset_potential (%g)", c.Backend.Threshold, c.Backend.ResetPotential)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *SimConfig) {
	if v := os.Getenv("CABLESIM_TFINAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Run.TFinal = f
		}
	}
	if v := os.Getenv("CABLESIM_DT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Run.Dt = f
		}
	}
	if v := os.Getenv("CABLESIM_EPOCH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Run.Epoch = f
		}
	}

	if v := os.Getenv("CABLESIM_BIN_POLICY"); v != "" {
		config.Binning.Policy = v
	}
	if v := os.Getenv("CABLESIM_BIN_INTERVAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Binning.Interval = f
		}
	}

	if v := os.Getenv("CABLESIM_MORPHOLOGY"); v != "" {
		config.Network.Morphology = v
	}
	if v := os.Getenv("CABLESIM_CELLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Network.Cells = n
		}
	}
	if v := os.Getenv("CABLESIM_FAN_OUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Network.FanOut = n
		}
	}
	if v := os.Getenv("CABLESIM_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Network.Weight = f
		}
	}
	if v := os.Getenv("CABLESIM_DELAY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Network.Delay = f
		}
	}

	if v := os.Getenv("CABLESIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
