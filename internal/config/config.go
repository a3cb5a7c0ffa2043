// Package config defines the zeromine configuration, loaded through viper
// from a YAML file, environment variables (ZEROMINE_ prefix), and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete zeromine configuration.
type Config struct {
	Run     RunConfig     `mapstructure:"run"`
	Workers WorkersConfig `mapstructure:"workers"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RunConfig controls the orchestrator run directory and acceptance gate.
type RunConfig struct {
	// Dir is the run directory holding ledger, state, lock, and logs.
	Dir string `mapstructure:"dir"`
	// EpsRoot is the acceptance tolerance: |root_val| must be below it.
	EpsRoot float64 `mapstructure:"eps_root"`
	// MaxInflight bounds how many jobs may be dispatched but not yet
	// terminal, providing backpressure against the queue.
	MaxInflight int `mapstructure:"max_inflight"`
	// MaxAttempts bounds re-dispatches after explicit worker failures.
	MaxAttempts int `mapstructure:"max_attempts"`
	// CheckpointEvery flushes the state snapshot after this many
	// accepted results.
	CheckpointEvery int `mapstructure:"checkpoint_every"`
}

// WorkersConfig controls the worker pool.
type WorkersConfig struct {
	// Count is the number of worker goroutines.
	Count int `mapstructure:"count"`
	// Target selects the built-in target function to scan ("sin", "j0", "j1").
	Target string `mapstructure:"target"`
	// MaxIters bounds bisection refinement per bracket.
	MaxIters int `mapstructure:"max_iters"`
	// Command, when set, replaces the built-in scanner with an external
	// program run once per job: the job as JSON on stdin, one JSON result
	// per stdout line.
	Command string `mapstructure:"command"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	// Level is the minimum level written ("DEBUG", "INFO", "WARN", "ERROR").
	Level string `mapstructure:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Dir:             "run",
			EpsRoot:         1e-10,
			MaxInflight:     4,
			MaxAttempts:     3,
			CheckpointEvery: 200,
		},
		Workers: WorkersConfig{
			Count:    4,
			Target:   "sin",
			MaxIters: 200,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("run.dir", defaults.Run.Dir)
	viper.SetDefault("run.eps_root", defaults.Run.EpsRoot)
	viper.SetDefault("run.max_inflight", defaults.Run.MaxInflight)
	viper.SetDefault("run.max_attempts", defaults.Run.MaxAttempts)
	viper.SetDefault("run.checkpoint_every", defaults.Run.CheckpointEvery)

	viper.SetDefault("workers.count", defaults.Workers.Count)
	viper.SetDefault("workers.target", defaults.Workers.Target)
	viper.SetDefault("workers.max_iters", defaults.Workers.MaxIters)
	viper.SetDefault("workers.command", defaults.Workers.Command)

	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "zeromine")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zeromine"
	}
	return filepath.Join(home, ".config", "zeromine")
}

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates all invalid fields found in one pass.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate checks every field against its domain and returns all
// violations rather than stopping at the first.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Run.Dir == "" {
		errs = append(errs, ValidationError{"run.dir", c.Run.Dir, "must not be empty"})
	}
	if c.Run.EpsRoot <= 0 {
		errs = append(errs, ValidationError{"run.eps_root", c.Run.EpsRoot, "must be positive"})
	}
	if c.Run.MaxInflight < 1 {
		errs = append(errs, ValidationError{"run.max_inflight", c.Run.MaxInflight, "must be at least 1"})
	}
	if c.Run.MaxAttempts < 1 {
		errs = append(errs, ValidationError{"run.max_attempts", c.Run.MaxAttempts, "must be at least 1"})
	}
	if c.Run.CheckpointEvery < 1 {
		errs = append(errs, ValidationError{"run.checkpoint_every", c.Run.CheckpointEvery, "must be at least 1"})
	}
	if c.Workers.Count < 1 {
		errs = append(errs, ValidationError{"workers.count", c.Workers.Count, "must be at least 1"})
	}
	if c.Workers.MaxIters < 1 {
		errs = append(errs, ValidationError{"workers.max_iters", c.Workers.MaxIters, "must be at least 1"})
	}

	validLevel := false
	for _, lvl := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		if strings.EqualFold(c.Logging.Level, lvl) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		errs = append(errs, ValidationError{"logging.level", c.Logging.Level, "must be one of DEBUG, INFO, WARN, ERROR"})
	}

	return errs
}
