// Package cmd implements the zeromine command line interface.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zeromine/zeromine/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "zeromine",
	Short: "Single-writer root scanning orchestrator",
	Long: `Zeromine scans numeric ranges for roots of a target function using a
pool of workers, funneling every candidate through one acceptance
pipeline into a tamper-evident append-only ledger. A run directory holds
the ledger, a state snapshot, and the writer lock; restarting on the
same directory resumes the run by replaying the ledger.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/zeromine/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().StringP("run-dir", "d", "", "run directory (ledger, state, lock)")
	_ = viper.BindPFlag("run.dir", rootCmd.PersistentFlags().Lookup("run-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/zeromine")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ZEROMINE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., ZEROMINE_RUN_EPS_ROOT for run.eps_root
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
