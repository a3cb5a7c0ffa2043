package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeromine/zeromine/internal/compactor"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Write a compacted snapshot of the ledger",
	Long: `Compact derives a minimal file from the run's ledger: the first
accepted occurrence of each distinct result, in ledger order. The ledger
itself is never modified.`,
	RunE: runCompact,
}

func init() {
	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, stats, err := compactor.CompactRun(cfg.Run.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("%s: kept %d, dropped %d\n", out, stats.Kept, stats.Dropped)
	return nil
}
