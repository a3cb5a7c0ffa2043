package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeromine/zeromine/internal/lockguard"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Remove a stale writer lock",
	Long: `Unlock removes the run directory's writer lock after its owning
process has died. The lock of a live process is never removed; stop that
process instead.`,
	RunE: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	removed, err := lockguard.ForceRelease(cfg.Run.Dir)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("no lock in %s\n", cfg.Run.Dir)
		return nil
	}
	fmt.Printf("removed stale lock in %s\n", cfg.Run.Dir)
	return nil
}
