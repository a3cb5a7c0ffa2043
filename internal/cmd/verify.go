package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	apperrors "github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/ledger"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the ledger hash chain",
	Long: `Verify replays the run's ledger and recomputes every chain digest.
Any modified, inserted, or reordered record breaks the chain at the
first divergent sequence number.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := filepath.Join(cfg.Run.Dir, ledger.FileName)

	var events int
	if err := ledger.ReplayFile(path, func(ledger.Event) error {
		events++
		return nil
	}); err != nil {
		return err
	}

	if err := ledger.VerifyFile(path); err != nil {
		var chainErr *apperrors.ChainError
		if apperrors.As(err, &chainErr) {
			return fmt.Errorf("%s: chain broken at seq %d", path, chainErr.Seq)
		}
		return err
	}

	fmt.Printf("%s: %d events, chain intact\n", path, events)
	return nil
}
