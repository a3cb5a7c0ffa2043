package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/manifest"
	"github.com/zeromine/zeromine/internal/orchestrator"
	"github.com/zeromine/zeromine/internal/state"
)

var runCmd = &cobra.Command{
	Use:   "run <manifest>",
	Short: "Execute the jobs in a manifest",
	Long: `Run registers every job declared in the manifest and executes them to
completion. Pointing at an existing run directory resumes that run: the
ledger is replayed, already-accepted results stay deduplicated, and
finished jobs are not recomputed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("workers", 0, "worker goroutines")
	_ = viper.BindPFlag("workers.count", runCmd.Flags().Lookup("workers"))

	runCmd.Flags().String("target", "", "target function to scan (sin, j0, j1)")
	_ = viper.BindPFlag("workers.target", runCmd.Flags().Lookup("target"))

	runCmd.Flags().String("worker-cmd", "", "external worker program (job JSON on stdin, one JSON result per stdout line)")
	_ = viper.BindPFlag("workers.command", runCmd.Flags().Lookup("worker-cmd"))

	runCmd.Flags().Float64("eps-root", 0, "acceptance tolerance on |f(t)|")
	_ = viper.BindPFlag("run.eps_root", runCmd.Flags().Lookup("eps-root"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	specs, err := manifest.Load(args[0])
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Run.Dir, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	// Resuming an existing run keeps its ID; a fresh directory gets a new one.
	runID := resumeRunID(cfg.Run.Dir)
	if runID == "" {
		runID = uuid.New().String()
	}

	log, err := logging.New(cfg.Run.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Close()

	orch, err := orchestrator.New(*cfg, runID, log)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrLocked) {
			return fmt.Errorf("%w\nanother orchestrator owns %s; if it is gone, run: zeromine unlock -d %s", err, cfg.Run.Dir, cfg.Run.Dir)
		}
		return err
	}
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("run %s: %d jobs in %s\n", runID, len(specs), cfg.Run.Dir)
	if err := orch.Run(ctx, specs); err != nil {
		if apperrors.IsFatal(err) {
			log.Error("run aborted", "error", err)
		}
		return err
	}

	fmt.Println(renderSummary(orch.State()))
	return nil
}

// resumeRunID recovers the run ID from an existing state snapshot, if any.
func resumeRunID(runDir string) string {
	st, err := state.NewStore(runDir).Load("")
	if err != nil {
		return ""
	}
	return st.RunID
}
