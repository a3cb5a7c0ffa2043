package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/ledger"
	"github.com/zeromine/zeromine/internal/state"
)

var (
	statusFilter string
	statusFollow bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a run directory",
	Long: `Status reads the state snapshot and renders every job with its current
status and the run counters. It never takes the writer lock, so it is
safe against a live orchestrator. With --follow it keeps tailing the
ledger and prints events as they are appended.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFilter, "filter", "", "glob over job IDs (e.g. 'sweep-*')")
	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "keep tailing the ledger")
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func statusStyle(s contract.JobStatus) lipgloss.Style {
	switch s {
	case contract.StatusDone:
		return doneStyle
	case contract.StatusFailed:
		return failedStyle
	case contract.StatusRunning:
		return runningStyle
	default:
		return dimStyle
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := state.NewStore(cfg.Run.Dir).Load("")
	if err != nil {
		return err
	}
	if st.RunID == "" && len(st.Jobs) == 0 {
		fmt.Printf("no run in %s\n", cfg.Run.Dir)
		return nil
	}

	out, err := renderState(st, statusFilter)
	if err != nil {
		return err
	}
	fmt.Println(out)

	if !statusFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return followLedger(ctx, cfg.Run.Dir, os.Stdout)
}

// renderState formats a state snapshot. filter narrows the job list by
// glob over job IDs; counters always reflect the whole run.
func renderState(st *state.State, filter string) (string, error) {
	var match glob.Glob
	if filter != "" {
		g, err := glob.Compile(filter)
		if err != nil {
			return "", fmt.Errorf("bad --filter: %w", err)
		}
		match = g
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("run %s", st.RunID)))
	b.WriteString("\n")

	ids := append([]string(nil), st.JobOrder...)
	if len(ids) == 0 {
		for id := range st.Jobs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	for _, id := range ids {
		job, ok := st.Jobs[id]
		if !ok || (match != nil && !match.Match(id)) {
			continue
		}
		line := fmt.Sprintf("  %-20s %s  [%g, %g] stride %g",
			job.ID, statusStyle(job.Status).Render(string(job.Status)), job.TStart, job.TEnd, job.Stride)
		if job.Attempts > 1 {
			line += dimStyle.Render(fmt.Sprintf("  attempts %d", job.Attempts))
		}
		if job.LastError != "" {
			line += failedStyle.Render("  " + job.LastError)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(renderSummary(st))
	return b.String(), nil
}

// renderSummary formats the run counters on one line.
func renderSummary(st *state.State) string {
	parts := []string{
		doneStyle.Render(fmt.Sprintf("done %d", st.Done)),
		failedStyle.Render(fmt.Sprintf("failed %d", st.Failed)),
		fmt.Sprintf("accepted %d", st.Accepted),
		fmt.Sprintf("rejected %d", st.Rejected),
		dimStyle.Render(fmt.Sprintf("seq %d", st.Seq)),
	}
	reasons := make([]string, 0, len(st.RejectedByReason))
	for reason := range st.RejectedByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%s %d", strings.ToLower(reason), st.RejectedByReason[reason])))
	}
	return strings.Join(parts, "  ")
}

// formatEvent renders one ledger event for follow output.
func formatEvent(e ledger.Event) string {
	switch e.Kind {
	case ledger.KindAccepted:
		line := fmt.Sprintf("%6d  %s  %s", e.Seq, doneStyle.Render("ACCEPTED"), e.JobID)
		if e.Payload != nil {
			line += fmt.Sprintf("  t=%g root_val=%g", e.Payload.T, e.Payload.RootVal)
		}
		return line
	case ledger.KindRejected:
		return fmt.Sprintf("%6d  %s  %s  %s", e.Seq, failedStyle.Render("REJECTED"), e.JobID, e.Reason)
	default:
		return fmt.Sprintf("%6d  %s  %s", e.Seq, e.Kind, e.JobID)
	}
}

// followLedger tails the run's ledger, printing events appended after the
// point of attachment. The directory is watched rather than the file so a
// ledger created later is picked up too.
func followLedger(ctx context.Context, runDir string, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(runDir); err != nil {
		return err
	}

	path := filepath.Join(runDir, ledger.FileName)
	var offset int64
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watcher.Errors:
			return err
		case ev := <-watcher.Events:
			if ev.Name != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			n, err := printNewEvents(path, offset, w)
			if err != nil {
				return err
			}
			offset = n
		}
	}
}

// printNewEvents reads complete lines appended past offset and returns
// the new offset. A torn final line is left for the next round.
func printNewEvents(path string, offset int64, w io.Writer) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return offset, err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			// Incomplete tail: re-read it once the writer finishes.
			return offset, nil
		}
		offset += int64(len(line))
		var e ledger.Event
		if jsonErr := json.Unmarshal(line, &e); jsonErr == nil {
			fmt.Fprintln(w, formatEvent(e))
		}
	}
}
