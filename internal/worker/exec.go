package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/zeromine/zeromine/internal/contract"
)

// ExecWorker runs an external program once per job: the job is written to
// its stdin as JSON, and each stdout line must be one JSON result payload.
// The program's output is untrusted; every line passes the same structural
// checks as any other external input before it reaches the queue, so a
// misbehaving program surfaces as a job failure, never as a malformed
// candidate inside the pipeline.
type ExecWorker struct {
	name string
	args []string
}

// NewExecWorker builds an ExecWorker for the given command line.
func NewExecWorker(name string, args ...string) *ExecWorker {
	return &ExecWorker{name: name, args: args}
}

// Compute runs the program for job and decodes its output.
func (w *ExecWorker) Compute(ctx context.Context, job contract.Job) ([]contract.ResultPayload, error) {
	input, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, w.name, w.args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", w.name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", w.name, err)
	}

	var results []contract.ResultPayload
	sc := bufio.NewScanner(&stdout)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		p, verr := contract.DecodeResult(line)
		if verr != nil {
			return nil, fmt.Errorf("%s: result %d for job %s: %s", w.name, len(results)+1, job.ID, verr)
		}
		results = append(results, *p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", w.name, err)
	}
	return results, nil
}
