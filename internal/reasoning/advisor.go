package reasoning

import (
	"context"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/worker"
)

// Advisor wraps a Worker, consulting the collaborator before each
// computation. Advice is logged for the operator; a slow, failing, or
// malformed collaborator never blocks the compute path beyond the
// consult itself and never changes its outcome.
type Advisor struct {
	inner  worker.Worker
	client Client
	target string
	log    *logging.Logger
}

// NewAdvisor builds an Advisor around inner.
func NewAdvisor(inner worker.Worker, client Client, target string, log *logging.Logger) *Advisor {
	return &Advisor{
		inner:  inner,
		client: client,
		target: target,
		log:    log.WithComponent("reasoning"),
	}
}

// Compute consults the collaborator, logs its advice, then delegates to
// the wrapped worker.
func (a *Advisor) Compute(ctx context.Context, job contract.Job) ([]contract.ResultPayload, error) {
	a.consult(ctx, job)
	return a.inner.Compute(ctx, job)
}

func (a *Advisor) consult(ctx context.Context, job contract.Job) {
	raw, err := a.client.Consult(ctx, Request{
		JobID:  job.ID,
		Target: a.target,
		TStart: job.TStart,
		TEnd:   job.TEnd,
		Stride: job.Stride,
	})
	if err != nil {
		a.log.Warn("collaborator unavailable", "job_id", job.ID, "error", err)
		return
	}
	resp, err := DecodeResponse(raw)
	if err != nil {
		a.log.Warn("collaborator response refused", "job_id", job.ID, "error", err)
		return
	}

	a.log.Info("collaborator restatement", "job_id", job.ID, "restatement", resp.Restatement)
	for _, excl := range resp.Exclusions {
		a.log.Info("collaborator exclusion", "job_id", job.ID, "exclusion", excl)
	}
	for _, q := range resp.Questions {
		a.log.Warn("collaborator question", "job_id", job.ID, "question", q)
	}
}
