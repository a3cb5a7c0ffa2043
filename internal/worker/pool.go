package worker

import (
	"context"
	"sync"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/queue"
)

// Pool runs a fixed number of worker goroutines over the job channel.
// Every job produces exactly one terminal message: the last Result of the
// job carries the done flag, a job with no candidates sends Done, and a
// compute error sends Failure. The orchestrator relies on that to count
// jobs off.
type Pool struct {
	w    Worker
	q    *queue.Queue
	log  *logging.Logger
	size int

	wg sync.WaitGroup
}

// NewPool creates a Pool of size workers sharing w.
func NewPool(w Worker, q *queue.Queue, log *logging.Logger, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{w: w, q: q, log: log, size: size}
}

// Start launches the worker goroutines. They exit when the job channel
// closes or ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until every worker goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.WithWorker(id)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.q.Jobs():
			if !ok {
				return
			}
			p.work(ctx, id, log, job)
		}
	}
}

func (p *Pool) work(ctx context.Context, id int, log *logging.Logger, job contract.Job) {
	results, err := p.w.Compute(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("compute failed", "job_id", job.ID, "error", err)
		_ = p.q.Submit(ctx, queue.Failure{WorkerID: id, JobID: job.ID, Err: err.Error()})
		return
	}

	if len(results) == 0 {
		log.Debug("job yielded no candidates", "job_id", job.ID)
		_ = p.q.Submit(ctx, queue.Done{WorkerID: id, JobID: job.ID})
		return
	}

	for i, payload := range results {
		msg := queue.Result{
			WorkerID: id,
			JobID:    job.ID,
			Payload:  payload,
			JobDone:  i == len(results)-1,
		}
		if err := p.q.Submit(ctx, msg); err != nil {
			return
		}
	}
	log.Debug("job computed", "job_id", job.ID, "candidates", len(results))
}
