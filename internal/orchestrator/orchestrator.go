// Package orchestrator wires the run together: it owns the run directory,
// the writer lock, the ledger, and the lifecycle of scheduler, workers,
// and the acceptance pipeline. One orchestrator process per run directory;
// the lock guard enforces that.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/zeromine/zeromine/internal/config"
	"github.com/zeromine/zeromine/internal/contract"
	apperrors "github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/event"
	"github.com/zeromine/zeromine/internal/ledger"
	"github.com/zeromine/zeromine/internal/lockguard"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/queue"
	"github.com/zeromine/zeromine/internal/reasoning"
	"github.com/zeromine/zeromine/internal/recovery"
	"github.com/zeromine/zeromine/internal/reducer"
	"github.com/zeromine/zeromine/internal/scheduler"
	"github.com/zeromine/zeromine/internal/state"
	"github.com/zeromine/zeromine/internal/worker"
)

// Orchestrator is the single writer for one run directory.
type Orchestrator struct {
	cfg   config.Config
	log   *logging.Logger
	runID string

	lock  *lockguard.Handle
	led   *ledger.Ledger
	st    *state.State
	store *state.Store
	q     *queue.Queue
	bus   *event.Bus
	sched *scheduler.Scheduler
	red   *reducer.Reducer
	pool  *worker.Pool
}

// Option adjusts orchestrator construction.
type Option func(*options)

type options struct {
	worker    worker.Worker
	reasoning reasoning.Client
}

// WithWorker substitutes the compute implementation. Used by tests and
// by callers embedding their own target functions.
func WithWorker(w worker.Worker) Option {
	return func(o *options) { o.worker = w }
}

// WithReasoning attaches a reasoning collaborator; workers consult it
// before computing each job.
func WithReasoning(c reasoning.Client) Option {
	return func(o *options) { o.reasoning = c }
}

// New prepares a run: creates the run directory, takes the writer lock,
// opens the ledger, and rebuilds state by replaying it. On any error the
// partially acquired resources are released; in particular the lock never
// leaks. A held or stale lock surfaces as ErrLocked.
func New(cfg config.Config, runID string, log *logging.Logger, opts ...Option) (*Orchestrator, error) {
	var opt options
	for _, fn := range opts {
		fn(&opt)
	}

	runDir := cfg.Run.Dir
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}

	lock, err := lockguard.Acquire(runDir)
	if err != nil {
		return nil, err
	}

	led, err := ledger.Open(filepath.Join(runDir, ledger.FileName))
	if err != nil {
		lock.Release()
		return nil, err
	}

	store := state.NewStore(runDir)
	st, err := store.Load(runID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrStateCorrupt) {
			led.Close()
			lock.Release()
			return nil, err
		}
		// The snapshot is a cache of the ledger; an unreadable one is
		// rebuilt by replay rather than blocking the run.
		log.Warn("state snapshot unreadable, rebuilding from ledger", "error", err)
		st = state.New(runID)
	}
	sum, err := recovery.Rebuild(log, runDir, st)
	if err != nil {
		led.Close()
		lock.Release()
		return nil, err
	}

	q := queue.New(cfg.Run.MaxInflight)
	bus := event.NewBus()
	observeBus(bus, log)
	sched := scheduler.New(st, store, q, bus, log, cfg.Run.MaxInflight, cfg.Run.MaxAttempts)
	red := reducer.New(log, led, sched, bus, runID, cfg.Run.EpsRoot, cfg.Run.CheckpointEvery, sum.Dedup)

	w := opt.worker
	switch {
	case w != nil:
	case cfg.Workers.Command != "":
		w = worker.NewExecWorker(cfg.Workers.Command)
	default:
		fn, err := worker.LookupTarget(cfg.Workers.Target)
		if err != nil {
			led.Close()
			lock.Release()
			return nil, err
		}
		w = worker.NewScanWorker(fn, cfg.Workers.MaxIters)
	}
	if opt.reasoning != nil {
		w = reasoning.NewAdvisor(w, opt.reasoning, cfg.Workers.Target, log)
	}
	pool := worker.NewPool(w, q, log, cfg.Workers.Count)

	return &Orchestrator{
		cfg:   cfg,
		log:   log.WithRun(runID),
		runID: runID,
		lock:  lock,
		led:   led,
		st:    st,
		store: store,
		q:     q,
		bus:   bus,
		sched: sched,
		red:   red,
		pool:  pool,
	}, nil
}

// observeBus mirrors every published event into the debug log.
func observeBus(bus *event.Bus, log *logging.Logger) {
	evLog := log.WithComponent("events")
	bus.SubscribeAll(func(ev event.Event) {
		switch e := ev.(type) {
		case event.ResultAccepted:
			evLog.Debug(e.EventType(), "job_id", e.JobID, "seq", e.Seq, "hash", e.Hash)
		case event.ResultRejected:
			evLog.Debug(e.EventType(), "job_id", e.JobID, "reason", e.Reason)
		case event.JobTransition:
			evLog.Debug(e.EventType(), "job_id", e.JobID, "from", e.From, "to", e.To)
		default:
			evLog.Debug(ev.EventType())
		}
	})
}

// Bus exposes the event bus so callers can observe the run.
func (o *Orchestrator) Bus() *event.Bus {
	return o.bus
}

// State returns the live run state. Callers must treat it as read-only
// while Run is in flight.
func (o *Orchestrator) State() *state.State {
	return o.st
}

// Run executes the given jobs to completion: register, dispatch up to
// the in-flight limit, compute, and funnel every candidate through the
// acceptance pipeline. It returns when every job is terminal, the context
// is canceled, or a systemic error stops the pipeline.
func (o *Orchestrator) Run(ctx context.Context, specs []contract.JobSpec) error {
	if err := o.sched.Register(specs); err != nil {
		return err
	}
	if err := o.sched.Fill(ctx); err != nil {
		return err
	}

	// The reducer error cancels runCtx so blocked workers unwind instead
	// of waiting on a drain that will never come.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.pool.Start(runCtx)

	redErr := make(chan error, 1)
	go func() {
		err := o.red.Run(runCtx, o.q)
		if err != nil {
			cancel()
		}
		redErr <- err
	}()

	if o.sched.Remaining() == 0 {
		// Nothing left to dispatch; release the workers immediately.
		o.q.CloseJobs()
	}
	go func() {
		select {
		case <-o.sched.Done():
		case <-runCtx.Done():
		}
		o.q.CloseJobs()
	}()

	o.pool.Wait()
	o.q.CloseMessages()

	if err := <-redErr; err != nil {
		return err
	}
	if err := o.sched.Checkpoint(); err != nil {
		return err
	}

	o.log.Info("run finished",
		"jobs", len(o.st.Jobs),
		"done", o.st.Done,
		"failed", o.st.Failed,
		"accepted", o.st.Accepted,
		"rejected", o.st.Rejected,
	)
	return ctx.Err()
}

// Close releases the ledger and the writer lock. Safe after a failed Run.
func (o *Orchestrator) Close() error {
	var errs []error
	if o.led != nil {
		if err := o.led.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.lock != nil {
		if err := o.lock.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return apperrors.Join(errs...)
}
