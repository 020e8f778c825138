package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/metrics"
	"github.com/merci1994dz/appdreamer-creator/internal/status"
)

// AvailabilityChecker picks a reachable source.
type AvailabilityChecker interface {
	Probe(ctx context.Context) (*Source, bool)
}

// Executor performs the remote fetch and merge.
type Executor interface {
	Execute(ctx context.Context, src *Source, force bool, params Params) (bool, error)
}

// LocalSynchronizer refreshes the cache from data already on disk.
type LocalSynchronizer interface {
	SyncWithLocalData(ctx context.Context, force bool) (bool, error)
}

// Importer installs a sideloaded catalog file as the local snapshot.
type Importer interface {
	ImportFile(ctx context.Context, path string) (int, error)
}

// ParamBuilder produces fresh request parameters for every attempt.
type ParamBuilder interface {
	Build() Params
}

// Outcome labels a finished attempt for users and metrics.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeNoUpdates Outcome = "no_updates"
	OutcomeFailed    Outcome = "failed"
)

// Message is the user-facing text for an outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeUpdated:
		return "channel list updated"
	case OutcomeNoUpdates:
		return "no updates found"
	default:
		return "connection failure"
	}
}

// Report describes one finished sync attempt.
type Report struct {
	Updated  bool
	FellBack bool
	Source   string
	Err      error
	Duration time.Duration
}

// Outcome classifies the report.
func (r Report) Outcome() Outcome {
	switch {
	case r.Updated:
		return OutcomeUpdated
	case r.FellBack || r.Err != nil:
		return OutcomeFailed
	default:
		return OutcomeNoUpdates
	}
}

// EngineOptions wires the engine's collaborators.
type EngineOptions struct {
	Prober           AvailabilityChecker
	Executor         Executor
	Local            LocalSynchronizer
	Importer         Importer
	Params           ParamBuilder
	Queue            *Queue
	Timeout          time.Duration
	AutoSyncInterval time.Duration
}

// Engine coordinates catalog syncs. At most one attempt runs at a time;
// requests arriving meanwhile are queued and replayed in order.
type Engine struct {
	logger   *zap.Logger
	status   *status.Store
	lock     *Lock
	prober   AvailabilityChecker
	executor Executor
	local    LocalSynchronizer
	importer Importer
	params   ParamBuilder
	queue    *Queue
	timeout  time.Duration
	interval time.Duration

	baseMu sync.Mutex
	base   context.Context
}

// NewEngine constructs a sync engine.
func NewEngine(logger *zap.Logger, st *status.Store, opts EngineOptions) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("sync: logger is required")
	}
	if st == nil {
		return nil, errors.New("sync: status store is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("sync: executor is required")
	}
	if opts.Local == nil {
		return nil, errors.New("sync: local synchronizer is required")
	}
	if opts.Params == nil {
		return nil, errors.New("sync: param builder is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}

	e := &Engine{
		logger:   logger,
		status:   st,
		prober:   opts.Prober,
		executor: opts.Executor,
		local:    opts.Local,
		importer: opts.Importer,
		params:   opts.Params,
		queue:    opts.Queue,
		timeout:  timeout,
		interval: opts.AutoSyncInterval,
		base:     context.Background(),
	}
	e.lock = NewLock(func(locked bool) {
		st.SetActive(locked)
		if locked {
			metrics.SyncLockHeld.Set(1)
		} else {
			metrics.SyncLockHeld.Set(0)
		}
	})
	return e, nil
}

// Busy reports whether an attempt is in flight.
func (e *Engine) Busy() bool {
	return e.lock.IsLocked()
}

// SyncAllData brings the cache up to date and reports whether fresh channel
// data is available. It never fails: remote errors fall back to local data.
func (e *Engine) SyncAllData(ctx context.Context, force bool) bool {
	return e.Refresh(ctx, force).Updated
}

// Refresh runs one sync attempt and returns its full report.
func (e *Engine) Refresh(ctx context.Context, force bool) Report {
	return e.serialize(ctx, func(actx context.Context) Report {
		return e.attempt(actx, force)
	})
}

// Import installs the catalog file at path and loads it into the cache.
func (e *Engine) Import(ctx context.Context, path string) Report {
	return e.serialize(ctx, func(actx context.Context) Report {
		if e.importer == nil {
			return Report{Source: ReasonImport, Err: errors.New("sync: import not configured")}
		}
		if _, err := e.importer.ImportFile(actx, path); err != nil {
			return Report{Source: ReasonImport, Err: err}
		}
		ok, err := e.local.SyncWithLocalData(actx, true)
		return Report{Updated: ok, Source: ReasonImport, Err: err}
	})
}

// Run performs the initial sync and then serves auto-sync ticks and queued
// triggers until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("sync engine started", zap.Duration("timeout", e.timeout), zap.Duration("auto_sync", e.interval))
	e.setBase(ctx)
	e.Refresh(ctx, false)

	var tick <-chan time.Time
	if e.interval > 0 {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	var triggers <-chan Trigger
	if e.queue != nil {
		triggers = e.queue.Channel()
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine stopped")
			return nil
		case <-tick:
			e.Refresh(ctx, false)
		case t := <-triggers:
			e.logger.Debug("sync trigger", zap.String("reason", t.Reason), zap.String("path", t.Path))
			if t.Path != "" {
				e.Import(ctx, t.Path)
				continue
			}
			e.Refresh(ctx, t.Force)
		}
	}
}

// serialize runs body under the sync lock, queueing behind an in-flight
// attempt when needed. Admitted work runs detached from ctx; a cancelled
// caller only stops waiting for the report.
func (e *Engine) serialize(ctx context.Context, body func(context.Context) Report) Report {
	detached := context.WithoutCancel(ctx)
	done, acquired := e.lock.acquireOrEnqueue(func() Report {
		return e.hold(detached, body)
	})
	if acquired {
		res := make(chan Report, 1)
		go func() { res <- e.hold(detached, body) }()
		done = res
	} else {
		metrics.SyncQueued.Inc()
		e.logger.Debug("sync in progress; request queued", zap.Int("pending", e.lock.Pending()))
	}

	select {
	case rep := <-done:
		return rep
	case <-ctx.Done():
		return Report{Err: ctx.Err()}
	}
}

// setBase installs the engine lifetime context; attempts end early only
// when it is cancelled.
func (e *Engine) setBase(ctx context.Context) {
	e.baseMu.Lock()
	e.base = ctx
	e.baseMu.Unlock()
}

func (e *Engine) baseContext() context.Context {
	e.baseMu.Lock()
	defer e.baseMu.Unlock()
	return e.base
}

// hold runs body while the caller owns the lock and releases it exactly once.
func (e *Engine) hold(ctx context.Context, body func(context.Context) Report) (rep Report) {
	actx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.baseContext(), cancel)
	start := time.Now()
	defer func() {
		stop()
		cancel()
		if next := e.lock.release(); next != nil {
			next.start()
		}
		rep.Duration = time.Since(start)
		e.record(rep)
	}()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sync attempt panicked", zap.Any("panic", r))
			rep = Report{FellBack: true, Err: fmt.Errorf("sync: attempt panicked: %v", r)}
		}
	}()
	return body(actx)
}

func (e *Engine) attempt(ctx context.Context, force bool) Report {
	deadline := time.Now().Add(e.timeout)
	params := e.params.Build()

	var hint *Source
	if e.prober != nil {
		probeCtx, cancel := context.WithDeadline(ctx, deadline)
		if src, ok := e.prober.Probe(probeCtx); ok {
			hint = src
		}
		cancel()
	}
	rep := Report{}
	if hint != nil {
		rep.Source = hint.Name
	}

	var (
		updated bool
		err     error
	)
	if remaining := time.Until(deadline); remaining > 0 {
		execCtx, cancelExec := context.WithCancel(ctx)
		updated, err = RaceWithTimeout(execCtx, func(c context.Context) (bool, error) {
			return e.executor.Execute(c, hint, force, params)
		}, remaining)
		// a late executor must not commit once the race is decided
		cancelExec()
	} else {
		err = ErrSyncTimeout
	}
	if err == nil {
		rep.Updated = updated
		return rep
	}

	if errors.Is(err, ErrSyncTimeout) {
		metrics.SyncTimeouts.Inc()
	}
	e.logger.Warn("remote sync failed; using local data", zap.Error(err))
	rep.FellBack = true
	rep.Err = err
	rep.Updated = e.fallback(ctx)
	return rep
}

func (e *Engine) fallback(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("local sync panicked", zap.Any("panic", r))
			ok = false
		}
	}()
	ok, err := e.local.SyncWithLocalData(ctx, false)
	if err != nil {
		e.logger.Error("local sync failed", zap.Error(err))
		return false
	}
	return ok
}

func (e *Engine) record(rep Report) {
	outcome := rep.Outcome()
	metrics.SyncAttempts.WithLabelValues(string(outcome)).Inc()
	metrics.SyncDuration.Observe(rep.Duration.Seconds())

	detail := string(outcome)
	if rep.Source != "" {
		detail += " via " + rep.Source
	}
	if rep.FellBack {
		detail += " (local fallback)"
	}
	e.status.AddEvent(status.Event{Kind: "SYNC", Detail: detail})
	e.status.RecordOutcome(string(outcome), outcome.Message(), outcome == OutcomeFailed)

	fields := []zap.Field{
		zap.String("outcome", detail),
		zap.Duration("duration", rep.Duration),
	}
	if rep.Err != nil {
		fields = append(fields, zap.Error(rep.Err))
	}
	e.logger.Info("sync attempt finished", fields...)
}
