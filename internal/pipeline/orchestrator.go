package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rickgao/crypto-etl/internal/model"
)

// Errors returned by TriggerNow.
var (
	// ErrRunInProgress rejects a trigger while another run holds the
	// single-flight lock. Runs are never interleaved.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrCircuitOpen rejects triggers after the breaker has tripped.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrStopped rejects triggers during and after shutdown.
	ErrStopped = errors.New("orchestrator is stopped")
)

// Config holds orchestration settings.
type Config struct {
	Interval         time.Duration // Scheduled run cadence
	RunOnStart       bool          // Run once immediately on Start
	FailureThreshold int           // Consecutive failures tripping the breaker
}

// DefaultConfig returns the default orchestration configuration.
func DefaultConfig() Config {
	return Config{
		Interval:         5 * time.Minute,
		RunOnStart:       true,
		FailureThreshold: defaultFailureThreshold,
	}
}

// Orchestrator owns the schedule, the single-flight run lock and the
// circuit breaker. All runs, scheduled or manual, go through the same path.
type Orchestrator struct {
	pipeline  *Pipeline
	breaker   *Breaker
	cfg       Config
	scheduler *gocron.Scheduler
	logger    *slog.Logger

	// runMu serializes runs; TryLock turns a concurrent trigger into an
	// immediate ErrRunInProgress instead of a queue.
	runMu  sync.Mutex
	closed atomic.Bool
}

// NewOrchestrator creates an Orchestrator around the given pipeline.
func NewOrchestrator(p *Pipeline, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Interval < time.Second {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		pipeline:  p,
		breaker:   NewBreaker(cfg.FailureThreshold),
		cfg:       cfg,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger.With("component", "orchestrator"),
	}
}

// Start optionally kicks off an immediate run, then begins the interval
// schedule. The first scheduled tick fires one interval after start.
func (o *Orchestrator) Start() error {
	o.logger.Info("orchestrator starting",
		"interval", o.cfg.Interval,
		"run_on_start", o.cfg.RunOnStart,
		"failure_threshold", o.cfg.FailureThreshold)

	if o.cfg.RunOnStart {
		go o.scheduledRun()
	}

	if _, err := o.scheduler.Every(o.cfg.Interval).WaitForSchedule().Do(o.scheduledRun); err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}
	o.scheduler.StartAsync()
	return nil
}

// TriggerNow runs the pipeline on demand. The run executes on the
// orchestrator's own context, so a disconnecting caller cannot abort an
// in-flight transaction.
func (o *Orchestrator) TriggerNow(trigger string) (model.RunOutcome, error) {
	if o.closed.Load() {
		return model.RunOutcome{}, ErrStopped
	}
	if o.breaker.Open() {
		return model.RunOutcome{}, ErrCircuitOpen
	}
	if !o.runMu.TryLock() {
		return model.RunOutcome{}, ErrRunInProgress
	}
	defer o.runMu.Unlock()

	return o.execute(trigger), nil
}

// Shutdown stops the schedule, rejects new triggers and waits for any
// in-flight run until ctx expires.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.closed.Store(true)

	done := make(chan struct{})
	go func() {
		o.scheduler.Stop()
		o.runMu.Lock()
		defer o.runMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("orchestrator stopped")
		return nil
	case <-ctx.Done():
		o.logger.Warn("orchestrator stop timed out with a run in flight")
		return ctx.Err()
	}
}

// BreakerOpen reports whether the circuit breaker has tripped.
func (o *Orchestrator) BreakerOpen() bool {
	return o.breaker.Open()
}

// BreakerFailures returns the current consecutive failure count.
func (o *Orchestrator) BreakerFailures() int {
	return o.breaker.Failures()
}

// scheduledRun is the gocron job body. A tick that collides with an active
// run is skipped, not queued.
func (o *Orchestrator) scheduledRun() {
	if o.closed.Load() {
		return
	}
	if o.breaker.Open() {
		o.logger.Warn("circuit breaker open, skipping scheduled run")
		return
	}
	if !o.runMu.TryLock() {
		o.logger.Warn("previous run still in progress, skipping scheduled run")
		return
	}
	defer o.runMu.Unlock()

	o.execute(model.TriggerScheduled)
}

// execute runs the pipeline once and feeds the breaker. Runs use a
// background context: shutdown waits for them instead of cancelling
// mid-transaction.
func (o *Orchestrator) execute(trigger string) model.RunOutcome {
	outcome := o.pipeline.RunOnce(context.Background(), trigger)

	if outcome.Success {
		o.breaker.RecordSuccess()
		return outcome
	}

	if o.breaker.RecordFailure() {
		o.logger.Error("circuit breaker tripped, halting schedule",
			"consecutive_failures", o.breaker.Failures(),
			"threshold", o.breaker.Threshold())
		// Stop from outside the job goroutine; gocron's stop waits for
		// running jobs and would deadlock against this one.
		go o.scheduler.Stop()
		return outcome
	}

	o.logger.Warn("run failed",
		"consecutive_failures", o.breaker.Failures(),
		"threshold", o.breaker.Threshold())
	return outcome
}
