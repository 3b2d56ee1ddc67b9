package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"oracleBot/internal/model"
)

// ErrCycleInFlight is returned by TriggerNow when another cycle holds the slot.
var ErrCycleInFlight = errors.New("cycle already in flight")

// CycleRunner executes one update cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) model.CycleOutcome
}

// Config controls tick cadence and shutdown.
type Config struct {
	Interval      time.Duration
	RunOnStart    bool
	ShutdownGrace time.Duration
}

// Scheduler triggers cycles on a fixed interval and never runs two at once.
type Scheduler struct {
	cfg    Config
	runner CycleRunner
	logger *zap.Logger
	cron   *cron.Cron

	// slot holds a token while a cycle runs.
	slot    chan struct{}
	stopped atomic.Bool

	cycleCtx context.Context
	cancel   context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
}

// New builds a Scheduler. Nothing runs until Start.
func New(cfg Config, runner CycleRunner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLog := cronLogger{logger: logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)
	cycleCtx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		logger:   logger,
		cron:     c,
		slot:     make(chan struct{}, 1),
		cycleCtx: cycleCtx,
		cancel:   cancel,
	}
}

// Start registers the interval tick and starts the cron loop. Cycles started by the
// scheduler keep ctx values but are only cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Interval < time.Second || s.cfg.Interval%time.Second != 0 {
		return fmt.Errorf("interval must be a whole number of seconds, at least 1s, got %s", s.cfg.Interval)
	}

	var err error
	s.startOnce.Do(func() {
		s.cycleCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

		if _, err = s.cron.AddFunc("@every "+s.cfg.Interval.String(), s.tick); err != nil {
			err = fmt.Errorf("register cycle tick: %w", err)
			return
		}
		s.cron.Start()
		s.logger.Info("scheduler started",
			zap.Duration("interval", s.cfg.Interval),
			zap.Bool("run_on_start", s.cfg.RunOnStart),
		)

		if s.cfg.RunOnStart {
			go s.tick()
		}
	})
	return err
}

// Stop halts ticking and waits up to grace for the in-flight cycle. After grace the
// cycle context is cancelled and Stop waits for the cycle to return.
func (s *Scheduler) Stop(grace time.Duration) {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		cronDone := s.cron.Stop()

		acquired := make(chan struct{})
		go func() {
			s.slot <- struct{}{}
			close(acquired)
		}()

		timer := time.NewTimer(grace)
		defer timer.Stop()

		select {
		case <-acquired:
		case <-timer.C:
			s.logger.Warn("shutdown grace elapsed, cancelling in-flight cycle", zap.Duration("grace", grace))
			s.cancel()
			<-acquired
		}
		s.cancel()
		<-cronDone.Done()
		s.logger.Info("scheduler stopped")
	})
}

// Run starts the scheduler, blocks until ctx is done and then stops with the
// configured grace period.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.logger.Info("shutdown requested", zap.Duration("grace", s.cfg.ShutdownGrace))
	s.Stop(s.cfg.ShutdownGrace)
	return nil
}

// TriggerNow runs one cycle synchronously on ctx if the slot is free.
func (s *Scheduler) TriggerNow(ctx context.Context) (model.CycleOutcome, error) {
	if s.stopped.Load() || !s.tryAcquire() {
		return model.CycleOutcome{}, ErrCycleInFlight
	}
	defer s.release()
	return s.runner.RunCycle(ctx), nil
}

func (s *Scheduler) tick() {
	if s.stopped.Load() {
		return
	}
	if !s.tryAcquire() {
		if !s.stopped.Load() {
			s.logger.Warn("previous cycle still in flight, skipping tick")
		}
		return
	}
	defer s.release()
	s.runner.RunCycle(s.cycleCtx)
}

func (s *Scheduler) tryAcquire() bool {
	select {
	case s.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) release() {
	<-s.slot
}

// cronLogger routes cron's internal logging to zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
