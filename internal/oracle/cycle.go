package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"oracleBot/internal/model"
)

// Backend is everything one update cycle needs from the chain. *chain.Client satisfies it.
type Backend interface {
	BalanceReader
	Sender
	ReceiptReader
}

// Recorder receives cycle results, e.g. for metrics. It may be nil.
type Recorder interface {
	ObserveBalance(sample model.WalletBalanceSample)
	ObserveOutcome(outcome model.CycleOutcome)
}

// Cycle runs balance check, fetch, submit and confirmation once per call.
type Cycle struct {
	balance   *BalanceMonitor
	fetcher   *Fetcher
	submitter *Submitter
	tracker   *Tracker
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewCycle wires the cycle components to backend.
func NewCycle(cfg Config, backend Backend, logger *zap.Logger, recorder Recorder) (*Cycle, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	submitter, err := NewSubmitter(cfg, backend, logger)
	if err != nil {
		return nil, err
	}

	return &Cycle{
		balance:   NewBalanceMonitor(cfg, backend, logger),
		fetcher:   NewFetcher(cfg, backend, logger),
		submitter: submitter,
		tracker:   NewTracker(cfg, backend, logger),
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// RunCycle executes one update and logs exactly one outcome entry for it.
func (c *Cycle) RunCycle(ctx context.Context) model.CycleOutcome {
	outcome := model.CycleOutcome{StartedAt: c.now().UTC()}
	c.logger.Info("cycle start")

	if sample, err := c.balance.Check(ctx); err != nil {
		c.logger.Warn("balance check failed", zap.Error(err))
	} else if c.recorder != nil {
		c.recorder.ObserveBalance(sample)
	}

	quote, err := c.fetcher.Fetch(ctx)
	if err != nil {
		outcome.Kind = model.OutcomeFetchFailed
		outcome.Stage = model.StageFetch
		outcome.Err = err
		return c.finish(outcome)
	}

	tx, err := c.submitter.Submit(ctx, quote)
	if err != nil {
		outcome.Kind = model.OutcomeSubmitFailed
		outcome.Stage = model.StageSubmit
		outcome.Err = err
		return c.finish(outcome)
	}
	outcome.TxHash = tx.Hash.Hex()
	outcome.ScaledPrice = tx.ScaledPrice
	c.logger.Info("submitted tx",
		zap.String("tx", outcome.TxHash),
		zap.Uint64("nonce", tx.Nonce),
		zap.String("raw_price", tx.ScaledPrice.String()),
	)

	confirmation, err := c.tracker.Await(ctx, tx)
	if err != nil {
		outcome.Stage = model.StageConfirm
		outcome.Err = err
		var reverted *RevertedError
		if errors.As(err, &reverted) {
			outcome.Kind = model.OutcomeReverted
		} else {
			outcome.Kind = model.OutcomeConfirmationTimedOut
		}
		return c.finish(outcome)
	}

	outcome.Kind = model.OutcomeSuccess
	outcome.Stage = model.StageConfirm
	outcome.ConfirmedPrice = confirmation.Price
	return c.finish(outcome)
}

func (c *Cycle) finish(outcome model.CycleOutcome) model.CycleOutcome {
	outcome.FinishedAt = c.now().UTC()

	fields := []zap.Field{
		zap.String("outcome", string(outcome.Kind)),
		zap.String("stage", string(outcome.Stage)),
		zap.Time("started_at", outcome.StartedAt),
		zap.Duration("duration", outcome.Duration()),
	}
	if outcome.TxHash != "" {
		fields = append(fields, zap.String("tx", outcome.TxHash))
	}
	if outcome.ScaledPrice != nil {
		fields = append(fields, zap.String("raw_price", outcome.ScaledPrice.String()))
	}

	if outcome.OK() {
		fields = append(fields, zap.String("price", outcome.ConfirmedPrice))
		c.logger.Info("cycle outcome", fields...)
	} else {
		fields = append(fields, zap.Error(outcome.Err))
		c.logger.Error("cycle outcome", fields...)
	}

	if c.recorder != nil {
		c.recorder.ObserveOutcome(outcome)
	}
	return outcome
}
