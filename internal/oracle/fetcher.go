package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"oracleBot/internal/dex"
	"oracleBot/internal/model"
)

// Fetcher reads the router quote for the configured input amount and path.
type Fetcher struct {
	cfg    Config
	caller dex.Caller
	logger *zap.Logger
	now    func() time.Time
}

// NewFetcher builds a Fetcher with its dependencies.
func NewFetcher(cfg Config, caller dex.Caller, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		caller: caller,
		logger: logger,
		now:    time.Now,
	}
}

// Fetch returns a fresh quote. Transport failures are retried with backoff up to the
// configured count; a malformed response fails immediately.
func (f *Fetcher) Fetch(ctx context.Context) (model.PriceQuote, error) {
	path := f.cfg.Path()
	amountIn := new(big.Int).Set(f.cfg.AmountIn)

	var (
		amounts  []*big.Int
		attempts int
	)
	err := withRetry(ctx, f.cfg.QuoteRetries, f.cfg.QuoteRetryBackoff, isRetryableQuoteError, func(ctx context.Context) error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.callTimeout())
		defer cancel()

		out, err := dex.GetAmountsOut(callCtx, f.caller, f.cfg.RouterAddress, amountIn, path)
		if err != nil {
			f.logger.Warn("router quote failed", zap.Error(err), zap.Int("attempt", attempts))
			return err
		}
		if len(out) < len(path) {
			return fmt.Errorf("%w: got %d, want %d", errShortAmounts, len(out), len(path))
		}
		amounts = out
		return nil
	})
	if err != nil {
		return model.PriceQuote{}, &QuoteError{Attempts: attempts, Err: err}
	}

	output := amounts[1]
	if output == nil || output.Sign() <= 0 {
		return model.PriceQuote{}, &QuoteError{Attempts: attempts, Err: fmt.Errorf("router quoted non-positive amount %v", output)}
	}

	return model.PriceQuote{
		InputAmount:  amountIn,
		Path:         path,
		OutputAmount: new(big.Int).Set(output),
		FetchedAt:    f.now().UTC(),
	}, nil
}

func isRetryableQuoteError(err error) bool {
	if errors.Is(err, errShortAmounts) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
