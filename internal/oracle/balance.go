package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"oracleBot/internal/model"
)

// BalanceReader reads native balances.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// BalanceMonitor warns when the signer is running out of gas money.
type BalanceMonitor struct {
	cfg     Config
	reader  BalanceReader
	account common.Address
	logger  *zap.Logger
	now     func() time.Time
}

func NewBalanceMonitor(cfg Config, reader BalanceReader, logger *zap.Logger) *BalanceMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceMonitor{
		cfg:     cfg,
		reader:  reader,
		account: cfg.Signer(),
		logger:  logger,
		now:     time.Now,
	}
}

// Check samples the signer balance and logs a warning when it is below threshold.
func (m *BalanceMonitor) Check(ctx context.Context) (model.WalletBalanceSample, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.callTimeout())
	defer cancel()

	balance, err := m.reader.BalanceAt(callCtx, m.account, nil)
	if err != nil {
		return model.WalletBalanceSample{}, fmt.Errorf("balance of %s: %w", m.account.Hex(), err)
	}

	threshold := m.cfg.LowBalanceThreshold
	sample := model.WalletBalanceSample{
		Address:   m.account.Hex(),
		Balance:   balance,
		Threshold: threshold,
		IsLow:     threshold != nil && balance.Cmp(threshold) < 0,
		SampledAt: m.now().UTC(),
	}

	if sample.IsLow {
		m.logger.Warn("low wallet balance",
			zap.String("address", sample.Address),
			zap.String("balance", FormatUnits(balance, NativeDecimals)),
			zap.String("threshold", FormatUnits(threshold, NativeDecimals)),
		)
	}

	return sample, nil
}
