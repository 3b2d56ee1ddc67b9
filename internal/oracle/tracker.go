package oracle

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"oracleBot/internal/dex"
	"oracleBot/internal/model"
)

const (
	defaultConfirmTimeout = 2 * time.Minute
	defaultReceiptPoll    = 2 * time.Second
)

// ReceiptReader looks up receipts and replays calls for revert reasons.
type ReceiptReader interface {
	dex.Caller
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Confirmation describes a mined, successful price update.
type Confirmation struct {
	BlockNumber uint64
	GasUsed     uint64
	// Price is the submitted value formatted at oracle precision.
	Price string
}

// Tracker waits for submitted updates to be mined.
type Tracker struct {
	cfg    Config
	reader ReceiptReader
	from   common.Address
	logger *zap.Logger
}

// NewTracker builds a Tracker with its dependencies.
func NewTracker(cfg Config, reader ReceiptReader, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:    cfg,
		reader: reader,
		from:   cfg.Signer(),
		logger: logger,
	}
}

// Await blocks until tx has a receipt or the confirmation timeout elapses. Cancelling
// ctx ends the wait early with a ConfirmationTimeoutError.
func (t *Tracker) Await(ctx context.Context, tx model.PriceUpdateTransaction) (Confirmation, error) {
	timeout := t.cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}
	poll := t.cfg.ReceiptPollInterval
	if poll <= 0 {
		poll = defaultReceiptPoll
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var receipt *types.Receipt
	for {
		r, err := t.reader.TransactionReceipt(waitCtx, tx.Hash)
		if err == nil && r != nil {
			receipt = r
			break
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			t.logger.Debug("receipt lookup failed", zap.String("tx", tx.Hash.Hex()), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			return Confirmation{}, &ConfirmationTimeoutError{
				TxHash: tx.Hash,
				Waited: time.Since(start),
				Err:    waitCtx.Err(),
			}
		case <-ticker.C:
		}
	}

	blockNumber := uint64(0)
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return Confirmation{}, &RevertedError{
			TxHash:      tx.Hash,
			BlockNumber: blockNumber,
			Reason:      t.revertReason(ctx, tx, receipt),
		}
	}

	return Confirmation{
		BlockNumber: blockNumber,
		GasUsed:     receipt.GasUsed,
		Price:       FormatUnits(tx.ScaledPrice, t.cfg.OracleDecimals),
	}, nil
}

// revertReason replays the transaction as a call against the state before its block
// and returns the node's error text unchanged.
func (t *Tracker) revertReason(ctx context.Context, tx model.PriceUpdateTransaction, receipt *types.Receipt) string {
	if tx.Tx == nil {
		return ""
	}

	msg := ethereum.CallMsg{
		From:     t.from,
		To:       tx.Tx.To(),
		Gas:      tx.Tx.Gas(),
		GasPrice: tx.Tx.GasPrice(),
		Value:    tx.Tx.Value(),
		Data:     tx.Tx.Data(),
	}

	var block *big.Int
	if receipt.BlockNumber != nil && receipt.BlockNumber.Sign() > 0 {
		block = new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	}

	callCtx, cancel := context.WithTimeout(ctx, t.cfg.callTimeout())
	defer cancel()
	if _, err := t.reader.CallContract(callCtx, msg, block); err != nil {
		return err.Error()
	}
	t.logger.Debug("revert replay succeeded, reason unavailable", zap.String("tx", tx.Hash.Hex()))
	return ""
}

