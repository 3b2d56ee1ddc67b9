package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"oracleBot/internal/model"
)

// Sender is the subset of the chain client needed to build and send a transaction.
type Sender interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Submitter signs and sends oracle price updates.
type Submitter struct {
	cfg    Config
	sender Sender
	signer types.Signer
	from   common.Address
	logger *zap.Logger
	now    func() time.Time
}

// NewSubmitter builds a Submitter for the configured signer and chain.
func NewSubmitter(cfg Config, sender Sender, logger *zap.Logger) (*Submitter, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is nil")
	}
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}
	if cfg.ChainID == nil {
		return nil, fmt.Errorf("chain id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		cfg:    cfg,
		sender: sender,
		signer: types.LatestSignerForChainID(cfg.ChainID),
		from:   cfg.Signer(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Submit sends updatePrice(scaledPrice) and returns once the node has accepted the
// transaction into its pool. Failures are never retried here.
func (s *Submitter) Submit(ctx context.Context, quote model.PriceQuote) (model.PriceUpdateTransaction, error) {
	if quote.OutputAmount == nil {
		return model.PriceUpdateTransaction{}, &SubmissionError{Reason: ReasonRejected, Err: fmt.Errorf("quote has no output amount")}
	}
	price := ScalePrice(quote.OutputAmount, s.cfg.QuoteDecimals, s.cfg.OracleDecimals)

	oracleABI, err := OracleABI()
	if err != nil {
		return model.PriceUpdateTransaction{}, &SubmissionError{Reason: ReasonSigning, Err: fmt.Errorf("parse oracle abi: %w", err)}
	}
	data, err := oracleABI.Pack("updatePrice", price)
	if err != nil {
		return model.PriceUpdateTransaction{}, &SubmissionError{Reason: ReasonSigning, Err: fmt.Errorf("pack updatePrice: %w", err)}
	}

	nonce, err := s.pendingNonce(ctx)
	if err != nil {
		return model.PriceUpdateTransaction{}, &SubmissionError{Reason: classifySubmitError(err), Err: fmt.Errorf("pending nonce: %w", err)}
	}

	gasPrice, err := s.gasPrice(ctx)
	if err != nil {
		return model.PriceUpdateTransaction{}, &SubmissionError{Reason: classifySubmitError(err), Err: fmt.Errorf("gas price: %w", err)}
	}

	to := s.cfg.OracleAddress
	gasLimit, err := s.gasLimit(ctx, ethereum.CallMsg{From: s.from, To: &to, GasPrice: gasPrice, Data: data})
	if err != nil {
		return model.PriceUpdateTransaction{}, &SubmissionError{Reason: classifySubmitError(err), Err: fmt.Errorf("estimate gas: %w", err)}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, s.signer, s.cfg.PrivateKey)
	if err != nil {
		return model.PriceUpdateTransaction{}, &SubmissionError{Reason: ReasonSigning, Err: fmt.Errorf("sign tx: %w", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.callTimeout())
	defer cancel()
	if err := s.sender.SendTransaction(callCtx, signed); err != nil {
		return model.PriceUpdateTransaction{}, &SubmissionError{Reason: classifySubmitError(err), Err: fmt.Errorf("send tx: %w", err)}
	}

	s.logger.Debug("price update accepted",
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("gas_price", gasPrice.String()),
	)

	return model.PriceUpdateTransaction{
		Hash:        signed.Hash(),
		Nonce:       nonce,
		GasLimit:    gasLimit,
		GasPrice:    new(big.Int).Set(gasPrice),
		ScaledPrice: price,
		SubmittedAt: s.now().UTC(),
		Tx:          signed,
	}, nil
}

func (s *Submitter) pendingNonce(ctx context.Context) (uint64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.callTimeout())
	defer cancel()
	return s.sender.PendingNonceAt(callCtx, s.from)
}

func (s *Submitter) gasPrice(ctx context.Context) (*big.Int, error) {
	if s.cfg.GasPrice != nil {
		return new(big.Int).Set(s.cfg.GasPrice), nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.callTimeout())
	defer cancel()
	return s.sender.SuggestGasPrice(callCtx)
}

func (s *Submitter) gasLimit(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if s.cfg.GasLimit > 0 {
		return s.cfg.GasLimit, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.callTimeout())
	defer cancel()
	return s.sender.EstimateGas(callCtx, msg)
}
