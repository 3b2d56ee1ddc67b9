package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracleBot/internal/model"
)

func testQuoteOf(amount int64) model.PriceQuote {
	return model.PriceQuote{
		InputAmount:  oneEther(),
		Path:         nil,
		OutputAmount: big.NewInt(amount),
		FetchedAt:    time.Now(),
	}
}

func TestScalePrice(t *testing.T) {
	tests := []struct {
		name   string
		amount *big.Int
		quote  uint8
		oracle uint8
		want   string
	}{
		{name: "equal decimals", amount: big.NewInt(2_500_000), quote: 18, oracle: 18, want: "2500000"},
		{name: "oracle finer", amount: big.NewInt(2_500_000), quote: 6, oracle: 18, want: "2500000000000000000"},
		{name: "oracle coarser", amount: big.NewInt(2_500_000_000_000_000), quote: 18, oracle: 6, want: "2500"},
		{name: "coarser truncates", amount: big.NewInt(2_500_000), quote: 18, oracle: 6, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScalePrice(tt.amount, tt.quote, tt.oracle)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestScalePriceDoesNotAliasInput(t *testing.T) {
	amount := big.NewInt(7)
	got := ScalePrice(amount, 18, 18)
	got.SetInt64(9)
	assert.Equal(t, int64(7), amount.Int64())
}

func TestSubmitSendsUnscaledPrice(t *testing.T) {
	cfg := testConfig(t)
	backend := newFakeBackend(t)

	submitter, err := NewSubmitter(cfg, backend, nil)
	require.NoError(t, err)

	tx, err := submitter.Submit(context.Background(), testQuoteOf(2_500_000))
	require.NoError(t, err)
	require.Equal(t, 1, backend.sentCount())

	sent := backend.sent[0]
	assert.Equal(t, sent.Hash(), tx.Hash)
	assert.Equal(t, "2500000", sentPrice(t, sent).String())
	assert.Equal(t, "2500000", tx.ScaledPrice.String())
	assert.Equal(t, uint64(7), sent.Nonce())
	assert.Equal(t, uint64(7_000_000), sent.Gas())
	assert.Equal(t, 0, sent.GasPrice().Cmp(gwei(1_300_000)))
	assert.Equal(t, testOracle, *sent.To())

	from, err := types.Sender(types.LatestSignerForChainID(cfg.ChainID), sent)
	require.NoError(t, err)
	assert.Equal(t, cfg.Signer(), from)
	assert.Empty(t, backend.estimateMsgs)
}

func TestSubmitAsksNodeForGasWhenUnset(t *testing.T) {
	cfg := testConfig(t)
	cfg.GasLimit = 0
	cfg.GasPrice = nil
	backend := newFakeBackend(t)

	submitter, err := NewSubmitter(cfg, backend, nil)
	require.NoError(t, err)

	tx, err := submitter.Submit(context.Background(), testQuoteOf(1))
	require.NoError(t, err)

	assert.Equal(t, uint64(60_000), tx.GasLimit)
	assert.Equal(t, 0, tx.GasPrice.Cmp(gwei(5)))
	require.Len(t, backend.estimateMsgs, 1)
	assert.Equal(t, cfg.Signer(), backend.estimateMsgs[0].From)
}

func TestSubmitClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason SubmissionReason
	}{
		{name: "insufficient funds", err: errors.New("insufficient funds for gas * price + value"), reason: ReasonInsufficientFunds},
		{name: "nonce too low", err: errors.New("nonce too low"), reason: ReasonNonceConflict},
		{name: "already known", err: errors.New("already known"), reason: ReasonNonceConflict},
		{name: "other", err: errors.New("transaction type not supported"), reason: ReasonRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			backend := newFakeBackend(t)
			backend.sendErr = tt.err

			submitter, err := NewSubmitter(cfg, backend, nil)
			require.NoError(t, err)

			_, err = submitter.Submit(context.Background(), testQuoteOf(1))

			var subErr *SubmissionError
			require.ErrorAs(t, err, &subErr)
			assert.Equal(t, tt.reason, subErr.Reason)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSubmitNonceLookupFailure(t *testing.T) {
	cfg := testConfig(t)
	backend := newFakeBackend(t)
	backend.nonceErr = errors.New("dial tcp: connection refused")

	submitter, err := NewSubmitter(cfg, backend, nil)
	require.NoError(t, err)

	_, err = submitter.Submit(context.Background(), testQuoteOf(1))

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, ReasonRejected, subErr.Reason)
	assert.Equal(t, 0, backend.sentCount())
}
