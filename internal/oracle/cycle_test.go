package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"oracleBot/internal/model"
)

type recordingRecorder struct {
	mu       sync.Mutex
	balances []model.WalletBalanceSample
	outcomes []model.CycleOutcome
}

func (r *recordingRecorder) ObserveBalance(sample model.WalletBalanceSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances = append(r.balances, sample)
}

func (r *recordingRecorder) ObserveOutcome(outcome model.CycleOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func newTestCycle(t *testing.T, cfg Config, backend *fakeBackend) (*Cycle, *observer.ObservedLogs, *recordingRecorder) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	recorder := &recordingRecorder{}
	cycle, err := NewCycle(cfg, backend, zap.New(core), recorder)
	require.NoError(t, err)
	return cycle, logs, recorder
}

func TestRunCycleSuccess(t *testing.T) {
	cfg := testConfig(t)
	backend := newFakeBackend(t)
	cycle, logs, recorder := newTestCycle(t, cfg, backend)

	outcome := cycle.RunCycle(context.Background())

	require.True(t, outcome.OK(), "outcome error: %v", outcome.Err)
	assert.Equal(t, model.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, "0.0000000000025", outcome.ConfirmedPrice)
	assert.Equal(t, "2500000", outcome.ScaledPrice.String())

	require.Equal(t, 1, backend.sentCount())
	assert.Equal(t, "2500000", sentPrice(t, backend.sent[0]).String())
	assert.Equal(t, backend.sent[0].Hash().Hex(), outcome.TxHash)

	entries := logs.FilterMessage("cycle outcome").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "0.0000000000025", entries[0].ContextMap()["price"])
	assert.Equal(t, "success", entries[0].ContextMap()["outcome"])

	require.Len(t, recorder.outcomes, 1)
	require.Len(t, recorder.balances, 1)
	assert.False(t, recorder.balances[0].IsLow)
}

func TestRunCycleFetchFailureSkipsSubmission(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPCTimeout = 10 * time.Millisecond
	backend := newFakeBackend(t)
	backend.routerFn = func(int, ethereum.CallMsg) ([]byte, error) {
		return nil, context.DeadlineExceeded
	}
	cycle, logs, recorder := newTestCycle(t, cfg, backend)

	outcome := cycle.RunCycle(context.Background())

	assert.Equal(t, model.OutcomeFetchFailed, outcome.Kind)
	assert.Equal(t, model.StageFetch, outcome.Stage)
	var quoteErr *QuoteError
	require.ErrorAs(t, outcome.Err, &quoteErr)
	assert.Equal(t, cfg.QuoteRetries+1, quoteErr.Attempts)

	assert.Zero(t, backend.sentCount())
	assert.Zero(t, backend.nonceCalls)
	assert.Empty(t, outcome.TxHash)

	entries := logs.FilterMessage("cycle outcome").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "fetch_failed", entries[0].ContextMap()["outcome"])
	require.Len(t, recorder.outcomes, 1)
}

func TestRunCycleLowBalanceStillSubmits(t *testing.T) {
	cfg := testConfig(t)
	backend := newFakeBackend(t)
	backend.balance = big.NewInt(1_000)
	cycle, logs, recorder := newTestCycle(t, cfg, backend)

	outcome := cycle.RunCycle(context.Background())

	assert.True(t, outcome.OK())
	assert.Equal(t, 1, logs.FilterMessage("low wallet balance").Len())
	assert.Equal(t, 1, backend.sentCount())
	require.Len(t, recorder.balances, 1)
	assert.True(t, recorder.balances[0].IsLow)
}

func TestRunCycleBalanceErrorDoesNotBlock(t *testing.T) {
	cfg := testConfig(t)
	backend := newFakeBackend(t)
	backend.balanceErr = errors.New("balance unavailable")
	cycle, logs, recorder := newTestCycle(t, cfg, backend)

	outcome := cycle.RunCycle(context.Background())

	assert.True(t, outcome.OK())
	assert.Equal(t, 1, logs.FilterMessage("balance check failed").Len())
	assert.Empty(t, recorder.balances)
}

func TestRunCycleSubmitFailure(t *testing.T) {
	cfg := testConfig(t)
	backend := newFakeBackend(t)
	backend.sendErr = errors.New("insufficient funds for gas * price + value")
	cycle, logs, _ := newTestCycle(t, cfg, backend)

	outcome := cycle.RunCycle(context.Background())

	assert.Equal(t, model.OutcomeSubmitFailed, outcome.Kind)
	assert.Equal(t, model.StageSubmit, outcome.Stage)
	var submitErr *SubmissionError
	require.ErrorAs(t, outcome.Err, &submitErr)
	assert.Equal(t, ReasonInsufficientFunds, submitErr.Reason)
	assert.Zero(t, backend.receiptCalls)
	assert.Equal(t, 1, logs.FilterMessage("cycle outcome").Len())
}

func TestRunCycleReverted(t *testing.T) {
	cfg := testConfig(t)
	backend := newFakeBackend(t)
	backend.receiptFn = func(_ int, hash common.Hash) (*types.Receipt, error) {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash, BlockNumber: big.NewInt(40)}, nil
	}
	backend.replayFn = func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, errors.New("execution reverted: stale price")
	}
	cycle, logs, _ := newTestCycle(t, cfg, backend)

	outcome := cycle.RunCycle(context.Background())

	assert.Equal(t, model.OutcomeReverted, outcome.Kind)
	assert.Equal(t, model.StageConfirm, outcome.Stage)
	var reverted *RevertedError
	require.ErrorAs(t, outcome.Err, &reverted)
	assert.Equal(t, "execution reverted: stale price", reverted.Reason)
	assert.NotEmpty(t, outcome.TxHash)

	entries := logs.FilterMessage("cycle outcome").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "reverted", entries[0].ContextMap()["outcome"])
}

func TestRunCycleConfirmationTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.ConfirmTimeout = 20 * time.Millisecond
	backend := newFakeBackend(t)
	backend.receiptFn = func(int, common.Hash) (*types.Receipt, error) {
		return nil, ethereum.NotFound
	}
	cycle, logs, recorder := newTestCycle(t, cfg, backend)

	outcome := cycle.RunCycle(context.Background())

	assert.Equal(t, model.OutcomeConfirmationTimedOut, outcome.Kind)
	var timeout *ConfirmationTimeoutError
	require.ErrorAs(t, outcome.Err, &timeout)
	assert.Equal(t, outcome.TxHash, timeout.TxHash.Hex())
	assert.Equal(t, 1, logs.FilterMessage("cycle outcome").Len())
	require.Len(t, recorder.outcomes, 1)
	assert.Equal(t, model.OutcomeConfirmationTimedOut, recorder.outcomes[0].Kind)
}

func TestRunCycleNeverLogsKey(t *testing.T) {
	cfg := testConfig(t)
	backend := newFakeBackend(t)
	cycle, logs, _ := newTestCycle(t, cfg, backend)

	cycle.RunCycle(context.Background())

	secret := common.Bytes2Hex(cfg.PrivateKey.D.Bytes())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, secret)
		for _, value := range entry.ContextMap() {
			if s, ok := value.(string); ok {
				assert.NotContains(t, s, secret)
			}
		}
	}
}

func TestNewCycleRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.PrivateKey = nil
	_, err := NewCycle(cfg, newFakeBackend(t), nil, nil)
	assert.Error(t, err)
}
