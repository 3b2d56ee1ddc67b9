package oracle

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"oracleBot/internal/dex"
)

var (
	testOracle = common.HexToAddress("0xaf27A37f46cda90A1bCDbCe7db1Bf2BA2811Db32")
	testRouter = common.HexToAddress("0xD85558c4dFB8D2fcb9Bd16292622F0600de717fA")
	testBase   = common.HexToAddress("0x83048f0bf34feed8ced419455a4320a735a92e9d")
	testQuote  = common.HexToAddress("0x5FD55A1B9FC24967C4dB09C513C3BA0DFa7FF687")
)

func oneEther() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func testConfig(t *testing.T) Config {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return Config{
		ChainID:             big.NewInt(1337),
		PrivateKey:          key,
		OracleAddress:       testOracle,
		RouterAddress:       testRouter,
		BaseToken:           testBase,
		QuoteToken:          testQuote,
		AmountIn:            oneEther(),
		QuoteDecimals:       18,
		OracleDecimals:      18,
		GasLimit:            7_000_000,
		GasPrice:            gwei(1_300_000),
		Interval:            30 * time.Second,
		LowBalanceThreshold: new(big.Int).Div(oneEther(), big.NewInt(100)),
		ConfirmTimeout:      500 * time.Millisecond,
		ReceiptPollInterval: 5 * time.Millisecond,
		RPCTimeout:          time.Second,
		QuoteRetries:        2,
		QuoteRetryBackoff:   time.Millisecond,
	}
}

func packAmounts(t *testing.T, amounts ...*big.Int) []byte {
	t.Helper()
	parsed, err := dex.RouterABI()
	require.NoError(t, err)
	out, err := parsed.Methods["getAmountsOut"].Outputs.Pack(amounts)
	require.NoError(t, err)
	return out
}

// fakeBackend is an in-memory chain. Router calls go to routerFn, any other call is
// treated as a revert replay and goes to replayFn.
type fakeBackend struct {
	mu sync.Mutex

	routerFn   func(call int, msg ethereum.CallMsg) ([]byte, error)
	replayFn   func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	receiptFn  func(call int, hash common.Hash) (*types.Receipt, error)
	balance    *big.Int
	balanceErr error
	nonce      uint64
	nonceErr   error
	suggested  *big.Int
	estimate   uint64
	sendErr    error

	routerCalls  int
	receiptCalls int
	nonceCalls   int
	estimateMsgs []ethereum.CallMsg
	sent         []*types.Transaction
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		routerFn: func(int, ethereum.CallMsg) ([]byte, error) {
			return packAmounts(t, oneEther(), big.NewInt(2_500_000)), nil
		},
		receiptFn: func(_ int, hash common.Hash) (*types.Receipt, error) {
			return &types.Receipt{
				Status:      types.ReceiptStatusSuccessful,
				TxHash:      hash,
				BlockNumber: big.NewInt(12),
				GasUsed:     45_000,
			}, nil
		},
		balance:   oneEther(),
		nonce:     7,
		suggested: gwei(5),
		estimate:  60_000,
	}
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.To != nil && *msg.To == testRouter {
		f.routerCalls++
		return f.routerFn(f.routerCalls, msg)
	}
	if f.replayFn == nil {
		return nil, nil
	}
	return f.replayFn(msg, block)
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.nonce, f.nonceErr
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.suggested), nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateMsgs = append(f.estimateMsgs, msg)
	return f.estimate, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	f.receiptCalls++
	call := f.receiptCalls
	fn := f.receiptFn
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fn(call, hash)
}

func (f *fakeBackend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// sentPrice decodes the updatePrice argument of the i-th sent transaction.
func sentPrice(t *testing.T, tx *types.Transaction) *big.Int {
	t.Helper()
	parsed, err := OracleABI()
	require.NoError(t, err)
	method := parsed.Methods["updatePrice"]
	require.Equal(t, method.ID, tx.Data()[:4])
	values, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Len(t, values, 1)
	return values[0].(*big.Int)
}
