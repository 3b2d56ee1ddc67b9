package oracle

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Config is the resolved, read-only configuration shared by every cycle component.
type Config struct {
	RPCURL     string
	ChainID    *big.Int
	PrivateKey *ecdsa.PrivateKey

	OracleAddress common.Address
	RouterAddress common.Address
	BaseToken     common.Address
	QuoteToken    common.Address

	// AmountIn is the fixed base-token amount quoted each cycle, in base units.
	AmountIn       *big.Int
	QuoteDecimals  uint8
	OracleDecimals uint8

	// GasLimit of zero asks the node to estimate; a nil GasPrice uses the node suggestion.
	GasLimit uint64
	GasPrice *big.Int

	Interval            time.Duration
	LowBalanceThreshold *big.Int
	ConfirmTimeout      time.Duration
	ReceiptPollInterval time.Duration
	RPCTimeout          time.Duration
	QuoteRetries        int
	QuoteRetryBackoff   time.Duration
}

// Validate checks the fields every component relies on.
func (c Config) Validate() error {
	if c.PrivateKey == nil {
		return fmt.Errorf("private key is required")
	}
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return fmt.Errorf("chain id is required")
	}
	zero := common.Address{}
	for name, addr := range map[string]common.Address{
		"oracle":      c.OracleAddress,
		"router":      c.RouterAddress,
		"base token":  c.BaseToken,
		"quote token": c.QuoteToken,
	} {
		if addr == zero {
			return fmt.Errorf("%s address is required", name)
		}
	}
	if c.BaseToken == c.QuoteToken {
		return fmt.Errorf("base and quote token must differ")
	}
	if c.AmountIn == nil || c.AmountIn.Sign() <= 0 {
		return fmt.Errorf("amount in must be positive")
	}
	if c.GasPrice != nil && c.GasPrice.Sign() <= 0 {
		return fmt.Errorf("gas price must be positive when set")
	}
	if c.QuoteRetries < 0 {
		return fmt.Errorf("quote retries must not be negative")
	}
	return nil
}

// Signer returns the address of the configured private key.
func (c Config) Signer() common.Address {
	if c.PrivateKey == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(c.PrivateKey.PublicKey)
}

// Path returns the fixed quote path: base token then quote token.
func (c Config) Path() []common.Address {
	return []common.Address{c.BaseToken, c.QuoteToken}
}

func (c Config) callTimeout() time.Duration {
	if c.RPCTimeout <= 0 {
		return 10 * time.Second
	}
	return c.RPCTimeout
}
