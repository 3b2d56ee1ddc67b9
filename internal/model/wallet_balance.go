package model

import (
	"math/big"
	"time"
)

// WalletBalanceSample is one reading of the signer's native balance.
type WalletBalanceSample struct {
	Address   string
	Balance   *big.Int
	Threshold *big.Int
	IsLow     bool
	SampledAt time.Time
}
