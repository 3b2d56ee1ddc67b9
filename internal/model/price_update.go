package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PriceUpdateTransaction is a submitted, not yet confirmed, oracle update.
type PriceUpdateTransaction struct {
	Hash        common.Hash
	Nonce       uint64
	GasLimit    uint64
	GasPrice    *big.Int
	ScaledPrice *big.Int
	SubmittedAt time.Time
	Tx          *types.Transaction
}
