package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceQuote is the router's answer for a fixed input amount along a two-token path.
type PriceQuote struct {
	InputAmount  *big.Int
	Path         []common.Address
	OutputAmount *big.Int
	FetchedAt    time.Time
}
