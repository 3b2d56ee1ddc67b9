package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// GetAmountsOut asks router how much of each hop along path amountIn buys.
// The returned slice has one entry per path element, the first being amountIn.
func GetAmountsOut(ctx context.Context, caller Caller, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}

	parsed, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}

	data, err := parsed.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}

	msg := ethereum.CallMsg{To: &router, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call getAmountsOut: %w", err)
	}

	values, err := parsed.Unpack("getAmountsOut", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack getAmountsOut: empty result")
	}

	amounts, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported amounts type %T", values[0])
	}
	return amounts, nil
}
