package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"oracleBot/internal/config"
	"oracleBot/internal/dex"
	"oracleBot/internal/oracle"
)

const gweiDecimals = 9

// chainInfo is what settings resolution needs from the node.
type chainInfo interface {
	dex.Caller
	GetChainID(ctx context.Context) (*big.Int, error)
}

type namedAddress struct {
	name  string
	value string
}

// parseAddresses converts named address strings into common.Address, in order.
func parseAddresses(inputs []namedAddress) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		value := strings.TrimSpace(input.value)
		if value == "" {
			return nil, fmt.Errorf("%s address is required", input.name)
		}
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid %s address: %s", input.name, value)
		}
		addresses = append(addresses, common.HexToAddress(value))
	}
	return addresses, nil
}

// buildOracleConfig resolves the loaded settings into the immutable cycle config.
func buildOracleConfig(ctx context.Context, cfg config.Config, secrets config.Secrets, chain chainInfo, logger *zap.Logger) (oracle.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	addresses, err := parseAddresses([]namedAddress{
		{"oracle", cfg.Oracle},
		{"router", cfg.Router},
		{"base-token", cfg.BaseToken},
		{"quote-token", cfg.QuoteToken},
	})
	if err != nil {
		return oracle.Config{}, err
	}

	key, err := secrets.Key()
	if err != nil {
		return oracle.Config{}, err
	}

	chainID, err := chain.GetChainID(ctx)
	if err != nil {
		return oracle.Config{}, fmt.Errorf("get chain id: %w", err)
	}

	baseDecimals, quoteDecimals := cfg.BaseDecimals, cfg.QuoteDecimals
	if cfg.DetectDecimals {
		baseMeta, err := dex.FetchTokenMeta(ctx, chain, addresses[2], logger)
		if err != nil {
			return oracle.Config{}, fmt.Errorf("base token metadata: %w", err)
		}
		quoteMeta, err := dex.FetchTokenMeta(ctx, chain, addresses[3], logger)
		if err != nil {
			return oracle.Config{}, fmt.Errorf("quote token metadata: %w", err)
		}
		baseDecimals, quoteDecimals = baseMeta.Decimals, quoteMeta.Decimals
		logger.Info("token decimals detected",
			zap.String("base", baseMeta.Symbol),
			zap.Uint8("base_decimals", baseDecimals),
			zap.String("quote", quoteMeta.Symbol),
			zap.Uint8("quote_decimals", quoteDecimals),
		)
	}

	amountIn, err := oracle.ParseUnits(cfg.AmountIn, baseDecimals)
	if err != nil {
		return oracle.Config{}, fmt.Errorf("amount-in: %w", err)
	}
	if amountIn.Sign() <= 0 {
		return oracle.Config{}, fmt.Errorf("amount-in must be positive")
	}

	threshold, err := oracle.ParseUnits(cfg.LowBalance, oracle.NativeDecimals)
	if err != nil {
		return oracle.Config{}, fmt.Errorf("low-balance: %w", err)
	}

	var gasPrice *big.Int
	if cfg.GasPriceGwei != "" {
		gasPrice, err = oracle.ParseUnits(cfg.GasPriceGwei, gweiDecimals)
		if err != nil {
			return oracle.Config{}, fmt.Errorf("gas-price-gwei: %w", err)
		}
	}

	out := oracle.Config{
		RPCURL:              cfg.RPCURL,
		ChainID:             chainID,
		PrivateKey:          key,
		OracleAddress:       addresses[0],
		RouterAddress:       addresses[1],
		BaseToken:           addresses[2],
		QuoteToken:          addresses[3],
		AmountIn:            amountIn,
		QuoteDecimals:       quoteDecimals,
		OracleDecimals:      cfg.OracleDecimals,
		GasLimit:            cfg.GasLimit,
		GasPrice:            gasPrice,
		Interval:            cfg.Interval,
		LowBalanceThreshold: threshold,
		ConfirmTimeout:      cfg.ConfirmTimeout,
		ReceiptPollInterval: cfg.ReceiptPoll,
		RPCTimeout:          cfg.RPCTimeout,
		QuoteRetries:        cfg.QuoteRetries,
		QuoteRetryBackoff:   cfg.QuoteRetryBackoff,
	}
	if err := out.Validate(); err != nil {
		return oracle.Config{}, err
	}
	return out, nil
}
