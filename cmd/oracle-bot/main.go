package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"oracleBot/internal/chain"
	"oracleBot/internal/config"
	"oracleBot/internal/metrics"
	"oracleBot/internal/oracle"
	"oracleBot/internal/scheduler"
)

func main() {
	root := &cobra.Command{
		Use:          "oracle-bot",
		Short:        "Keep an on-chain price oracle in sync with a DEX quote",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Push price updates on a fixed interval until interrupted",
		RunE:  runBot,
	}
	addOracleFlags(runCmd.Flags())
	runCmd.Flags().Duration("interval", 30*time.Second, "time between update cycles")
	runCmd.Flags().Bool("run-on-start", true, "run one cycle immediately on start")
	runCmd.Flags().Duration("shutdown-grace", 15*time.Second, "how long to wait for an in-flight cycle on shutdown")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (empty disables)")
	root.AddCommand(runCmd)

	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single update cycle and exit",
		RunE:  runOnce,
	}
	addOracleFlags(onceCmd.Flags())
	root.AddCommand(onceCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch the current router quote without submitting",
		RunE:  runQuote,
	}
	addOracleFlags(quoteCmd.Flags())
	root.AddCommand(quoteCmd)

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the signer balance",
		RunE:  runBalance,
	}
	addOracleFlags(balanceCmd.Flags())
	root.AddCommand(balanceCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addOracleFlags(flags *pflag.FlagSet) {
	flags.String("rpc", config.DefaultRPCURL, "JSON-RPC URL")
	flags.String("oracle", "", "oracle contract address")
	flags.String("router", "", "DEX router address")
	flags.String("base-token", "", "token being priced")
	flags.String("quote-token", "", "token the price is expressed in")
	flags.String("amount-in", "1", "base token amount quoted each cycle")
	flags.Uint8("base-decimals", 18, "base token decimals")
	flags.Uint8("quote-decimals", 18, "quote token decimals")
	flags.Uint8("oracle-decimals", 18, "decimals the oracle expects")
	flags.Bool("detect-decimals", false, "read token decimals from chain")
	flags.Uint64("gas-limit", 0, "gas limit for updates, 0 estimates")
	flags.String("gas-price-gwei", "", "gas price in gwei, empty uses node suggestion")
	flags.Duration("confirm-timeout", 2*time.Minute, "how long to wait for a receipt")
	flags.Duration("receipt-poll", 2*time.Second, "receipt poll interval")
	flags.Duration("rpc-timeout", 10*time.Second, "timeout for single RPC calls")
	flags.Int("quote-retries", 2, "retries for a failed quote")
	flags.Duration("quote-retry-backoff", 500*time.Millisecond, "initial quote retry backoff")
	flags.String("low-balance", "0.01", "warn when signer balance falls below this")
	flags.String("env-file", ".env", "optional dotenv file holding PRIVATE_KEY")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

// app holds everything a command needs after setup.
type app struct {
	cfg    config.Config
	oracle oracle.Config
	client *chain.Client
	logger *zap.Logger
}

func (a *app) close() {
	a.client.Close()
	_ = a.logger.Sync()
}

func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	secrets, err := config.LoadSecrets(cfg.EnvFile)
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	oracleCfg, err := buildOracleConfig(ctx, cfg, secrets, chainClient, logger)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	return &app{cfg: cfg, oracle: oracleCfg, client: chainClient, logger: logger}, nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var recorder oracle.Recorder
	if a.cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.New(reg, a.oracle.OracleDecimals)
		go func() {
			if err := metrics.Serve(ctx, a.cfg.MetricsAddr, reg, a.logger); err != nil {
				a.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	cycle, err := oracle.NewCycle(a.oracle, a.client, a.logger, recorder)
	if err != nil {
		return err
	}

	a.logger.Info("oracle bot started",
		zap.String("signer", a.oracle.Signer().Hex()),
		zap.String("oracle", a.oracle.OracleAddress.Hex()),
		zap.String("router", a.oracle.RouterAddress.Hex()),
		zap.String("rpc", a.cfg.RPCURL),
		zap.String("chain_id", a.oracle.ChainID.String()),
		zap.Duration("interval", a.cfg.Interval),
	)

	sched := scheduler.New(scheduler.Config{
		Interval:      a.cfg.Interval,
		RunOnStart:    a.cfg.RunOnStart,
		ShutdownGrace: a.cfg.ShutdownGrace,
	}, cycle, a.logger)

	return sched.Run(ctx)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	cycle, err := oracle.NewCycle(a.oracle, a.client, a.logger, nil)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Config{Interval: a.cfg.Interval}, cycle, a.logger)
	outcome, err := sched.TriggerNow(ctx)
	if err != nil {
		return err
	}
	if !outcome.OK() {
		return fmt.Errorf("cycle %s: %w", outcome.Kind, outcome.Err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated price to %s (tx %s)\n", outcome.ConfirmedPrice, outcome.TxHash)
	return nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	quote, err := oracle.NewFetcher(a.oracle, a.client, a.logger).Fetch(ctx)
	if err != nil {
		return err
	}

	scaled := oracle.ScalePrice(quote.OutputAmount, a.oracle.QuoteDecimals, a.oracle.OracleDecimals)
	fmt.Fprintf(cmd.OutOrStdout(), "amount_in=%s output=%s price=%s raw_price=%s\n",
		quote.InputAmount, quote.OutputAmount,
		oracle.FormatUnits(scaled, a.oracle.OracleDecimals), scaled)
	return nil
}

func runBalance(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	sample, err := oracle.NewBalanceMonitor(a.oracle, a.client, a.logger).Check(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s balance=%s threshold=%s low=%t\n",
		sample.Address,
		oracle.FormatUnits(sample.Balance, oracle.NativeDecimals),
		oracle.FormatUnits(sample.Threshold, oracle.NativeDecimals),
		sample.IsLow)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
