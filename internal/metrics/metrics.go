package metrics

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"oracleBot/internal/model"
)

const namespace = "oracle_bot"

// Metrics holds the Prometheus collectors for update cycles. A nil *Metrics is a no-op.
type Metrics struct {
	CyclesTotal   *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
	LastPrice     prometheus.Gauge
	LastSuccess   prometheus.Gauge
	WalletBalance prometheus.Gauge
	WalletLow     prometheus.Gauge

	oracleDecimals int32
}

// New registers the cycle metrics on reg. oracleDecimals scales the last price gauge.
func New(reg prometheus.Registerer, oracleDecimals uint8) *Metrics {
	return &Metrics{
		CyclesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Update cycles by outcome.",
		}, []string{"outcome"}),

		CycleDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one update cycle.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		LastPrice: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_confirmed_price",
			Help:      "Last confirmed oracle price in oracle units.",
		}),

		LastSuccess: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last confirmed update.",
		}),

		WalletBalance: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_balance",
			Help:      "Signer native balance.",
		}),

		WalletLow: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_balance_low",
			Help:      "1 when the signer balance is below the warning threshold.",
		}),

		oracleDecimals: int32(oracleDecimals),
	}
}

// ObserveOutcome records one finished cycle.
func (m *Metrics) ObserveOutcome(outcome model.CycleOutcome) {
	if m == nil {
		return
	}
	kind := string(outcome.Kind)
	m.CyclesTotal.WithLabelValues(kind).Inc()
	m.CycleDuration.WithLabelValues(kind).Observe(outcome.Duration().Seconds())

	if outcome.OK() {
		m.LastSuccess.Set(float64(outcome.FinishedAt.Unix()))
		if outcome.ScaledPrice != nil {
			m.LastPrice.Set(toFloat(outcome.ScaledPrice, m.oracleDecimals))
		}
	}
}

// ObserveBalance records a wallet balance sample.
func (m *Metrics) ObserveBalance(sample model.WalletBalanceSample) {
	if m == nil {
		return
	}
	if sample.Balance != nil {
		m.WalletBalance.Set(toFloat(sample.Balance, 18))
	}
	if sample.IsLow {
		m.WalletLow.Set(1)
	} else {
		m.WalletLow.Set(0)
	}
}

func toFloat(v *big.Int, decimals int32) float64 {
	return decimal.NewFromBigInt(v, -decimals).InexactFloat64()
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}
