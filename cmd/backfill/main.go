package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	appfootprint "main/internal/application/service/footprint"
	appsymbols "main/internal/application/service/symbols"
	"main/internal/config"
	infrafootprint "main/internal/infrastructure/footprint"
	"main/internal/infrastructure/providers/binance"
	infrasymbols "main/internal/infrastructure/symbols"
)

const defaultBackfillWindow = 24 * time.Hour

// Backfill fetches historical candles and trades for the configured chart
// symbol, aggregates them into footprint candles and writes both to Postgres.
// The range comes from BACKFILL_FROM / BACKFILL_TO (RFC 3339), defaulting to
// the last 24 hours.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	from, to, err := loadRange()
	if err != nil {
		logger.Fatalf("failed to parse backfill range: %v", err)
	}

	repo, err := infrafootprint.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init footprint repo: %v", err)
	}
	defer repo.Close()

	provider := binance.NewClient(binance.Config{
		BaseURL:           cfg.Provider.BaseURL,
		StreamURL:         cfg.Provider.StreamURL,
		PageLimit:         cfg.Provider.PageLimit,
		MaxTrades:         cfg.Provider.MaxTrades,
		MaxPages:          cfg.Provider.MaxPages,
		RequestsPerMinute: cfg.Provider.RequestsPerMinute,
	}, logger)

	symbol := cfg.Chart.Symbol
	interval := cfg.Chart.Interval
	log := logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"interval": interval,
		"from":     from.Format(time.RFC3339),
		"to":       to.Format(time.RFC3339),
	})
	log.Info("backfill started")

	candles, err := provider.GetKlines(ctx, symbol, interval, from, to, 0)
	if err != nil {
		logger.Fatalf("failed to fetch klines: %v", err)
	}
	if len(candles) == 0 {
		log.Warn("no candles in range, nothing to do")
		return
	}

	trades, err := provider.GetTrades(ctx, symbol, from, to)
	if err != nil {
		logger.Fatalf("failed to fetch trades: %v", err)
	}

	priceStep := resolvePriceStep(ctx, cfg, provider, symbol, logger)

	aggregator := appfootprint.NewService(logger)
	footprints, err := aggregator.Aggregate(candles, trades, priceStep, cfg.Chart.ImbalanceRatio)
	if err != nil {
		logger.Fatalf("failed to aggregate footprints: %v", err)
	}

	if err := repo.AddTrades(ctx, symbol, trades); err != nil {
		logger.Fatalf("failed to store trades: %v", err)
	}
	if err := repo.AddFootprintCandles(ctx, symbol, interval, footprints); err != nil {
		logger.Fatalf("failed to store footprint candles: %v", err)
	}

	log.WithFields(logrus.Fields{
		"candles": len(footprints),
		"trades":  len(trades),
	}).Info("backfill finished")
}

// resolvePriceStep prefers the exchange tick size for the symbol, falling
// back to the configured step when the reference lookup is unavailable.
func resolvePriceStep(ctx context.Context, cfg *config.Config, source appsymbols.ExchangeInfoSource, symbol string, logger *logrus.Logger) float64 {
	symbolRepo, err := infrasymbols.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.WithError(err).Warn("symbols repo unavailable, using configured price step")
		return cfg.Chart.PriceStep
	}
	defer symbolRepo.Close()

	svc := appsymbols.NewService(source, symbolRepo, logger)
	step, err := svc.TickSize(ctx, symbol)
	if err != nil {
		logger.WithError(err).WithField("symbol", symbol).Warn("tick size lookup failed, using configured price step")
		return cfg.Chart.PriceStep
	}
	return step
}

func loadRange() (time.Time, time.Time, error) {
	to := time.Now()
	if raw := os.Getenv("BACKFILL_TO"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse BACKFILL_TO: %w", err)
		}
		to = parsed
	}

	from := to.Add(-defaultBackfillWindow)
	if raw := os.Getenv("BACKFILL_FROM"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse BACKFILL_FROM: %w", err)
		}
		from = parsed
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("range is empty: from %s is not before to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}
