package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"main/internal/application/service/chart"
	appfootprint "main/internal/application/service/footprint"
	"main/internal/config"
	marketdata "main/internal/domain/entity/marketdata"
	domain "main/internal/domain/interfaces"
	infrabroker "main/internal/infrastructure/broker"
	"main/internal/infrastructure/providers/binance"
	"main/internal/infrastructure/providers/invest"
)

const (
	backfillWindow    = 6 * time.Hour
	tradePollInterval = 15 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	publisher, err := infrabroker.NewPublisher(conn, infrabroker.Exchanges{
		Trades:     cfg.RabbitMQ.TradesExchange,
		Footprints: cfg.RabbitMQ.FootprintsExchange,
	}, logger)
	if err != nil {
		logger.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	provider, closeProvider, err := newProvider(ctx, cfg.Provider, logger)
	if err != nil {
		logger.Fatalf("failed to init market data provider: %v", err)
	}
	defer closeProvider()

	chartSvc := chart.NewService(provider, appfootprint.NewService(logger), chart.Config{
		Symbol:         cfg.Chart.Symbol,
		DefaultSymbol:  cfg.Chart.DefaultSymbol,
		Interval:       cfg.Chart.Interval,
		PriceStep:      cfg.Chart.PriceStep,
		ImbalanceRatio: cfg.Chart.ImbalanceRatio,
		HTFTimeframe:   cfg.Chart.HTFTimeframe,
	}, logger, func(message string) {
		logger.WithField("component", "producer").Warn(message)
	})

	now := time.Now()
	chartSvc.Load(ctx, now.Add(-backfillWindow), now)

	// The chart service may have swapped to the default symbol if the
	// configured one is plan restricted; publish under the effective one.
	symbol := chartSvc.Snapshot().Symbol
	interval := cfg.Chart.Interval

	unsubscribe, err := provider.Subscribe(ctx, domain.SubscribeParams{
		Symbol:   symbol,
		Interval: interval,
	}, func(u marketdata.CandleUpdate) {
		chartSvc.ApplyUpdate(u)
		if !u.Final {
			return
		}
		snapshot := chartSvc.Snapshot()
		if len(snapshot.Footprints) == 0 {
			return
		}
		candle := snapshot.Footprints[len(snapshot.Footprints)-1]
		if err := publisher.PublishFootprint(ctx, snapshot.Symbol, interval, candle); err != nil {
			logger.WithError(err).Error("failed to publish footprint snapshot")
		}
	})
	if err != nil {
		logger.Fatalf("failed to subscribe to candle stream: %v", err)
	}
	defer unsubscribe()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return pumpTrades(groupCtx, provider, publisher, symbol, now, logger)
	})

	logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"interval": interval,
	}).Info("producer started")

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatalf("producer stopped with error: %v", err)
	}
	logger.Info("producer stopped")
}

func newProvider(ctx context.Context, cfg config.ProviderConfig, logger *logrus.Logger) (domain.MarketDataProvider, func(), error) {
	switch cfg.Kind {
	case config.ProviderInvest:
		p, err := invest.NewProvider(ctx, invest.Config{
			Token:    cfg.InvestToken,
			Endpoint: cfg.InvestEndpoint,
			AppName:  cfg.InvestAppName,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				logger.WithError(err).Error("failed to close invest provider")
			}
		}, nil
	default:
		client := binance.NewClient(binance.Config{
			BaseURL:           cfg.BaseURL,
			StreamURL:         cfg.StreamURL,
			PageLimit:         cfg.PageLimit,
			MaxTrades:         cfg.MaxTrades,
			MaxPages:          cfg.MaxPages,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}, logger)
		return client, func() {}, nil
	}
}

// pumpTrades polls the provider for fresh trades and fans them out. The
// cursor only advances past what was actually published, so a failed poll
// is retried over the same range on the next tick.
func pumpTrades(ctx context.Context, provider domain.MarketDataProvider, publisher *infrabroker.Publisher, symbol string, start time.Time, logger *logrus.Logger) error {
	log := logger.WithField("component", "trade_pump")

	ticker := time.NewTicker(tradePollInterval)
	defer ticker.Stop()

	cursor := start
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := time.Now()
		trades, err := provider.GetTrades(ctx, symbol, cursor, now)
		if err != nil {
			log.WithError(err).Warn("trade poll failed")
			continue
		}
		if len(trades) == 0 {
			cursor = now
			continue
		}
		if err := publisher.PublishTrades(ctx, symbol, trades); err != nil {
			log.WithError(err).Error("failed to publish trades")
			continue
		}
		log.WithField("count", len(trades)).Debug("trades published")
		cursor = time.UnixMilli(trades[len(trades)-1].Time + 1)
	}
}
