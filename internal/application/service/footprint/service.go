package footprint

import (
	"errors"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidPriceStep      = errors.New("price step must be positive")
	ErrInvalidImbalanceRatio = errors.New("imbalance ratio must be >= 1")
	ErrInvalidTimeframe      = errors.New("target timeframe must be positive minutes")
)

// Service wraps the pure aggregation functions with input validation and
// data-quality logging.
type Service struct {
	logger *logrus.Entry
}

func NewService(logger *logrus.Logger) *Service {
	return &Service{logger: logger.WithField("component", "footprint")}
}

// Aggregate validates parameters, filters malformed trades with a warning,
// and runs the footprint aggregation.
func (s *Service) Aggregate(candles []marketdata.OHLCV, trades []marketdata.Trade, priceStep, imbalanceRatio float64) ([]marketdata.FootprintCandle, error) {
	if priceStep <= 0 {
		return nil, ErrInvalidPriceStep
	}
	if imbalanceRatio < 1 {
		return nil, ErrInvalidImbalanceRatio
	}

	clean, dropped := SanitizeTrades(trades)
	if dropped > 0 {
		s.logger.WithFields(logrus.Fields{
			"dropped": dropped,
			"total":   len(trades),
		}).Warn("skipped malformed trades before aggregation")
	}

	return Aggregate(candles, clean, priceStep, imbalanceRatio), nil
}

// AggregateHTF validates the target timeframe and merges base candles into
// higher-timeframe windows.
func (s *Service) AggregateHTF(base []marketdata.FootprintCandle, targetMinutes int) ([]marketdata.HTFCandle, error) {
	if targetMinutes <= 0 {
		return nil, ErrInvalidTimeframe
	}
	return AggregateHTF(base, targetMinutes), nil
}
