package chart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"main/internal/application/service/footprint"
	marketdata "main/internal/domain/entity/marketdata"
	domain "main/internal/domain/interfaces"
	"main/internal/infrastructure/providers"
)

const (
	defaultThrottle   = 500 * time.Millisecond
	defaultKlineLimit = 500
)

// HTF timeframe tokens accepted by Config.HTFTimeframe.
const (
	TimeframeAuto = "Auto"
	Timeframe1H   = "1h"
	Timeframe4H   = "4h"
	Timeframe1D   = "1d"
)

var ErrUnknownTimeframe = errors.New("unknown htf timeframe")

// Config describes one chart view: what to load, how to bucket it and how
// often live ticks may trigger a full re-aggregation.
type Config struct {
	Symbol         string
	DefaultSymbol  string
	Interval       string
	PriceStep      float64
	ImbalanceRatio float64
	HTFTimeframe   string
	KlineLimit     int
	Throttle       time.Duration
}

// Snapshot is the render-ready state of a chart view. Slices are fresh
// copies on every call; renderers never alias the service's internal state.
type Snapshot struct {
	Symbol     string
	Candles    []marketdata.OHLCV
	Footprints []marketdata.FootprintCandle
	HTF        []marketdata.HTFCandle
}

// Notifier receives user-facing messages, e.g. a plan-restriction fallback.
type Notifier func(message string)

// Service owns the mutable state behind one chart view: the candle series
// with its live last bucket, the trade backlog, and the derived footprint
// and HTF series. All methods are safe for concurrent use.
type Service struct {
	provider   domain.MarketDataProvider
	aggregator *footprint.Service
	logger     *logrus.Entry
	notify     Notifier
	now        func() time.Time

	mu            sync.Mutex
	cfg           Config
	candles       []marketdata.OHLCV
	trades        []marketdata.Trade
	footprints    []marketdata.FootprintCandle
	htf           []marketdata.HTFCandle
	lastAggregate time.Time
	unsubscribe   domain.UnsubscribeFunc
}

func NewService(provider domain.MarketDataProvider, aggregator *footprint.Service, cfg Config, logger *logrus.Logger, notify Notifier) *Service {
	if cfg.Throttle <= 0 {
		cfg.Throttle = defaultThrottle
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = defaultKlineLimit
	}
	if cfg.HTFTimeframe == "" {
		cfg.HTFTimeframe = TimeframeAuto
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Service{
		provider:   provider,
		aggregator: aggregator,
		cfg:        cfg,
		logger:     logger.WithField("component", "chart_service"),
		notify:     notify,
		now:        time.Now,
	}
}

// Load fetches candles and trades for the window and rebuilds the derived
// series. Provider failures degrade to an empty chart rather than an error;
// a plan-restricted symbol falls back to the configured default symbol once,
// with a user notification.
func (s *Service) Load(ctx context.Context, from, to time.Time) {
	s.mu.Lock()
	symbol := s.cfg.Symbol
	interval := s.cfg.Interval
	limit := s.cfg.KlineLimit
	fallback := s.cfg.DefaultSymbol
	s.mu.Unlock()

	candles, trades, err := s.fetch(ctx, symbol, interval, from, to, limit)
	if err != nil && errors.Is(err, providers.ErrPlanRestricted) && fallback != "" && fallback != symbol {
		s.notify(fmt.Sprintf("symbol %s is not available on the current data plan, showing %s", symbol, fallback))
		s.logger.WithFields(logrus.Fields{
			"symbol":   symbol,
			"fallback": fallback,
		}).Warn("plan restricted, falling back to default symbol")

		s.mu.Lock()
		s.cfg.Symbol = fallback
		s.mu.Unlock()
		symbol = fallback
		candles, trades, err = s.fetch(ctx, symbol, interval, from, to, limit)
	}
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("market data load failed, degrading to empty chart")
		candles, trades = nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = candles
	s.trades = trades
	s.recomputeLocked()
}

func (s *Service) fetch(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]marketdata.OHLCV, []marketdata.Trade, error) {
	candles, err := s.provider.GetKlines(ctx, symbol, interval, from, to, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("get klines: %w", err)
	}
	if len(candles) == 0 {
		return nil, nil, nil
	}
	trades, err := s.provider.GetTrades(ctx, symbol, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("get trades: %w", err)
	}
	return candles, trades, nil
}

// Start opens the live subscription; updates flow through ApplyUpdate.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	params := domain.SubscribeParams{Symbol: s.cfg.Symbol, Interval: s.cfg.Interval}
	s.mu.Unlock()

	unsubscribe, err := s.provider.Subscribe(ctx, params, s.ApplyUpdate)
	if err != nil {
		return fmt.Errorf("subscribe %s/%s: %w", params.Symbol, params.Interval, err)
	}

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

// Stop tears down the live subscription if one is open. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// ApplyUpdate merges one live candle delta into the series in O(1): it
// either mutates the last bucket in place or appends a new one. Derived
// series are rebuilt at most once per throttle window, except that a final
// (closed-bar) update always rebuilds immediately.
func (s *Service) ApplyUpdate(u marketdata.CandleUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.candles)
	switch {
	case n > 0 && u.Time == s.candles[n-1].Time:
		last := &s.candles[n-1]
		last.Open = u.Open
		last.High = u.High
		last.Low = u.Low
		last.Close = u.Close
		last.Volume = u.Volume
	case n == 0 || u.Time > s.candles[n-1].Time:
		s.candles = append(s.candles, marketdata.OHLCV{
			Time: u.Time, Open: u.Open, High: u.High, Low: u.Low, Close: u.Close, Volume: u.Volume,
		})
	default:
		// Out-of-order update for an already finalized bucket; drop it.
		s.logger.WithField("time", u.Time).Debug("stale candle update ignored")
		return
	}

	if u.Final || s.now().Sub(s.lastAggregate) >= s.cfg.Throttle {
		s.recomputeLocked()
	}
}

// UpdateConfig swaps view parameters (symbol, timeframe, aggregation
// settings) and rebuilds the derived series wholesale.
func (s *Service) UpdateConfig(mutate func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.cfg)
	if s.cfg.Throttle <= 0 {
		s.cfg.Throttle = defaultThrottle
	}
	s.recomputeLocked()
}

// Snapshot returns copies of the current series for rendering.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Snapshot{Symbol: s.cfg.Symbol}
	out.Candles = append(out.Candles, s.candles...)
	out.Footprints = append(out.Footprints, s.footprints...)
	out.HTF = append(out.HTF, s.htf...)
	return out
}

// recomputeLocked rebuilds footprints and the HTF series from scratch.
// Callers hold s.mu.
func (s *Service) recomputeLocked() {
	s.lastAggregate = s.now()

	footprints, err := s.aggregator.Aggregate(s.candles, s.trades, s.cfg.PriceStep, s.cfg.ImbalanceRatio)
	if err != nil {
		s.logger.WithError(err).Warn("footprint aggregation failed")
		s.footprints, s.htf = nil, nil
		return
	}
	s.footprints = footprints

	minutes, ok := s.htfMinutesLocked()
	if !ok {
		s.htf = nil
		return
	}
	htf, err := s.aggregator.AggregateHTF(footprints, minutes)
	if err != nil {
		s.logger.WithError(err).Warn("htf aggregation failed")
		s.htf = nil
		return
	}
	s.htf = htf
}

// htfMinutesLocked resolves the HTF timeframe to minutes, returning false
// when the target is not strictly coarser than the base interval.
func (s *Service) htfMinutesLocked() (int, bool) {
	base, err := providers.IntervalDuration(s.cfg.Interval)
	if err != nil {
		return 0, false
	}

	minutes, err := ResolveTimeframe(s.cfg.HTFTimeframe, base)
	if err != nil {
		s.logger.WithError(err).Warn("htf disabled")
		return 0, false
	}
	if time.Duration(minutes)*time.Minute <= base {
		return 0, false
	}
	return minutes, true
}

// ResolveTimeframe maps an HTF timeframe token to window minutes. Auto
// picks the coarsest sensible window for the base interval: hourly profiles
// over minute bars, 4-hour profiles over hourly bars, daily above that.
func ResolveTimeframe(token string, base time.Duration) (int, error) {
	switch token {
	case Timeframe1H:
		return 60, nil
	case Timeframe4H:
		return 240, nil
	case Timeframe1D:
		return 1440, nil
	case TimeframeAuto, "":
		switch {
		case base <= 5*time.Minute:
			return 60, nil
		case base <= time.Hour:
			return 240, nil
		default:
			return 1440, nil
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTimeframe, token)
	}
}
