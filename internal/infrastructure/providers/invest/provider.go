package invest

import (
	"context"
	"fmt"
	"sync"
	"time"

	investgo "github.com/russianinvestments/invest-api-go-sdk/investgo"
	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	marketdata "main/internal/domain/entity/marketdata"
	domain "main/internal/domain/interfaces"
	"main/internal/infrastructure/providers"
)

const defaultEndpoint = "invest-public-api.tinkoff.ru:443"

// Config holds the invest API connection settings. Symbols passed to the
// provider are instrument UIDs, not tickers.
type Config struct {
	Token         string
	Endpoint      string
	AppName       string
	SkipTLSVerify bool
}

// Provider serves historical and live market data from the invest API.
// Trade history depth is limited by the account plan; requests outside
// the allowed window surface as ErrPlanRestricted so callers can fall
// back to another symbol or an empty footprint.
type Provider struct {
	client   *investgo.Client
	md       *investgo.MarketDataServiceClient
	mdStream *investgo.MarketDataStreamClient
	logger   *logrus.Entry

	mu     sync.Mutex
	stream *liveStream
}

var _ domain.MarketDataProvider = (*Provider)(nil)

func NewProvider(ctx context.Context, cfg Config, logger *logrus.Logger) (*Provider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("invest provider: token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.AppName == "" {
		cfg.AppName = "footprint-server"
	}

	client, err := investgo.NewClient(ctx, investgo.Config{
		EndPoint:           cfg.Endpoint,
		Token:              cfg.Token,
		AppName:            cfg.AppName,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create invest api client: %w", err)
	}

	return &Provider{
		client:   client,
		md:       client.NewMarketDataServiceClient(),
		mdStream: client.NewMarketDataStreamClient(),
		logger:   logger.WithField("component", "invest_provider"),
	}, nil
}

func (p *Provider) Name() string { return "invest" }

func (p *Provider) GetKlines(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]marketdata.OHLCV, error) {
	nativeInterval, err := candleInterval(interval)
	if err != nil {
		return nil, err
	}

	resp, err := p.md.GetHistoricCandles(&investgo.GetHistoricCandlesRequest{
		Instrument: symbol,
		Interval:   nativeInterval,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, classifyError("get historic candles", err)
	}

	candles := make([]marketdata.OHLCV, 0, len(resp))
	for _, c := range resp {
		if c == nil || c.GetTime() == nil {
			continue
		}
		candles = append(candles, marketdata.OHLCV{
			Time:   c.GetTime().AsTime().Unix(),
			Open:   c.GetOpen().ToFloat(),
			High:   c.GetHigh().ToFloat(),
			Low:    c.GetLow().ToFloat(),
			Close:  c.GetClose().ToFloat(),
			Volume: float64(c.GetVolume()),
		})
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func (p *Provider) GetTrades(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.Trade, error) {
	resp, err := p.md.GetLastTrades(symbol, from, to)
	if err != nil {
		return nil, classifyError("get last trades", err)
	}

	trades := make([]marketdata.Trade, 0, len(resp.Trades))
	for _, t := range resp.Trades {
		if t == nil || t.GetTime() == nil {
			continue
		}
		trades = append(trades, marketdata.Trade{
			Time:  t.GetTime().AsTime().UnixMilli(),
			Price: t.GetPrice().ToFloat(),
			Qty:   float64(t.GetQuantity()),
			// Seller-initiated prints land on the bid.
			IsBuyerMaker: t.GetDirection() == pb.TradeDirection_TRADE_DIRECTION_SELL,
		})
	}
	return trades, nil
}

type liveStream struct {
	stream *investgo.MarketDataStream
	cancel context.CancelFunc
	once   sync.Once
}

func (s *liveStream) stop() {
	s.once.Do(func() {
		s.cancel()
		s.stream.Stop()
	})
}

// Subscribe streams minute candles for one instrument. Only minute data is
// available on the stream; coarser intervals are rejected with
// ErrNotSupported. A new subscription replaces any previous one.
func (p *Provider) Subscribe(ctx context.Context, params domain.SubscribeParams, onUpdate func(marketdata.CandleUpdate)) (domain.UnsubscribeFunc, error) {
	if params.Interval != "1m" {
		return nil, fmt.Errorf("interval %q on invest stream: %w", params.Interval, providers.ErrNotSupported)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		p.stream.stop()
		p.stream = nil
	}

	stream, err := p.mdStream.MarketDataStream()
	if err != nil {
		return nil, classifyError("create market data stream", err)
	}

	candleChan, err := stream.SubscribeCandle(
		[]string{params.Symbol},
		pb.SubscriptionInterval_SUBSCRIPTION_INTERVAL_ONE_MINUTE,
		false,
		nil,
	)
	if err != nil {
		stream.Stop()
		return nil, classifyError("subscribe candles", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &liveStream{stream: stream, cancel: cancel}
	p.stream = s

	log := p.logger.WithField("instrument", params.Symbol)
	log.Info("live candle subscription opened")

	go func() {
		if err := stream.Listen(); err != nil && streamCtx.Err() == nil {
			log.WithError(err).Error("market data stream stopped")
		}
	}()
	go pumpCandles(streamCtx, candleChan, params, onUpdate, log)

	return s.stop, nil
}

func pumpCandles(ctx context.Context, in <-chan *pb.Candle, params domain.SubscribeParams, onUpdate func(marketdata.CandleUpdate), log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			log.Info("live candle subscription closed")
			return
		case candle, ok := <-in:
			if !ok {
				return
			}
			if candle == nil || candle.GetTime() == nil {
				continue
			}
			onUpdate(marketdata.CandleUpdate{
				Symbol:   params.Symbol,
				Interval: params.Interval,
				Time:     candle.GetTime().AsTime().Unix(),
				Open:     candle.GetOpen().ToFloat(),
				High:     candle.GetHigh().ToFloat(),
				Low:      candle.GetLow().ToFloat(),
				Close:    candle.GetClose().ToFloat(),
				Volume:   float64(candle.GetVolume()),
				Final:    false,
			})
		}
	}
}

func (p *Provider) Close() error {
	p.mu.Lock()
	if p.stream != nil {
		p.stream.stop()
		p.stream = nil
	}
	p.mu.Unlock()
	return p.client.Stop()
}

func candleInterval(token string) (pb.CandleInterval, error) {
	switch token {
	case "1m":
		return pb.CandleInterval_CANDLE_INTERVAL_1_MIN, nil
	case "5m":
		return pb.CandleInterval_CANDLE_INTERVAL_5_MIN, nil
	case "15m":
		return pb.CandleInterval_CANDLE_INTERVAL_15_MIN, nil
	case "1h":
		return pb.CandleInterval_CANDLE_INTERVAL_HOUR, nil
	case "1d", "D":
		return pb.CandleInterval_CANDLE_INTERVAL_DAY, nil
	case "1w", "W":
		return pb.CandleInterval_CANDLE_INTERVAL_WEEK, nil
	case "1M", "M":
		return pb.CandleInterval_CANDLE_INTERVAL_MONTH, nil
	default:
		return pb.CandleInterval_CANDLE_INTERVAL_UNSPECIFIED, fmt.Errorf("interval %q: %w", token, providers.ErrNotSupported)
	}
}

// classifyError maps gRPC status codes onto the provider error taxonomy.
func classifyError(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w: %v", op, providers.ErrTransient, err)
	}
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%s: %w: %s", op, providers.ErrPlanRestricted, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%s: %w: %s", op, providers.ErrRateLimited, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal:
		return fmt.Errorf("%s: %w: %s", op, providers.ErrTransient, st.Message())
	case codes.InvalidArgument, codes.NotFound:
		return fmt.Errorf("%s: %s", op, st.Message())
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
