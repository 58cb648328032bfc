package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	domain "main/internal/domain/interfaces"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	pingInterval     = 3 * time.Minute
	readTimeout      = 70 * time.Second
	writeTimeout     = 5 * time.Second
	handshakeTimeout = 10 * time.Second

	reconnectMinDelay = 500 * time.Millisecond
	reconnectMaxDelay = 30 * time.Second
)

// klineFrame mirrors the Binance kline stream payload.
type klineFrame struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime int64  `json:"t"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		IsFinal   bool   `json:"x"`
	} `json:"k"`
}

type stream struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *stream) stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe opens the live kline stream for one symbol/interval. A provider
// instance carries a single subscription: any previous stream is torn down
// before the new connection is dialed. The returned function is idempotent.
func (c *Client) Subscribe(ctx context.Context, params domain.SubscribeParams, onUpdate func(marketdata.CandleUpdate)) (domain.UnsubscribeFunc, error) {
	native, err := nativeInterval(params.Interval)
	if err != nil {
		return nil, err
	}

	if prev := c.stream; prev != nil {
		prev.stop()
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &stream{cancel: cancel, done: make(chan struct{})}
	c.stream = s

	streamName := fmt.Sprintf("%s@kline_%s", strings.ToLower(normalizeSymbol(params.Symbol)), native)
	wsURL := c.cfg.StreamURL + "/" + streamName

	conn, err := c.dial(streamCtx, wsURL)
	if err != nil {
		cancel()
		close(s.done)
		c.stream = nil
		return nil, err
	}

	log := c.logger.WithFields(logrus.Fields{
		"symbol":   params.Symbol,
		"interval": params.Interval,
	})
	log.Info("live kline subscription opened")

	go c.runStream(streamCtx, s, conn, wsURL, params, onUpdate, log)

	return s.stop, nil
}

func (c *Client) dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return conn, nil
}

// runStream reads frames until the subscription is cancelled, redialing
// with exponential backoff after connection failures.
func (c *Client) runStream(ctx context.Context, s *stream, conn *websocket.Conn, wsURL string, params domain.SubscribeParams, onUpdate func(marketdata.CandleUpdate), log *logrus.Entry) {
	defer close(s.done)
	defer func() {
		if conn != nil {
			closeConn(conn)
		}
	}()

	delay := reconnectMinDelay
	for {
		err := c.readLoop(ctx, conn, params, onUpdate)
		closeConn(conn)
		conn = nil
		if ctx.Err() != nil {
			log.Info("live kline subscription closed")
			return
		}
		log.WithError(err).Warn("stream read failed, reconnecting")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			next, dialErr := c.dial(ctx, wsURL)
			if dialErr == nil {
				conn = next
				delay = reconnectMinDelay
				break
			}
			log.WithError(dialErr).Warn("stream redial failed")
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, params domain.SubscribeParams, onUpdate func(marketdata.CandleUpdate)) error {
	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pinger.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame klineFrame
		if err := json.Unmarshal(message, &frame); err != nil || frame.EventType != "kline" {
			continue
		}

		onUpdate(marketdata.CandleUpdate{
			Symbol:   params.Symbol,
			Interval: params.Interval,
			Time:     frame.Kline.StartTime / 1000,
			Open:     parseFloat(frame.Kline.Open),
			High:     parseFloat(frame.Kline.High),
			Low:      parseFloat(frame.Kline.Low),
			Close:    parseFloat(frame.Kline.Close),
			Volume:   parseFloat(frame.Kline.Volume),
			Final:    frame.Kline.IsFinal,
		})
	}
}

func closeConn(conn *websocket.Conn) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
}
