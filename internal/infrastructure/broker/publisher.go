package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	marketdata "main/internal/domain/entity/marketdata"
)

// Exchanges names the fanout exchanges the pipeline publishes to.
type Exchanges struct {
	Trades     string
	Footprints string
}

// Publisher fans trade batches and footprint snapshots out to RabbitMQ.
// Publish methods are safe for concurrent use.
type Publisher struct {
	channel   *amqp.Channel
	exchanges Exchanges
	logger    *logrus.Entry
	mu        sync.Mutex
}

func NewPublisher(conn *amqp.Connection, exchanges Exchanges, logger *logrus.Logger) (*Publisher, error) {
	if exchanges.Trades == "" || exchanges.Footprints == "" {
		return nil, errors.New("exchange names cannot be empty")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	for _, name := range []string{exchanges.Trades, exchanges.Footprints} {
		if err := ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return &Publisher{
		channel:   ch,
		exchanges: exchanges,
		logger:    logger.WithField("component", "publisher"),
	}, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.WithError(err).Error("close rabbitmq channel")
	}
}

func (p *Publisher) PublishTrades(ctx context.Context, symbol string, trades []marketdata.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return p.publish(ctx, p.exchanges.Trades, TradeBatch{Symbol: symbol, Trades: trades})
}

func (p *Publisher) PublishFootprint(ctx context.Context, symbol, interval string, candle marketdata.FootprintCandle) error {
	return p.publish(ctx, p.exchanges.Footprints, FootprintSnapshot{
		Symbol:   symbol,
		Interval: interval,
		Candle:   candle,
	})
}

func (p *Publisher) publish(ctx context.Context, exchange string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
