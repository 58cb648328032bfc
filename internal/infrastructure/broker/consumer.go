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

	interfaces "main/internal/domain/interfaces"
)

// ConsumerConfig wires the consumer to its broker and batching thresholds.
type ConsumerConfig struct {
	URL          string
	Exchanges    Exchanges
	Prefetch     int
	BatchSize    int
	BatchTimeout time.Duration
}

// Consumer drains the trades and footprints exchanges into Postgres
// through a batch writer.
type Consumer struct {
	cfg    ConsumerConfig
	logger *logrus.Logger

	conn     *amqp.Connection
	channels []*amqp.Channel
	wg       sync.WaitGroup
	batcher  *BatchWriter
}

func NewConsumer(cfg ConsumerConfig, repo interfaces.FootprintRepository, logger *logrus.Logger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		batcher: NewBatchWriter(BatchConfig{
			Size:    cfg.BatchSize,
			Timeout: cfg.BatchTimeout,
		}, repo, logger),
	}, nil
}

// Start connects and begins consuming both exchanges.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	c.conn = conn
	c.batcher.Run(ctx)

	if err := c.startStream(ctx, streamTrades, c.cfg.Exchanges.Trades); err != nil {
		c.Close(ctx)
		return err
	}
	if err := c.startStream(ctx, streamFootprints, c.cfg.Exchanges.Footprints); err != nil {
		c.Close(ctx)
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"trades_ex":     c.cfg.Exchanges.Trades,
		"footprints_ex": c.cfg.Exchanges.Footprints,
	}).Info("rabbitmq consumer started")
	return nil
}

// Close stops consumption, flushes pending batches and releases resources.
func (c *Consumer) Close(ctx context.Context) error {
	for _, ch := range c.channels {
		_ = ch.Close()
	}
	c.channels = nil
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.wg.Wait()
	return c.batcher.Stop(ctx)
}

func (c *Consumer) startStream(ctx context.Context, stream streamType, exchange string) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel for %s: %w", stream, err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare queue for %s: %w", stream, err)
	}
	if err := ch.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, exchange, err)
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos for %s: %w", stream, err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("start consume for %s: %w", stream, err)
	}
	c.channels = append(c.channels, ch)
	c.wg.Add(1)
	go c.consumeLoop(ctx, stream, deliveries)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, stream streamType, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.WithField("stream", string(stream))
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			if err := c.handleDelivery(stream, &delivery); err != nil {
				log.WithError(err).Warn("failed to process message")
				_ = delivery.Nack(false, true)
				continue
			}
			if err := delivery.Ack(false); err != nil {
				log.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}

func (c *Consumer) handleDelivery(stream streamType, delivery *amqp.Delivery) error {
	switch stream {
	case streamTrades:
		var payload TradeBatch
		if err := json.Unmarshal(delivery.Body, &payload); err != nil {
			return fmt.Errorf("decode trade batch: %w", err)
		}
		if payload.Symbol == "" {
			return errors.New("trade batch has no symbol")
		}
		return c.batcher.AddTrades(payload)
	case streamFootprints:
		var payload FootprintSnapshot
		if err := json.Unmarshal(delivery.Body, &payload); err != nil {
			return fmt.Errorf("decode footprint snapshot: %w", err)
		}
		if payload.Symbol == "" || payload.Interval == "" {
			return errors.New("footprint snapshot missing symbol or interval")
		}
		return c.batcher.AddFootprint(payload)
	default:
		return fmt.Errorf("unsupported stream: %s", stream)
	}
}

type streamType string

const (
	streamTrades     streamType = "trades"
	streamFootprints streamType = "footprints"
)
