package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
)

// BatchConfig controls flush thresholds for persisted market data.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

// BatchWriter buffers incoming broker payloads and flushes them to the
// footprint repository in batches: trades via bulk copy, candles via
// per-symbol upserts.
type BatchWriter struct {
	trades     *batchBuffer[TradeBatch]
	footprints *batchBuffer[FootprintSnapshot]
}

func NewBatchWriter(cfg BatchConfig, repo interfaces.FootprintRepository, logger *logrus.Logger) *BatchWriter {
	log := logger.WithField("component", "batch_writer")
	return &BatchWriter{
		trades: newBatchBuffer(cfg, func(ctx context.Context, batch []TradeBatch) error {
			return flushTrades(ctx, repo, batch)
		}, log.WithField("entity", "trade")),
		footprints: newBatchBuffer(cfg, func(ctx context.Context, batch []FootprintSnapshot) error {
			return flushFootprints(ctx, repo, batch)
		}, log.WithField("entity", "footprint")),
	}
}

// flushTrades groups buffered batches by symbol so each symbol gets one
// bulk copy.
func flushTrades(ctx context.Context, repo interfaces.FootprintRepository, batch []TradeBatch) error {
	grouped := map[string]*TradeBatch{}
	order := make([]string, 0, len(batch))
	for _, item := range batch {
		g, ok := grouped[item.Symbol]
		if !ok {
			grouped[item.Symbol] = &TradeBatch{Symbol: item.Symbol, Trades: item.Trades}
			order = append(order, item.Symbol)
			continue
		}
		g.Trades = append(g.Trades, item.Trades...)
	}
	for _, symbol := range order {
		if err := repo.AddTrades(ctx, symbol, grouped[symbol].Trades); err != nil {
			return err
		}
	}
	return nil
}

// flushFootprints groups snapshots per symbol/interval and upserts each
// group in one batch.
func flushFootprints(ctx context.Context, repo interfaces.FootprintRepository, batch []FootprintSnapshot) error {
	type key struct{ symbol, interval string }
	grouped := map[key][]marketdata.FootprintCandle{}
	order := make([]key, 0, len(batch))
	for _, item := range batch {
		k := key{item.Symbol, item.Interval}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], item.Candle)
	}
	for _, k := range order {
		if err := repo.AddFootprintCandles(ctx, k.symbol, k.interval, grouped[k]); err != nil {
			return err
		}
	}
	return nil
}

// Run sets the base context for timer-driven flushes.
func (b *BatchWriter) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	b.trades.setContext(ctx)
	b.footprints.setContext(ctx)
}

// Stop flushes whatever is still buffered.
func (b *BatchWriter) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b.trades.setContext(ctx)
	b.footprints.setContext(ctx)
	return errors.Join(b.trades.drain(ctx), b.footprints.drain(ctx))
}

func (b *BatchWriter) AddTrades(payload TradeBatch) error {
	if len(payload.Trades) == 0 {
		return nil
	}
	return b.trades.enqueue(payload)
}

func (b *BatchWriter) AddFootprint(payload FootprintSnapshot) error {
	return b.footprints.enqueue(payload)
}

// batchBuffer accumulates items until the size threshold is hit or the
// flush timer fires.
type batchBuffer[T any] struct {
	cfg     BatchConfig
	flushFn func(context.Context, []T) error
	logger  *logrus.Entry

	mu    sync.Mutex
	items []T
	timer *time.Timer
	ctx   context.Context
}

func newBatchBuffer[T any](cfg BatchConfig, flushFn func(context.Context, []T) error, logger *logrus.Entry) *batchBuffer[T] {
	return &batchBuffer[T]{cfg: cfg, flushFn: flushFn, logger: logger}
}

func (bb *batchBuffer[T]) setContext(ctx context.Context) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	bb.ctx = ctx
}

func (bb *batchBuffer[T]) enqueue(item T) error {
	bb.mu.Lock()
	ctx := bb.ctx
	if ctx == nil {
		bb.mu.Unlock()
		return errors.New("batch buffer is not running")
	}
	if err := ctx.Err(); err != nil {
		bb.mu.Unlock()
		return err
	}
	bb.items = append(bb.items, item)

	var batch []T
	limit := bb.cfg.Size
	if limit <= 0 {
		limit = 1
	}
	if len(bb.items) >= limit {
		batch = bb.takeLocked()
	} else if bb.timer == nil && bb.cfg.Timeout > 0 {
		bb.armTimerLocked()
	}
	bb.mu.Unlock()

	return bb.flush(ctx, batch)
}

func (bb *batchBuffer[T]) armTimerLocked() {
	bb.timer = time.AfterFunc(bb.cfg.Timeout, func() {
		bb.mu.Lock()
		ctx := bb.ctx
		batch := bb.takeLocked()
		bb.mu.Unlock()
		if err := bb.flush(ctx, batch); err != nil {
			bb.logger.WithError(err).Warn("batch flush failed")
		}
	})
}

func (bb *batchBuffer[T]) takeLocked() []T {
	if bb.timer != nil {
		bb.timer.Stop()
		bb.timer = nil
	}
	if len(bb.items) == 0 {
		return nil
	}
	batch := make([]T, len(bb.items))
	copy(batch, bb.items)
	bb.items = bb.items[:0]
	return batch
}

func (bb *batchBuffer[T]) flush(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := bb.flushFn(ctx, batch); err != nil {
		return err
	}
	bb.logger.WithFields(logrus.Fields{
		"size":    len(batch),
		"took_ms": time.Since(start).Milliseconds(),
	}).Debug("flushed batch")
	return nil
}

func (bb *batchBuffer[T]) drain(ctx context.Context) error {
	bb.mu.Lock()
	batch := bb.takeLocked()
	bb.mu.Unlock()
	return bb.flush(ctx, batch)
}
