package footprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
)

// Repository persists raw trades and aggregated footprint candles in
// Postgres. Candle level breakdowns are stored as a JSONB payload; range
// queries filter on the scalar columns only.
type Repository struct {
	pool *pgxpool.Pool
}

var _ interfaces.FootprintRepository = (*Repository)(nil)

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Trades

func (r *Repository) AddTrades(ctx context.Context, symbol string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(trades))
	for i := range trades {
		rows = append(rows, []interface{}{
			uuid.New(),
			symbol,
			time.UnixMilli(trades[i].Time).UTC(),
			trades[i].Price,
			trades[i].Qty,
			trades[i].IsBuyerMaker,
		})
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"trades"},
		[]string{"trade_id", "symbol", "traded_at", "price", "quantity", "is_buyer_maker"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (r *Repository) GetTradesBetween(ctx context.Context, symbol string, from, to time.Time) ([]domain.Trade, error) {
	const query = `
		SELECT traded_at, price, quantity, is_buyer_maker
		FROM trades
		WHERE symbol=$1 AND traded_at >= $2 AND traded_at <= $3
		ORDER BY traded_at ASC`
	rows, err := r.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var tradedAt time.Time
		var trade domain.Trade
		if err := rows.Scan(&tradedAt, &trade.Price, &trade.Qty, &trade.IsBuyerMaker); err != nil {
			return nil, err
		}
		trade.Time = tradedAt.UnixMilli()
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// Footprint candles

const insertFootprintQuery = `
	INSERT INTO footprint_candles (
		candle_id, symbol, interval_token, period_start,
		open, high, low, close, volume,
		delta, total_volume, poc_price, levels
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	ON CONFLICT (symbol, interval_token, period_start) DO UPDATE SET
		open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
		close=EXCLUDED.close, volume=EXCLUDED.volume,
		delta=EXCLUDED.delta, total_volume=EXCLUDED.total_volume,
		poc_price=EXCLUDED.poc_price, levels=EXCLUDED.levels`

// AddFootprintCandles upserts candle rows one by one: live candles are
// re-written repeatedly for the same period_start, which rules out CopyFrom
// here.
func (r *Repository) AddFootprintCandles(ctx context.Context, symbol, interval string, candles []domain.FootprintCandle) error {
	if len(candles) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range candles {
		levels, err := marshalLevels(candles[i].Levels)
		if err != nil {
			return err
		}
		batch.Queue(insertFootprintQuery,
			uuid.New(),
			symbol,
			interval,
			time.Unix(candles[i].Time, 0).UTC(),
			candles[i].Open,
			candles[i].High,
			candles[i].Low,
			candles[i].Close,
			candles[i].Volume,
			candles[i].Delta,
			candles[i].TotalVolume,
			candles[i].MaxVolLevel,
			levels,
		)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range candles {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

const selectFootprintColumns = `
	period_start, open, high, low, close, volume,
	delta, total_volume, poc_price, levels`

func (r *Repository) GetFootprintCandlesBetween(ctx context.Context, symbol, interval string, from, to time.Time) ([]domain.FootprintCandle, error) {
	query := `
		SELECT ` + selectFootprintColumns + `
		FROM footprint_candles
		WHERE symbol=$1 AND interval_token=$2
		  AND period_start >= $3 AND period_start <= $4
		ORDER BY period_start ASC`
	rows, err := r.pool.Query(ctx, query, symbol, interval, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFootprints(rows)
}

func (r *Repository) GetLastFootprintCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.FootprintCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	query := `
		SELECT * FROM (
			SELECT ` + selectFootprintColumns + `
			FROM footprint_candles
			WHERE symbol=$1 AND interval_token=$2
			ORDER BY period_start DESC
			LIMIT $3
		) latest ORDER BY period_start ASC`
	rows, err := r.pool.Query(ctx, query, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFootprints(rows)
}

func collectFootprints(rows pgx.Rows) ([]domain.FootprintCandle, error) {
	var candles []domain.FootprintCandle
	for rows.Next() {
		candle, err := scanFootprint(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, rows.Err()
}

func scanFootprint(row pgx.Row) (domain.FootprintCandle, error) {
	var periodStart time.Time
	var levelBytes []byte
	candle := domain.FootprintCandle{}
	err := row.Scan(
		&periodStart,
		&candle.Open,
		&candle.High,
		&candle.Low,
		&candle.Close,
		&candle.Volume,
		&candle.Delta,
		&candle.TotalVolume,
		&candle.MaxVolLevel,
		&levelBytes,
	)
	if err != nil {
		return domain.FootprintCandle{}, err
	}
	candle.Time = periodStart.Unix()
	if len(levelBytes) > 0 {
		if err := json.Unmarshal(levelBytes, &candle.Levels); err != nil {
			return domain.FootprintCandle{}, fmt.Errorf("decode levels: %w", err)
		}
	}
	return candle, nil
}

func marshalLevels(levels []domain.FootprintLevel) ([]byte, error) {
	if len(levels) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(levels)
	if err != nil {
		return nil, fmt.Errorf("encode levels: %w", err)
	}
	return data, nil
}
