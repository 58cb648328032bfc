package symbols

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "main/internal/domain/entity/symbols"
	interfaces "main/internal/domain/interfaces"
	"main/internal/infrastructure/symbols/models"
)

var ErrSymbolNotFound = errors.New("symbol not found")

// Repository stores exchange symbol reference data in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

var _ interfaces.SymbolRepository = (*Repository)(nil)

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

const upsertSymbolQuery = `
	INSERT INTO symbols (uid, symbol, base_asset, quote_asset, tick_size, qty_step, status)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (symbol) DO UPDATE SET
		base_asset=EXCLUDED.base_asset,
		quote_asset=EXCLUDED.quote_asset,
		tick_size=EXCLUDED.tick_size,
		qty_step=EXCLUDED.qty_step,
		status=EXCLUDED.status,
		updated_at=CURRENT_TIMESTAMP,
		deleted_at=NULL`

func (r *Repository) UpsertSymbols(ctx context.Context, items []domain.Symbol) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		model := models.FromDomain(item)
		if model.UID == uuid.Nil {
			model.UID = uuid.New()
		}
		batch.Queue(upsertSymbolQuery,
			model.UID,
			model.Symbol,
			model.BaseAsset,
			model.QuoteAsset,
			model.TickSize,
			model.QtyStep,
			model.Status,
		)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range items {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

const selectSymbolColumns = `
	uid, symbol, base_asset, quote_asset, tick_size, qty_step, status,
	created_at, updated_at, deleted_at`

func (r *Repository) GetSymbol(ctx context.Context, symbol string) (*domain.Symbol, error) {
	query := `
		SELECT ` + selectSymbolColumns + `
		FROM symbols
		WHERE symbol=$1 AND deleted_at IS NULL`
	row := r.pool.QueryRow(ctx, query, symbol)
	model, err := scanSymbol(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSymbolNotFound
		}
		return nil, err
	}
	out := model.ToDomain()
	return &out, nil
}

func (r *Repository) ListSymbols(ctx context.Context) ([]domain.Symbol, error) {
	query := `
		SELECT ` + selectSymbolColumns + `
		FROM symbols
		WHERE deleted_at IS NULL
		ORDER BY symbol ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Symbol
	for rows.Next() {
		model, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ToDomain())
	}
	return out, rows.Err()
}

func scanSymbol(row pgx.Row) (models.SymbolModel, error) {
	var model models.SymbolModel
	err := row.Scan(
		&model.UID,
		&model.Symbol,
		&model.BaseAsset,
		&model.QuoteAsset,
		&model.TickSize,
		&model.QtyStep,
		&model.Status,
		&model.CreatedAt,
		&model.UpdatedAt,
		&model.DeletedAt,
	)
	return model, err
}
