package interfaces

import (
	"context"

	symbols "main/internal/domain/entity/symbols"
)

// SymbolRepository stores exchange symbol reference data (tick sizes).
type SymbolRepository interface {
	UpsertSymbols(ctx context.Context, items []symbols.Symbol) error
	GetSymbol(ctx context.Context, symbol string) (*symbols.Symbol, error)
	ListSymbols(ctx context.Context) ([]symbols.Symbol, error)
	Close()
}
