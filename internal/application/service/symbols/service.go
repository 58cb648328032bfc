package symbols

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	symbols "main/internal/domain/entity/symbols"
	interfaces "main/internal/domain/interfaces"
)

var (
	ErrEmptySymbol = errors.New("symbol is required")
	ErrNoTickSize  = errors.New("symbol has no tick size")
)

// ExchangeInfoSource provides the upstream symbol reference.
type ExchangeInfoSource interface {
	GetExchangeInfo(ctx context.Context) ([]symbols.Symbol, error)
}

// Service keeps the local symbol reference in sync with the exchange and
// answers tick-size lookups for the aggregation pipeline. Lookups hit an
// in-memory cache first; the cache is replaced wholesale on Sync.
type Service struct {
	source ExchangeInfoSource
	repo   interfaces.SymbolRepository
	logger *logrus.Entry

	mu    sync.RWMutex
	cache map[string]symbols.Symbol
}

func NewService(source ExchangeInfoSource, repo interfaces.SymbolRepository, logger *logrus.Logger) *Service {
	return &Service{
		source: source,
		repo:   repo,
		logger: logger.WithField("component", "symbols_service"),
		cache:  map[string]symbols.Symbol{},
	}
}

// Sync pulls the exchange reference, upserts it and refreshes the cache.
// Returns the number of symbols stored.
func (s *Service) Sync(ctx context.Context) (int, error) {
	items, err := s.source.GetExchangeInfo(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.repo.UpsertSymbols(ctx, items); err != nil {
		return 0, err
	}

	cache := make(map[string]symbols.Symbol, len(items))
	for _, item := range items {
		cache[item.Symbol] = item
	}
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()

	s.logger.WithField("symbols", len(items)).Info("symbol reference synced")
	return len(items), nil
}

// Get returns one symbol record, preferring the cache.
func (s *Service) Get(ctx context.Context, symbol string) (*symbols.Symbol, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	s.mu.RLock()
	cached, ok := s.cache[symbol]
	s.mu.RUnlock()
	if ok {
		out := cached
		return &out, nil
	}

	record, err := s.repo.GetSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[symbol] = *record
	s.mu.Unlock()
	return record, nil
}

// TickSize resolves the footprint price step for a symbol.
func (s *Service) TickSize(ctx context.Context, symbol string) (float64, error) {
	record, err := s.Get(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if record.TickSize <= 0 {
		return 0, ErrNoTickSize
	}
	return record.TickSize, nil
}

func (s *Service) List(ctx context.Context) ([]symbols.Symbol, error) {
	return s.repo.ListSymbols(ctx)
}
