package symbols

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "main/internal/domain/entity/symbols"
)

type fakeSource struct {
	items []domain.Symbol
	err   error
	calls int
}

func (f *fakeSource) GetExchangeInfo(context.Context) ([]domain.Symbol, error) {
	f.calls++
	return f.items, f.err
}

type fakeRepo struct {
	stored   map[string]domain.Symbol
	getCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stored: map[string]domain.Symbol{}}
}

func (f *fakeRepo) UpsertSymbols(_ context.Context, items []domain.Symbol) error {
	for _, item := range items {
		f.stored[item.Symbol] = item
	}
	return nil
}

func (f *fakeRepo) GetSymbol(_ context.Context, symbol string) (*domain.Symbol, error) {
	f.getCalls++
	s, ok := f.stored[symbol]
	if !ok {
		return nil, errors.New("symbol not found")
	}
	return &s, nil
}

func (f *fakeRepo) ListSymbols(context.Context) ([]domain.Symbol, error) {
	out := make([]domain.Symbol, 0, len(f.stored))
	for _, s := range f.stored {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeRepo) Close() {}

func newService(source *fakeSource, repo *fakeRepo) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(source, repo, logger)
}

func TestSyncStoresAndCaches(t *testing.T) {
	source := &fakeSource{items: []domain.Symbol{
		{Symbol: "BTCUSDT", TickSize: 0.01, QtyStep: 0.00001, Status: domain.StatusTrading},
		{Symbol: "ETHUSDT", TickSize: 0.01, QtyStep: 0.0001, Status: domain.StatusTrading},
	}}
	repo := newFakeRepo()
	svc := newService(source, repo)

	n, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.stored, 2)

	// Cached lookups bypass the repository.
	step, err := svc.TickSize(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.01, step)
	assert.Zero(t, repo.getCalls)
}

func TestGetFallsBackToRepository(t *testing.T) {
	repo := newFakeRepo()
	repo.stored["BTCUSDT"] = domain.Symbol{Symbol: "BTCUSDT", TickSize: 0.5}
	svc := newService(&fakeSource{}, repo)

	record, err := svc.Get(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.5, record.TickSize)
	assert.Equal(t, 1, repo.getCalls)

	// Second lookup is served from the cache.
	_, err = svc.Get(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls)
}

func TestTickSizeValidation(t *testing.T) {
	repo := newFakeRepo()
	repo.stored["ZEROUSDT"] = domain.Symbol{Symbol: "ZEROUSDT"}
	svc := newService(&fakeSource{}, repo)

	_, err := svc.TickSize(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptySymbol)

	_, err = svc.TickSize(context.Background(), "ZEROUSDT")
	assert.ErrorIs(t, err, ErrNoTickSize)
}

func TestSyncPropagatesSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream down")}
	svc := newService(source, newFakeRepo())

	_, err := svc.Sync(context.Background())
	assert.Error(t, err)
}
