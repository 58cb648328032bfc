package footprint

import (
	"io"
	"math"
	"testing"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(logger)
}

func TestServiceRejectsInvalidParams(t *testing.T) {
	svc := testService()

	_, err := svc.Aggregate(nil, nil, 0, 3)
	assert.ErrorIs(t, err, ErrInvalidPriceStep)

	_, err = svc.Aggregate(nil, nil, 0.5, 0.5)
	assert.ErrorIs(t, err, ErrInvalidImbalanceRatio)

	_, err = svc.AggregateHTF(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidTimeframe)
}

func TestServiceFiltersMalformedTrades(t *testing.T) {
	svc := testService()

	candles := []marketdata.OHLCV{{Time: 1, Open: 100, High: 101, Low: 99, Close: 100}}
	trades := []marketdata.Trade{
		{Time: 1100, Price: math.NaN(), Qty: 1},
		{Time: 1200, Price: 100, Qty: 2},
	}

	out, err := svc.Aggregate(candles, trades, 1, 3)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2.0, out[0].TotalVolume)
}
