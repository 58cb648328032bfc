package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	symbols "main/internal/domain/entity/symbols"
)

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Filters    []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// GetExchangeInfo fetches the exchange symbol reference: tick sizes and
// quantity steps per tradable pair. Symbols without a price filter are
// skipped, the footprint price step cannot be derived for them.
func (c *Client) GetExchangeInfo(ctx context.Context) ([]symbols.Symbol, error) {
	data, err := c.get(ctx, "/api/v3/exchangeInfo", url.Values{})
	if err != nil {
		return nil, err
	}

	var resp exchangeInfoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}

	out := make([]symbols.Symbol, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		var tickSize, qtyStep float64
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				tickSize = parseFloat(f.TickSize)
			case "LOT_SIZE":
				qtyStep = parseFloat(f.StepSize)
			}
		}
		if tickSize <= 0 {
			c.logger.WithField("symbol", s.Symbol).Debug("no price filter, symbol skipped")
			continue
		}

		status := symbols.Status(s.Status)
		if status != symbols.StatusTrading && status != symbols.StatusHalted {
			status = symbols.StatusDelisted
		}
		out = append(out, symbols.Symbol{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			TickSize:   tickSize,
			QtyStep:    qtyStep,
			Status:     status,
		})
	}
	return out, nil
}
