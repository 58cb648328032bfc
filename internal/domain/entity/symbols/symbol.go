package symbols

import (
	"time"

	"github.com/google/uuid"
)

// Status reflects whether a symbol is tradable on the upstream exchange.
type Status string

const (
	StatusTrading  Status = "TRADING"
	StatusHalted   Status = "HALTED"
	StatusDelisted Status = "DELISTED"
)

// Symbol is the reference record for one tradable pair. TickSize is the
// minimum price increment and is what footprint aggregation uses as its
// price step; QtyStep is the minimum quantity increment.
type Symbol struct {
	UID        uuid.UUID
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	TickSize   float64
	QtyStep    float64
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// Tradable reports whether the symbol currently accepts orders.
func (s Symbol) Tradable() bool {
	return s.Status == StatusTrading && s.DeletedAt == nil
}
