package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rollvault/rollvault/internal/domain"
)

// StaticPricer returns a fixed price. Simulation runs use it in place of a
// live market feed.
type StaticPricer struct {
	price decimal.Decimal
}

func NewStaticPricer(price decimal.Decimal) (*StaticPricer, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("static price must be positive")
	}
	return &StaticPricer{price: price}, nil
}

func (p *StaticPricer) GetPrice(_ context.Context, _ domain.Pair) (decimal.Decimal, error) {
	return p.price, nil
}
