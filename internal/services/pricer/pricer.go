// Package pricer fetches reference market prices for the vault's pair. The
// ops surface uses them to sanity-check the option premium floor; the vault
// core itself never consults a price feed.
package pricer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rollvault/rollvault/internal/domain"
)

type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}
