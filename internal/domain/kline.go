package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is an OHLCV data point used when suggesting a premium floor from
// recent market history.
type Candle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}
