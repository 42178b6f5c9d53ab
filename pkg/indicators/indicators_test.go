package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollvault/rollvault/internal/domain"
)

func flatCandles(n int, price int64) []domain.Candle {
	p := decimal.NewFromInt(price)
	candles := make([]domain.Candle, n)
	for i := range candles {
		candles[i] = domain.Candle{Open: p, High: p, Low: p, Close: p}
	}
	return candles
}

func TestCalculateEMAConstantSeries(t *testing.T) {
	closes := make([]decimal.Decimal, 30)
	for i := range closes {
		closes[i] = decimal.NewFromInt(100)
	}

	ema, err := CalculateEMA(closes, 20)
	require.NoError(t, err)
	require.NotEmpty(t, ema)
	diff := ema[len(ema)-1].Sub(decimal.NewFromInt(100)).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(1e-9)), "EMA of a constant series is the constant, got %s", ema[len(ema)-1])

	_, err = CalculateEMA(closes[:5], 20)
	assert.Error(t, err, "too few points must fail")
}

func TestCalculateATRFlatMarket(t *testing.T) {
	atr, err := CalculateATR(flatCandles(40, 100), 14)
	require.NoError(t, err)
	require.NotEmpty(t, atr)
	assert.True(t, atr[len(atr)-1].IsZero(), "flat candles have zero true range")

	_, err = CalculateATR(flatCandles(5, 100), 14)
	assert.Error(t, err, "too few candles must fail")
}

func TestSuggestPremiumFloor(t *testing.T) {
	// flat market: floor equals the close with no volatility discount
	floor, err := SuggestPremiumFloor(flatCandles(40, 100))
	require.NoError(t, err)
	diff := floor.Sub(decimal.NewFromInt(100)).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(1e-9)), "flat market floor should equal the close, got %s", floor)

	_, err = SuggestPremiumFloor(flatCandles(10, 100))
	assert.Error(t, err, "too few candles must fail")
}
