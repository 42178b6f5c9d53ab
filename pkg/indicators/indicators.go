// Package indicators derives a suggested option premium floor from recent
// market history (EMA trend plus ATR volatility cushion).
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/shopspring/decimal"

	"github.com/rollvault/rollvault/internal/domain"
)

const (
	floorEMAPeriod = 20
	floorATRPeriod = 14
)

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(closes))
	}

	closesFloat := decimalsToFloat64(closes)

	ema := trend.NewEmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(closesFloat)
	outputChan := ema.Compute(inputChan)
	emaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(emaFloat), nil
}

// CalculateATR calculates the Average True Range for the given period.
func CalculateATR(candles []domain.Candle, period int) ([]decimal.Decimal, error) {
	if len(candles) < period+1 {
		return nil, fmt.Errorf("not enough data points for ATR: need %d, got %d", period+1, len(candles))
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))

	for i, c := range candles {
		highs[i], _ = c.High.Float64()
		lows[i], _ = c.Low.Float64()
		closes[i], _ = c.Close.Float64()
	}

	atr := volatility.NewAtrWithPeriod[float64](period)
	highChan := helper.SliceToChan(highs)
	lowChan := helper.SliceToChan(lows)
	closeChan := helper.SliceToChan(closes)
	outputChan := atr.Compute(highChan, lowChan, closeChan)
	atrFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(atrFloat), nil
}

// SuggestPremiumFloor proposes a limit price for option sales from recent
// candles: the EMA of closes discounted by one ATR, clamped at zero.
func SuggestPremiumFloor(candles []domain.Candle) (decimal.Decimal, error) {
	if len(candles) < floorEMAPeriod+floorATRPeriod {
		return decimal.Zero, fmt.Errorf("not enough candles: need %d, got %d", floorEMAPeriod+floorATRPeriod, len(candles))
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	ema, err := CalculateEMA(closes, floorEMAPeriod)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to calculate EMA: %w", err)
	}
	atr, err := CalculateATR(candles, floorATRPeriod)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to calculate ATR: %w", err)
	}

	floor := ema[len(ema)-1].Sub(atr[len(atr)-1])
	if floor.IsNegative() {
		floor = decimal.Zero
	}
	return floor, nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
