package collector

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/rollvault/rollvault/internal/domain"
)

// HyperliquidKlineProvider implements KlineProvider over the Hyperliquid
// info endpoint.
type HyperliquidKlineProvider struct {
	info *hyperliquid.Info
}

// NewHyperliquidKlineProvider creates a new Hyperliquid kline provider.
func NewHyperliquidKlineProvider(info *hyperliquid.Info) *HyperliquidKlineProvider {
	return &HyperliquidKlineProvider{info: info}
}

func parseIntervalToDuration(interval string) (time.Duration, error) {
	if interval == "" {
		return 0, errors.New("empty interval")
	}
	// supported formats: "1m", "3m", "5m", "15m", "1h", "4h", "1d"
	unit := interval[len(interval)-1]
	value := interval[:len(interval)-1]
	if value == "" {
		return 0, errors.Errorf("invalid interval: %s", interval)
	}
	var n int64
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("invalid interval number: %s", interval)
		}
		n = n*10 + int64(r-'0')
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, errors.Errorf("unsupported interval unit: %c", unit)
	}
}

// GetKlines fetches candlestick history for the pair's primary asset.
// Hyperliquid keys markets by the base coin name, e.g. "ETH".
func (p *HyperliquidKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info is nil")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	dur, err := parseIntervalToDuration(interval)
	if err != nil {
		return nil, err
	}

	endMs := time.Now().UnixMilli()
	// fetch a slightly wider window to absorb boundary rounding
	startMs := endMs - (int64(limit)+2)*dur.Milliseconds()

	coin := strings.ToUpper(pair.Primary)

	candles, err := p.info.CandlesSnapshot(ctx, coin, interval, startMs, endMs)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.Errorf("no candles from hyperliquid for %s %s", coin, interval)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]domain.Candle, 0, len(candles))
	for i, c := range candles {
		open, err := decimal.NewFromString(c.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "parse open at %d", i)
		}
		high, err := decimal.NewFromString(c.High)
		if err != nil {
			return nil, errors.Wrapf(err, "parse high at %d", i)
		}
		low, err := decimal.NewFromString(c.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "parse low at %d", i)
		}
		closeP, err := decimal.NewFromString(c.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "parse close at %d", i)
		}
		volume, err := decimal.NewFromString(c.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "parse volume at %d", i)
		}

		out = append(out, domain.Candle{
			OpenTime:  time.UnixMilli(c.TimeOpen),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    volume,
			CloseTime: time.UnixMilli(c.TimeClose),
		})
	}

	return out, nil
}
