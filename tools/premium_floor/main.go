// Command premium_floor quotes a suggested option premium floor for a pair
// from recent candlestick history. Operators use it to pick the vault's
// limit price before a round opens.
//
// Usage:
//
//	premium_floor -pair ETH_USDC -interval 1h -limit 100
//	premium_floor -pair ETH_USDC -source hyperliquid (needs HYPERLIQUID_PRIVATE_KEY)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rollvault/rollvault/internal/clients"
	"github.com/rollvault/rollvault/internal/domain"
	"github.com/rollvault/rollvault/internal/services/market/collector"
	"github.com/rollvault/rollvault/pkg/indicators"
)

const hyperliquidMainnetURL = "https://api.hyperliquid.xyz"

func main() {
	pairFlag := flag.String("pair", "ETH_USDC", "pair, example: ETH_USDC")
	source := flag.String("source", "binance", "candle source: binance or hyperliquid")
	interval := flag.String("interval", "1h", "kline interval, example: 1h")
	limit := flag.Int("limit", 100, "number of candles to fetch")
	flag.Parse()

	parts := strings.Split(*pairFlag, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		log.Fatalf("pair must look like ETH_USDC, got %s", *pairFlag)
	}
	pair := domain.Pair{Primary: parts[0], Settlement: parts[1]}

	var provider collector.KlineProvider
	switch *source {
	case "binance":
		// kline history is public, no keys needed
		provider = collector.NewBinanceKlineProvider(clients.NewBinanceClient("", ""))
	case "hyperliquid":
		key := os.Getenv("HYPERLIQUID_PRIVATE_KEY")
		if key == "" {
			log.Fatal("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
		client, err := clients.NewHyperliquidClient(key, hyperliquidMainnetURL)
		if err != nil {
			log.Fatalf("failed to build hyperliquid client: %v", err)
		}
		provider = collector.NewHyperliquidKlineProvider(client.Info())
	default:
		log.Fatalf("unsupported source: %s", *source)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	candles, err := provider.GetKlines(ctx, pair, *interval, *limit)
	if err != nil {
		log.Fatalf("failed to fetch candles: %v", err)
	}

	floor, err := indicators.SuggestPremiumFloor(candles)
	if err != nil {
		log.Fatalf("failed to compute premium floor: %v", err)
	}

	last := candles[len(candles)-1]
	fmt.Printf("pair: %s\ncandles: %d x %s (through %s)\nlast close: %s\nsuggested premium floor: %s\n",
		pair.String(), len(candles), *interval, last.CloseTime.Format(time.RFC3339),
		last.Close.String(), floor.String())
}
