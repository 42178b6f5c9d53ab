// Package clients builds authenticated exchange clients for the live swap
// executors and pricers.
package clients

import (
	"github.com/adshao/go-binance/v2"
)

func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}
