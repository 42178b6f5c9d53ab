package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BybitExecutor converts the settlement currency into the primary asset
// with a spot market order on Bybit. The create-order response carries no
// fill information, so the reported output is always zero; the orchestrator
// judges success by the settlement balance alone.
type BybitExecutor struct {
	client  *bybit.Client
	account string
}

// NewBybitExecutor wraps a Bybit client as a swap executor.
func NewBybitExecutor(client *bybit.Client, account string) (*BybitExecutor, error) {
	if client == nil {
		return nil, errors.New("bybit client is required")
	}
	return &BybitExecutor{client: client, account: account}, nil
}

// Spender returns the executor's ledger identity.
func (e *BybitExecutor) Spender() string { return e.account }

// SwapExactInput market-buys the primary asset spending amountIn of the
// settlement currency. For spot market buys Bybit interprets Qty in the
// quote currency, which matches the exact-input contract.
func (e *BybitExecutor) SwapExactInput(ctx context.Context, tokenIn, tokenOut string, amountIn, minOut decimal.Decimal, _ string, deadline time.Time) (decimal.Decimal, error) {
	if !deadline.IsZero() && time.Now().After(deadline) {
		return decimal.Zero, errors.New("swap deadline passed")
	}
	if amountIn.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.New("swap input must be positive")
	}

	orderLinkID := "rollvault-swap-" + uuid.NewString()
	symbol := fmt.Sprintf("%s%s", tokenOut, tokenIn)

	_, err := e.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    "spot",
		Symbol:      bybit.SymbolV5(symbol),
		Side:        bybit.SideBuy,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         amountIn.String(),
		OrderLinkID: &orderLinkID,
		IsLeverage:  nil,
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "create bybit market order")
	}

	return decimal.Zero, nil
}
