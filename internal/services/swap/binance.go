package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rollvault/rollvault/pkg/poll"
)

const binanceOrderIDPrefix = "rollvault-swap-"

// BinanceExecutor converts the settlement currency into the primary asset
// with a spot market order. Used when the vault custody sits on a Binance
// account rather than the in-memory ledger.
type BinanceExecutor struct {
	client  *binance.Client
	account string
	poller  *poll.Poller
}

// NewBinanceExecutor wraps a Binance client as a swap executor. account is
// the ledger identity the orchestrator grants settlement allowance to.
func NewBinanceExecutor(client *binance.Client, account string) (*BinanceExecutor, error) {
	if client == nil {
		return nil, errors.New("binance client is required")
	}
	return &BinanceExecutor{
		client:  client,
		account: account,
		poller:  poll.New(),
	}, nil
}

// Spender returns the executor's ledger identity.
func (e *BinanceExecutor) Spender() string { return e.account }

// SwapExactInput market-buys the primary asset spending exactly amountIn of
// the settlement currency, then polls the order until it is fully filled.
func (e *BinanceExecutor) SwapExactInput(ctx context.Context, tokenIn, tokenOut string, amountIn, minOut decimal.Decimal, _ string, deadline time.Time) (decimal.Decimal, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	symbol := fmt.Sprintf("%s%s", tokenOut, tokenIn)
	clientOrderID := binanceOrderIDPrefix + uuid.NewString()

	_, err := e.client.NewCreateOrderService().Symbol(symbol).
		Side(binance.SideTypeBuy).Type(binance.OrderTypeMarket).
		QuoteOrderQty(amountIn.String()).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "create binance market order")
	}

	// Market orders normally fill immediately, but the fill report can lag.
	executed, err := poll.Value(ctx, e.poller, func(ctx context.Context) (decimal.Decimal, error) {
		order, err := e.client.NewGetOrderService().
			Symbol(symbol).
			OrigClientOrderID(clientOrderID).
			Do(ctx)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "query binance order status")
		}
		if order.Status != binance.OrderStatusTypeFilled {
			return decimal.Zero, errors.Errorf("order %s not filled yet: %s", clientOrderID, order.Status)
		}
		qty, err := decimal.NewFromString(order.ExecutedQuantity)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "parse executed quantity")
		}
		return qty, nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	if executed.LessThan(minOut) {
		return decimal.Zero, errors.Errorf("filled %s %s below minimum %s", executed.String(), tokenOut, minOut.String())
	}
	return executed, nil
}
