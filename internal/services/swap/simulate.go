package swap

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rollvault/rollvault/internal/ledger"
)

// SimulateExecutor fills exact-input swaps against an in-memory ledger at a
// fixed rate. FillFraction below one leaves part of the input behind, which
// is how tests exercise the drain post-condition.
type SimulateExecutor struct {
	mu           sync.Mutex
	mem          *ledger.Memory
	account      string
	rate         decimal.Decimal // primary units per settlement unit
	fillFraction decimal.Decimal
}

// NewSimulateExecutor creates an executor trading at the given rate with
// full fills.
func NewSimulateExecutor(mem *ledger.Memory, account string, rate decimal.Decimal) (*SimulateExecutor, error) {
	if mem == nil {
		return nil, errors.New("ledger is required")
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("rate must be positive")
	}
	return &SimulateExecutor{
		mem:          mem,
		account:      account,
		rate:         rate,
		fillFraction: decimal.NewFromInt(1),
	}, nil
}

// SetFillFraction makes subsequent swaps consume only the given fraction of
// the input amount.
func (e *SimulateExecutor) SetFillFraction(f decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fillFraction = f
}

// Spender returns the executor's ledger account.
func (e *SimulateExecutor) Spender() string { return e.account }

// SwapExactInput pulls tokenIn from the recipient via the granted allowance
// and mints tokenOut back at the configured rate.
func (e *SimulateExecutor) SwapExactInput(_ context.Context, tokenIn, tokenOut string, amountIn, minOut decimal.Decimal, recipient string, deadline time.Time) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !deadline.IsZero() && time.Now().After(deadline) {
		return decimal.Zero, errors.New("swap deadline passed")
	}
	if amountIn.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.New("swap input must be positive")
	}

	fill := amountIn.Mul(e.fillFraction).Floor()
	if fill.IsZero() {
		return decimal.Zero, errors.New("swap filled nothing")
	}

	out := fill.Mul(e.rate).Floor()
	if out.LessThan(minOut) {
		return decimal.Zero, errors.Errorf("output %s below minimum %s", out.String(), minOut.String())
	}

	if err := e.mem.TransferFrom(tokenIn, e.account, recipient, e.account, fill); err != nil {
		return decimal.Zero, errors.Wrap(err, "pull swap input")
	}
	if err := e.mem.Mint(tokenOut, recipient, out); err != nil {
		return decimal.Zero, errors.Wrap(err, "credit swap output")
	}

	return out, nil
}
