// Package ledger wraps transfer, approval and balance primitives for the
// tokens the vault custodies. Every operation either completes fully or
// fails; there are no partial transfers.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// TokenLedger is the vault's view of a single token, bound to the vault's
// own account. TransferIn pulls funds into the vault, TransferOut pays
// them out, Approve grants a spender the right to draw down vault funds.
type TokenLedger interface {
	TransferIn(ctx context.Context, from string, amount decimal.Decimal) error
	TransferOut(ctx context.Context, to string, amount decimal.Decimal) error
	BalanceOf(ctx context.Context, holder string) (decimal.Decimal, error)
	Approve(ctx context.Context, spender string, amount decimal.Decimal) error
	Allowance(ctx context.Context, owner, spender string) (decimal.Decimal, error)
}
