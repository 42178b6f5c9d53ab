// Package swap drives the rollover conversion of the vault's settlement
// balance back into the primary asset through an external, untrusted
// executor.
package swap

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rollvault/rollvault/internal/domain"
	"github.com/rollvault/rollvault/internal/ledger"
)

const defaultSwapDeadline = 2 * time.Minute

// Executor performs an exact-input swap. Its return value is advisory only:
// the orchestrator trusts the post-swap balance, never the reported output.
type Executor interface {
	// Spender is the account granted settlement allowance for the swap.
	Spender() string
	SwapExactInput(ctx context.Context, tokenIn, tokenOut string, amountIn, minOut decimal.Decimal, recipient string, deadline time.Time) (decimal.Decimal, error)
}

// Orchestrator converts the vault's entire settlement balance into the
// primary asset and verifies the balance fully drained afterwards.
type Orchestrator struct {
	settlement   ledger.TokenLedger
	primaryToken string
	settleToken  string
	vaultAccount string
	logger       *zap.Logger
}

// NewOrchestrator builds the orchestrator over the vault's settlement ledger.
func NewOrchestrator(settlement ledger.TokenLedger, settleToken, primaryToken, vaultAccount string, logger *zap.Logger) (*Orchestrator, error) {
	if settlement == nil {
		return nil, errors.New("settlement ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		settlement:   settlement,
		primaryToken: primaryToken,
		settleToken:  settleToken,
		vaultAccount: vaultAccount,
		logger:       logger,
	}, nil
}

// Drain swaps the full settlement balance for the primary asset with the
// given minimum output. Success is judged solely by the post-condition that
// the settlement balance reads zero; any residual fails the whole call.
func (o *Orchestrator) Drain(ctx context.Context, exec Executor, minOut decimal.Decimal) error {
	if exec == nil {
		return domain.ErrInvalidParams
	}

	balance, err := o.settlement.BalanceOf(ctx, o.vaultAccount)
	if err != nil {
		return errors.Wrap(err, "read settlement balance")
	}
	if balance.IsZero() {
		return nil
	}

	if err := o.settlement.Approve(ctx, exec.Spender(), balance); err != nil {
		return errors.Wrap(err, "approve swap executor")
	}

	deadline := time.Now().Add(defaultSwapDeadline)
	reported, err := exec.SwapExactInput(ctx, o.settleToken, o.primaryToken, balance, minOut, o.vaultAccount, deadline)
	if err != nil {
		return errors.Wrap(err, "swap executor call")
	}

	residual, err := o.settlement.BalanceOf(ctx, o.vaultAccount)
	if err != nil {
		return errors.Wrap(err, "read post-swap settlement balance")
	}
	if !residual.IsZero() {
		return errors.Wrapf(domain.ErrSwapFailed, "residual %s %s after swap", residual.String(), o.settleToken)
	}

	o.logger.Info("settlement balance drained",
		zap.String("amount_in", balance.String()),
		zap.String("min_out", minOut.String()),
		zap.String("reported_out", reported.String()))
	return nil
}
