// Package roller is the ops-side keeper that triggers vault rollovers once
// a round becomes rollable. The vault core stays passive; all clock-driven
// behavior lives here.
package roller

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rollvault/rollvault/internal/domain"
	"github.com/rollvault/rollvault/internal/services/pricer"
	"github.com/rollvault/rollvault/internal/services/swap"
	"github.com/rollvault/rollvault/internal/services/vault"
)

const (
	defaultPollInterval = time.Minute
	defaultLeadTime     = 10 * time.Minute
	// tolerated shortfall between the quoted and executed swap output
	slippagePercent = 1
)

// Roller polls the vault phase and rolls the round forward when allowed.
type Roller struct {
	vault       *vault.Vault
	executor    swap.Executor
	pricer      pricer.Pricer
	pair        domain.Pair
	caller      string
	roundLength time.Duration
	leadTime    time.Duration
	interval    time.Duration
	logger      *zap.Logger
}

// New creates a roller acting as caller (normally the owner authority).
func New(v *vault.Vault, executor swap.Executor, p pricer.Pricer, pair domain.Pair, caller string, roundLength time.Duration, logger *zap.Logger) (*Roller, error) {
	if v == nil {
		return nil, errors.New("vault is required")
	}
	if executor == nil {
		return nil, errors.New("swap executor is required")
	}
	if p == nil {
		return nil, errors.New("pricer is required")
	}
	if roundLength <= 0 {
		return nil, errors.New("round length must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{
		vault:       v,
		executor:    executor,
		pricer:      p,
		pair:        pair,
		caller:      caller,
		roundLength: roundLength,
		leadTime:    defaultLeadTime,
		interval:    defaultPollInterval,
		logger:      logger,
	}, nil
}

// Run polls until ctx is cancelled, rolling whenever the vault is rollable.
func (r *Roller) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("roller started",
		zap.String("pair", r.pair.String()),
		zap.Duration("round_length", r.roundLength),
		zap.Duration("poll_interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("context done, stopping roller")
			return ctx.Err()
		case <-ticker.C:
			if r.vault.PhaseNow() != domain.PhaseRollable {
				continue
			}
			if err := r.rollOnce(ctx); err != nil {
				r.logger.Error("rollover attempt failed", zap.Error(err))
			}
		}
	}
}

// rollOnce quotes a minimum output from the reference price and advances the
// round. A failed swap leaves the window untouched for the next attempt.
func (r *Roller) rollOnce(ctx context.Context) error {
	minOut, err := r.quoteMinOut(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	newStart := now.Add(r.leadTime)
	newEnd := newStart.Add(r.roundLength)

	if err := r.vault.RollOptionsVault(ctx, r.caller, newStart, newEnd, r.executor, minOut); err != nil {
		return err
	}

	r.logger.Info("round rolled forward",
		zap.Time("new_start", newStart),
		zap.Time("new_end", newEnd),
		zap.String("min_out", minOut.String()))
	return nil
}

func (r *Roller) quoteMinOut(ctx context.Context) (decimal.Decimal, error) {
	settle, err := r.vault.SettlementBalance(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read settlement balance")
	}
	if settle.IsZero() {
		// nothing to swap; the vault still requires a non-zero minimum
		return decimal.NewFromInt(1), nil
	}

	price, err := r.pricer.GetPrice(ctx, r.pair)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch reference price")
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.New("reference price must be positive")
	}

	expected := settle.Div(price)
	haircut := decimal.NewFromInt(100 - slippagePercent).Div(decimal.NewFromInt(100))
	minOut := expected.Mul(haircut).Floor()
	if minOut.IsZero() {
		minOut = decimal.NewFromInt(1)
	}
	return minOut, nil
}
