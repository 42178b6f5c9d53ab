package vault

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rollvault/rollvault/internal/domain"
)

// Read surface. Previews compute against live ledger balances with the same
// math the mutating operations use, so callers can quote conversions without
// touching state.

// TotalShares returns the total issued shares.
func (v *Vault) TotalShares() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalShares
}

// SharesOf returns the holder's share balance.
func (v *Vault) SharesOf(holder string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares[holder]
}

// Window returns the current round window.
func (v *Vault) Window() domain.Window {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.window
}

// BufferTime returns the cool-down duration.
func (v *Vault) BufferTime() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bufferTime
}

// LimitPrice returns the option premium floor.
func (v *Vault) LimitPrice() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.limitPrice
}

// Paused reports whether mutating operations are disabled.
func (v *Vault) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// PhaseNow derives the current round phase from the injected clock.
func (v *Vault) PhaseNow() domain.PhaseKind {
	v.mu.Lock()
	defer v.mu.Unlock()
	return domain.Phase(v.clock(), v.window, v.bufferTime)
}

// ExchangeAllowance reads the live primary-asset allowance standing in the
// exchange's favor. It shrinks when the exchange exercises and grows with
// every option sale.
func (v *Vault) ExchangeAllowance(ctx context.Context) (decimal.Decimal, error) {
	return v.primary.Allowance(ctx, v.account, v.exchange)
}

// PrimaryBalance reads the vault's live primary-asset balance.
func (v *Vault) PrimaryBalance(ctx context.Context) (decimal.Decimal, error) {
	return v.primary.BalanceOf(ctx, v.account)
}

// SettlementBalance reads the vault's live settlement-currency balance.
func (v *Vault) SettlementBalance(ctx context.Context) (decimal.Decimal, error) {
	return v.settlement.BalanceOf(ctx, v.account)
}

// PreviewDeposit quotes the shares minted for a deposit of assets.
func (v *Vault) PreviewDeposit(ctx context.Context, assets decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	primary, err := v.primary.BalanceOf(ctx, v.account)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.SharesForDeposit(assets, v.totalShares, primary), nil
}

// PreviewMint quotes the assets required to mint shares.
func (v *Vault) PreviewMint(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	primary, err := v.primary.BalanceOf(ctx, v.account)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.AssetsForMint(shares, v.totalShares, primary), nil
}

// PreviewWithdraw quotes the shares burned to withdraw assets.
func (v *Vault) PreviewWithdraw(ctx context.Context, assets decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	primary, err := v.primary.BalanceOf(ctx, v.account)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.SharesForWithdraw(assets, v.totalShares, primary)
}

// PreviewRedeem quotes the primary assets paid for burning shares.
func (v *Vault) PreviewRedeem(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	primary, err := v.primary.BalanceOf(ctx, v.account)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.AssetsForRedeem(shares, v.totalShares, primary), nil
}

// PreviewSettlementRedeem quotes the settlement-currency portion paid for
// burning shares.
func (v *Vault) PreviewSettlementRedeem(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	settle, err := v.settlement.BalanceOf(ctx, v.account)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.SettlementForRedeem(shares, v.totalShares, settle), nil
}
