package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Share math over two independently fluctuating balances sharing one share
// ledger. All amounts are integral smallest units; divisions round to whole
// units with the direction chosen so rounding error always accrues to the
// vault, never to the leaving party.

// floorMulDiv computes floor(a * b / c).
func floorMulDiv(a, b, c decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(b).QuoRem(c, 0)
	return q
}

// ceilMulDiv computes ceil(a * b / c).
func ceilMulDiv(a, b, c decimal.Decimal) decimal.Decimal {
	q, r := a.Mul(b).QuoRem(c, 0)
	if !r.IsZero() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}

// SharesForDeposit returns the shares minted for depositing assets of the
// primary token. The first deposit mints shares 1:1.
func SharesForDeposit(assets, totalShares, primaryBalance decimal.Decimal) decimal.Decimal {
	if totalShares.IsZero() {
		return assets
	}
	if primaryBalance.IsZero() {
		// shares outstanding with no backing balance
		return decimal.Zero
	}
	return floorMulDiv(assets, totalShares, primaryBalance)
}

// AssetsForMint returns the primary assets required to mint exactly the
// given shares, rounded up so a mint never under-collateralizes the vault.
func AssetsForMint(shares, totalShares, primaryBalance decimal.Decimal) decimal.Decimal {
	if totalShares.IsZero() {
		return shares
	}
	return ceilMulDiv(shares, primaryBalance, totalShares)
}

// SharesForWithdraw returns the shares burned to withdraw exactly the given
// primary assets, rounded up against the withdrawing party.
func SharesForWithdraw(assets, totalShares, primaryBalance decimal.Decimal) (decimal.Decimal, error) {
	if primaryBalance.IsZero() {
		return decimal.Zero, errors.New("vault holds no primary assets")
	}
	return ceilMulDiv(assets, totalShares, primaryBalance), nil
}

// AssetsForRedeem returns the primary assets paid for burning the given
// shares, rounded down against the redeeming party.
func AssetsForRedeem(shares, totalShares, primaryBalance decimal.Decimal) decimal.Decimal {
	if totalShares.IsZero() {
		return decimal.Zero
	}
	return floorMulDiv(shares, primaryBalance, totalShares)
}

// SettlementForRedeem returns the settlement-currency portion paid for
// burning the given shares, computed independently of the primary portion.
func SettlementForRedeem(shares, totalShares, settlementBalance decimal.Decimal) decimal.Decimal {
	if totalShares.IsZero() {
		return shares
	}
	return floorMulDiv(shares, settlementBalance, totalShares)
}
