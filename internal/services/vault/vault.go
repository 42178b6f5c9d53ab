// Package vault implements the covered-call vault core: the round state
// machine, two-balance share accounting, option premium collection and the
// rollover path. Every operation is serialized and atomic; a failure aborts
// the call with no partial state change.
package vault

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rollvault/rollvault/internal/domain"
	"github.com/rollvault/rollvault/internal/ledger"
	"github.com/rollvault/rollvault/internal/services/swap"
)

// EventSink receives audit events after every state change. Sinks observe,
// they never participate in control flow.
type EventSink interface {
	Record(event domain.Event)
}

// Config fixes the vault's identities and initial round parameters at
// construction. Authorities are injected here, never reassigned afterwards.
type Config struct {
	PrimaryToken    string
	SettlementToken string
	Account         string // vault's own ledger account
	Owner           string
	Exchange        string
	Window          domain.Window
	BufferTime      time.Duration
	LimitPrice      decimal.Decimal
	MigrationDelay  time.Duration
	// RestrictedRollover keeps rollover owner-only. Deployments that want an
	// open, keeper-driven rollover disable it explicitly.
	RestrictedRollover bool
}

// Vault pools the primary asset from depositors, collects option premiums
// in the settlement currency and rolls proceeds into the next round.
type Vault struct {
	mu sync.Mutex

	primary    ledger.TokenLedger
	settlement ledger.TokenLedger
	orch       *swap.Orchestrator

	account  string
	owner    string
	exchange string

	window             domain.Window
	bufferTime         time.Duration
	limitPrice         decimal.Decimal
	paused             bool
	restrictedRollover bool

	totalShares     decimal.Decimal
	shares          map[string]decimal.Decimal
	shareAllowances map[string]map[string]decimal.Decimal

	migrationDelay   time.Duration
	migrationTarget  string
	migrateableAfter time.Time

	clock  func() time.Time
	logger *zap.Logger
	sink   EventSink
}

// Option configures optional vault collaborators.
type Option func(*Vault)

// WithClock injects the time source. Tests use it to walk the round phases
// deterministically.
func WithClock(clock func() time.Time) Option {
	return func(v *Vault) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithLogger injects the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Vault) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithEventSink injects the audit event sink.
func WithEventSink(sink EventSink) Option {
	return func(v *Vault) {
		v.sink = sink
	}
}

// New validates the configuration and constructs the vault.
func New(cfg Config, primary, settlement ledger.TokenLedger, orch *swap.Orchestrator, opts ...Option) (*Vault, error) {
	if primary == nil || settlement == nil {
		return nil, errors.New("both token ledgers are required")
	}
	if orch == nil {
		return nil, errors.New("swap orchestrator is required")
	}
	if cfg.Account == "" || cfg.Owner == "" || cfg.Exchange == "" {
		return nil, errors.New("vault, owner and exchange accounts are required")
	}
	if !cfg.Window.Start.Before(cfg.Window.End) {
		return nil, errors.New("round start must be before round end")
	}
	if cfg.BufferTime < 0 {
		return nil, errors.New("buffer time must not be negative")
	}
	if cfg.LimitPrice.IsNegative() {
		return nil, errors.New("limit price must not be negative")
	}

	v := &Vault{
		primary:            primary,
		settlement:         settlement,
		orch:               orch,
		account:            cfg.Account,
		owner:              cfg.Owner,
		exchange:           cfg.Exchange,
		window:             cfg.Window,
		bufferTime:         cfg.BufferTime,
		limitPrice:         cfg.LimitPrice,
		restrictedRollover: cfg.RestrictedRollover,
		totalShares:        decimal.Zero,
		shares:             make(map[string]decimal.Decimal),
		shareAllowances:    make(map[string]map[string]decimal.Decimal),
		migrationDelay:     cfg.MigrationDelay,
		clock:              time.Now,
		logger:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Deposit pulls primary assets from the caller and mints shares to the
// receiver. Allowed only before the round starts.
func (v *Vault) Deposit(ctx context.Context, caller string, assets decimal.Decimal, receiver string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return decimal.Zero, domain.ErrPaused
	}
	now := v.clock()
	if domain.Phase(now, v.window, v.bufferTime) != domain.PhasePreRound {
		return decimal.Zero, domain.ErrRoundAlreadyStarted
	}
	if assets.IsNegative() {
		return decimal.Zero, domain.ErrInvalidParams
	}
	if assets.IsZero() {
		return decimal.Zero, domain.ErrZeroAmount
	}

	primaryPre, settlePre, err := v.balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	minted := domain.SharesForDeposit(assets, v.totalShares, primaryPre)
	if minted.IsZero() {
		return decimal.Zero, domain.ErrZeroAmount
	}

	if err := v.primary.TransferIn(ctx, caller, assets); err != nil {
		return decimal.Zero, errors.Wrap(err, "pull deposit")
	}

	v.totalShares = v.totalShares.Add(minted)
	v.shares[receiver] = v.shares[receiver].Add(minted)

	v.emit(domain.Event{
		Kind:        domain.EventDeposit,
		Account:     caller,
		Receiver:    receiver,
		Assets:      assets.String(),
		Shares:      minted.String(),
		PrimaryPre:  primaryPre.String(),
		PrimaryPost: primaryPre.Add(assets).String(),
		SettlePre:   settlePre.String(),
		SettlePost:  settlePre.String(),
	})
	v.logger.Info("deposit",
		zap.String("caller", caller),
		zap.String("receiver", receiver),
		zap.String("assets", assets.String()),
		zap.String("shares", minted.String()))
	return minted, nil
}

// Mint is the shares-denominated deposit: it pulls however many primary
// assets are needed to mint exactly the requested shares.
func (v *Vault) Mint(ctx context.Context, caller string, shares decimal.Decimal, receiver string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return decimal.Zero, domain.ErrPaused
	}
	now := v.clock()
	if domain.Phase(now, v.window, v.bufferTime) != domain.PhasePreRound {
		return decimal.Zero, domain.ErrRoundAlreadyStarted
	}
	if shares.IsNegative() {
		return decimal.Zero, domain.ErrInvalidParams
	}
	if shares.IsZero() {
		return decimal.Zero, domain.ErrZeroAmount
	}

	primaryPre, settlePre, err := v.balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	assets := domain.AssetsForMint(shares, v.totalShares, primaryPre)
	if assets.IsZero() {
		return decimal.Zero, domain.ErrZeroAmount
	}

	if err := v.primary.TransferIn(ctx, caller, assets); err != nil {
		return decimal.Zero, errors.Wrap(err, "pull mint collateral")
	}

	v.totalShares = v.totalShares.Add(shares)
	v.shares[receiver] = v.shares[receiver].Add(shares)

	v.emit(domain.Event{
		Kind:        domain.EventDeposit,
		Account:     caller,
		Receiver:    receiver,
		Assets:      assets.String(),
		Shares:      shares.String(),
		PrimaryPre:  primaryPre.String(),
		PrimaryPost: primaryPre.Add(assets).String(),
		SettlePre:   settlePre.String(),
		SettlePost:  settlePre.String(),
	})
	v.logger.Info("mint",
		zap.String("caller", caller),
		zap.String("receiver", receiver),
		zap.String("assets", assets.String()),
		zap.String("shares", shares.String()))
	return assets, nil
}

// Withdraw burns shares from owner and pays out exactly assets of the
// primary token plus the proportional settlement share. Allowed once the
// round has ended.
func (v *Vault) Withdraw(ctx context.Context, caller string, assets decimal.Decimal, receiver, owner string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return decimal.Zero, domain.ErrPaused
	}
	now := v.clock()
	if !now.After(v.window.End) {
		return decimal.Zero, domain.ErrRoundNotEnded
	}
	if assets.IsNegative() {
		return decimal.Zero, domain.ErrInvalidParams
	}
	if assets.IsZero() {
		return decimal.Zero, domain.ErrZeroAmount
	}

	primaryPre, settlePre, err := v.balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	burned, err := domain.SharesForWithdraw(assets, v.totalShares, primaryPre)
	if err != nil {
		return decimal.Zero, errors.Wrap(domain.ErrInvalidParams, err.Error())
	}
	if burned.IsZero() {
		return decimal.Zero, domain.ErrZeroAmount
	}

	settlePortion := domain.SettlementForRedeem(burned, v.totalShares, settlePre)

	if err := v.payOut(ctx, caller, owner, receiver, burned, assets, settlePortion); err != nil {
		return decimal.Zero, err
	}

	v.emit(domain.Event{
		Kind:        domain.EventWithdraw,
		Account:     owner,
		Receiver:    receiver,
		Assets:      assets.String(),
		Shares:      burned.String(),
		Settlement:  settlePortion.String(),
		PrimaryPre:  primaryPre.String(),
		PrimaryPost: primaryPre.Sub(assets).String(),
		SettlePre:   settlePre.String(),
		SettlePost:  settlePre.Sub(settlePortion).String(),
	})
	v.logger.Info("withdraw",
		zap.String("caller", caller),
		zap.String("owner", owner),
		zap.String("receiver", receiver),
		zap.String("assets", assets.String()),
		zap.String("settlement", settlePortion.String()),
		zap.String("shares", burned.String()))
	return burned, nil
}

// Redeem burns exactly shares from owner and pays the proportional primary
// and settlement amounts. Allowed once the round has ended.
func (v *Vault) Redeem(ctx context.Context, caller string, shares decimal.Decimal, receiver, owner string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return decimal.Zero, domain.ErrPaused
	}
	now := v.clock()
	if !now.After(v.window.End) {
		return decimal.Zero, domain.ErrRoundNotEnded
	}
	if shares.IsNegative() {
		return decimal.Zero, domain.ErrInvalidParams
	}
	if shares.IsZero() {
		return decimal.Zero, domain.ErrZeroAmount
	}

	primaryPre, settlePre, err := v.balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	assets := domain.AssetsForRedeem(shares, v.totalShares, primaryPre)
	settlePortion := domain.SettlementForRedeem(shares, v.totalShares, settlePre)
	if assets.IsZero() && settlePortion.IsZero() {
		return decimal.Zero, domain.ErrZeroAmount
	}

	if err := v.payOut(ctx, caller, owner, receiver, shares, assets, settlePortion); err != nil {
		return decimal.Zero, err
	}

	v.emit(domain.Event{
		Kind:        domain.EventWithdraw,
		Account:     owner,
		Receiver:    receiver,
		Assets:      assets.String(),
		Shares:      shares.String(),
		Settlement:  settlePortion.String(),
		PrimaryPre:  primaryPre.String(),
		PrimaryPost: primaryPre.Sub(assets).String(),
		SettlePre:   settlePre.String(),
		SettlePost:  settlePre.Sub(settlePortion).String(),
	})
	v.logger.Info("redeem",
		zap.String("caller", caller),
		zap.String("owner", owner),
		zap.String("receiver", receiver),
		zap.String("assets", assets.String()),
		zap.String("settlement", settlePortion.String()),
		zap.String("shares", shares.String()))
	return assets, nil
}

// payOut validates share ownership and allowance, moves both token legs and
// then commits the share burn. Ledger legs run before any internal mutation
// so a failed transfer leaves the vault untouched.
func (v *Vault) payOut(ctx context.Context, caller, owner, receiver string, burned, assets, settlePortion decimal.Decimal) error {
	held := v.shares[owner]
	if held.LessThan(burned) {
		return domain.ErrInsufficientShares
	}
	if caller != owner {
		allowed := v.shareAllowance(owner, caller)
		if allowed.LessThan(burned) {
			return domain.ErrAllowanceExceeded
		}
	}

	if assets.IsPositive() {
		if err := v.primary.TransferOut(ctx, receiver, assets); err != nil {
			return errors.Wrap(err, "pay primary assets")
		}
	}
	if settlePortion.IsPositive() {
		if err := v.settlement.TransferOut(ctx, receiver, settlePortion); err != nil {
			return errors.Wrap(err, "pay settlement currency")
		}
	}

	if caller != owner {
		v.setShareAllowance(owner, caller, v.shareAllowance(owner, caller).Sub(burned))
	}
	v.shares[owner] = held.Sub(burned)
	v.totalShares = v.totalShares.Sub(burned)
	return nil
}

// BuyOption collects an option premium from the exchange and grows its
// standing allowance of the primary asset by the covered amount. Blocked
// only during the cool-down tail after a round ends.
func (v *Vault) BuyOption(ctx context.Context, caller string, assetAmount, price decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return domain.ErrPaused
	}
	if caller != v.exchange {
		return domain.ErrUnauthorized
	}
	now := v.clock()
	if domain.Phase(now, v.window, v.bufferTime) == domain.PhaseSettling {
		return domain.ErrBufferTimeNotEnded
	}
	if assetAmount.IsNegative() || price.IsNegative() {
		return domain.ErrInvalidParams
	}
	if price.LessThan(v.limitPrice) {
		return domain.ErrPriceTooLow
	}
	if assetAmount.IsZero() {
		return domain.ErrZeroAmount
	}

	premium := assetAmount.Mul(price)
	if premium.IsZero() {
		return domain.ErrZeroAmount
	}

	settlePre, err := v.settlement.BalanceOf(ctx, v.account)
	if err != nil {
		return errors.Wrap(err, "read settlement balance")
	}

	if err := v.settlement.TransferIn(ctx, caller, premium); err != nil {
		return errors.Wrap(err, "collect premium")
	}

	// grow from the live ledger allowance, not the last approved total;
	// the exchange may have drawn it down since
	standing, err := v.primary.Allowance(ctx, v.account, v.exchange)
	if err != nil {
		return errors.Wrap(err, "read exchange allowance")
	}
	grown := standing.Add(assetAmount)
	if err := v.primary.Approve(ctx, v.exchange, grown); err != nil {
		return errors.Wrap(err, "grow exchange allowance")
	}

	v.emit(domain.Event{
		Kind:       domain.EventOptionPurchase,
		Account:    caller,
		Assets:     assetAmount.String(),
		Price:      price.String(),
		Settlement: premium.String(),
		SettlePre:  settlePre.String(),
		SettlePost: settlePre.Add(premium).String(),
		Detail:     "allowance " + grown.String(),
	})
	v.logger.Info("option purchased",
		zap.String("exchange", caller),
		zap.String("amount", assetAmount.String()),
		zap.String("price", price.String()),
		zap.String("premium", premium.String()),
		zap.String("standing_allowance", grown.String()))
	return nil
}

// RollOptionsVault converts the settlement balance back into the primary
// asset and advances the round window. The window moves only if the swap
// fully drained the settlement balance.
func (v *Vault) RollOptionsVault(ctx context.Context, caller string, newStart, newEnd time.Time, exec swap.Executor, minOut decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return domain.ErrPaused
	}
	if v.restrictedRollover && caller != v.owner {
		return domain.ErrUnauthorized
	}
	now := v.clock()
	if domain.Phase(now, v.window, v.bufferTime) != domain.PhaseRollable {
		return domain.ErrBufferTimeNotEnded
	}
	if exec == nil || minOut.LessThanOrEqual(decimal.Zero) || !newStart.Before(newEnd) || !newStart.After(now) {
		return domain.ErrInvalidParams
	}

	primaryPre, settlePre, err := v.balances(ctx)
	if err != nil {
		return err
	}

	if settlePre.IsPositive() {
		if err := v.orch.Drain(ctx, exec, minOut); err != nil {
			return err
		}
	}

	primaryPost, err := v.primary.BalanceOf(ctx, v.account)
	if err != nil {
		return errors.Wrap(err, "read post-swap primary balance")
	}

	prev := v.window
	v.window = domain.Window{Start: newStart, End: newEnd}

	v.emit(domain.Event{
		Kind:        domain.EventRollover,
		Account:     caller,
		PrimaryPre:  primaryPre.String(),
		PrimaryPost: primaryPost.String(),
		SettlePre:   settlePre.String(),
		SettlePost:  "0",
		WindowStart: newStart.Unix(),
		WindowEnd:   newEnd.Unix(),
		Detail:      "previous " + prev.String(),
	})
	v.logger.Info("round rolled",
		zap.String("caller", caller),
		zap.Time("new_start", newStart),
		zap.Time("new_end", newEnd),
		zap.String("settlement_converted", settlePre.String()),
		zap.String("primary_balance", primaryPost.String()))
	return nil
}

// ApproveShares lets spender withdraw or redeem up to amount of the
// caller's shares.
func (v *Vault) ApproveShares(caller, spender string, amount decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return domain.ErrPaused
	}
	if amount.IsNegative() {
		return domain.ErrInvalidParams
	}
	v.setShareAllowance(caller, spender, amount)
	return nil
}

// SharesAllowance reports how many of owner's shares spender may burn.
func (v *Vault) SharesAllowance(owner, spender string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shareAllowance(owner, spender)
}

func (v *Vault) shareAllowance(owner, spender string) decimal.Decimal {
	if spenders, ok := v.shareAllowances[owner]; ok {
		return spenders[spender]
	}
	return decimal.Zero
}

func (v *Vault) setShareAllowance(owner, spender string, amount decimal.Decimal) {
	spenders, ok := v.shareAllowances[owner]
	if !ok {
		spenders = make(map[string]decimal.Decimal)
		v.shareAllowances[owner] = spenders
	}
	spenders[spender] = amount
}

func (v *Vault) balances(ctx context.Context) (primary, settlement decimal.Decimal, err error) {
	primary, err = v.primary.BalanceOf(ctx, v.account)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "read primary balance")
	}
	settlement, err = v.settlement.BalanceOf(ctx, v.account)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "read settlement balance")
	}
	return primary, settlement, nil
}

func (v *Vault) emit(event domain.Event) {
	event.ID = uuid.NewString()
	event.Timestamp = v.clock()
	if event.WindowStart == 0 && event.WindowEnd == 0 {
		event.WindowStart = v.window.Start.Unix()
		event.WindowEnd = v.window.End.Unix()
	}
	if v.sink != nil {
		v.sink.Record(event)
	}
}
