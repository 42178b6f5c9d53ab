package vault

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollvault/rollvault/internal/domain"
	"github.com/rollvault/rollvault/internal/ledger"
	"github.com/rollvault/rollvault/internal/services/swap"
)

const (
	primaryToken    = "ETH"
	settlementToken = "USDC"
	vaultAccount    = "vault"
	ownerAccount    = "owner"
	exchangeAccount = "exchange"
)

type fixture struct {
	mem    *ledger.Memory
	vault  *Vault
	exec   *swap.SimulateExecutor
	now    time.Time
	events []domain.Event
}

func (f *fixture) Record(event domain.Event) {
	f.events = append(f.events, event)
}

func (f *fixture) setNow(unix int64) {
	f.now = time.Unix(unix, 0)
}

// newFixture builds a vault over round [100, 1100] with a 50 second buffer,
// a premium floor of 1 and owner-only rollover.
func newFixture(t *testing.T) *fixture {
	f := &fixture{mem: ledger.NewMemory(), now: time.Unix(0, 0)}

	primary := f.mem.Bind(primaryToken, vaultAccount)
	settlement := f.mem.Bind(settlementToken, vaultAccount)

	orch, err := swap.NewOrchestrator(settlement, settlementToken, primaryToken, vaultAccount, nil)
	require.NoError(t, err, "Failed to create orchestrator")

	f.exec, err = swap.NewSimulateExecutor(f.mem, "swap-venue", decimal.NewFromInt(1))
	require.NoError(t, err, "Failed to create simulate executor")

	f.vault, err = New(Config{
		PrimaryToken:       primaryToken,
		SettlementToken:    settlementToken,
		Account:            vaultAccount,
		Owner:              ownerAccount,
		Exchange:           exchangeAccount,
		Window:             domain.Window{Start: time.Unix(100, 0), End: time.Unix(1100, 0)},
		BufferTime:         50 * time.Second,
		LimitPrice:         decimal.NewFromInt(1),
		MigrationDelay:     100 * time.Second,
		RestrictedRollover: true,
	}, primary, settlement, orch,
		WithClock(func() time.Time { return f.now }),
		WithEventSink(f),
	)
	require.NoError(t, err, "Failed to create vault")
	return f
}

func (f *fixture) fund(t *testing.T, token, account string, amount int64) {
	require.NoError(t, f.mem.Mint(token, account, decimal.NewFromInt(amount)))
}

func TestRoundLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 1000)
	f.fund(t, settlementToken, exchangeAccount, 500)

	// t=50, pre-round: deposit opens the position
	f.setNow(50)
	minted, err := f.vault.Deposit(ctx, "alice", decimal.NewFromInt(1000), "alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(minted), "first deposit mints 1:1")
	assert.True(t, decimal.NewFromInt(1000).Equal(f.vault.TotalShares()))

	// t=150, active: the exchange buys cover on 100 units at price 2
	f.setNow(150)
	err = f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(100), decimal.NewFromInt(2))
	require.NoError(t, err)

	premium, err := f.vault.SettlementBalance(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(premium), "premium is amount times price")
	allowance, err := f.vault.ExchangeAllowance(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(allowance))
	assert.True(t, decimal.NewFromInt(100).Equal(f.mem.Allowance(primaryToken, vaultAccount, exchangeAccount)))

	// deposits are closed once the round started
	_, err = f.vault.Deposit(ctx, "alice", decimal.NewFromInt(1), "alice")
	assert.True(t, errors.Is(err, domain.ErrRoundAlreadyStarted))

	// t=1100, the round's last second: withdrawals still closed
	f.setNow(1100)
	_, err = f.vault.Withdraw(ctx, "alice", decimal.NewFromInt(500), "alice", "alice")
	assert.True(t, errors.Is(err, domain.ErrRoundNotEnded))

	// t=1101, round over: withdraw pays the primary amount plus the
	// proportional settlement share
	f.setNow(1101)
	burned, err := f.vault.Withdraw(ctx, "alice", decimal.NewFromInt(500), "alice", "alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(burned))
	assert.True(t, decimal.NewFromInt(500).Equal(f.mem.BalanceOf(primaryToken, "alice")))
	assert.True(t, decimal.NewFromInt(100).Equal(f.mem.BalanceOf(settlementToken, "alice")), "half the shares take half the premium")
	assert.True(t, decimal.NewFromInt(500).Equal(f.vault.TotalShares()))

	// t=1151, buffer elapsed: rollover converts the premium and moves the window
	f.setNow(1151)
	err = f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(2000, 0), time.Unix(3000, 0), f.exec, decimal.NewFromInt(1))
	require.NoError(t, err)

	settle, err := f.vault.SettlementBalance(ctx)
	require.NoError(t, err)
	assert.True(t, settle.IsZero(), "rollover must fully drain the settlement balance")

	primary, err := f.vault.PrimaryBalance(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(600).Equal(primary), "converted premium lands in the primary balance")

	w := f.vault.Window()
	assert.Equal(t, int64(2000), w.Start.Unix())
	assert.Equal(t, int64(3000), w.End.Unix())
	assert.Equal(t, domain.PhasePreRound, f.vault.PhaseNow(), "the new round has not started yet")

	kinds := make([]domain.EventKind, 0, len(f.events))
	for _, e := range f.events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []domain.EventKind{
		domain.EventDeposit,
		domain.EventOptionPurchase,
		domain.EventWithdraw,
		domain.EventRollover,
	}, kinds)
}

func TestDepositValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 100)
	f.setNow(50)

	_, err := f.vault.Deposit(ctx, "alice", decimal.Zero, "alice")
	assert.True(t, errors.Is(err, domain.ErrZeroAmount))

	_, err = f.vault.Deposit(ctx, "alice", decimal.NewFromInt(-5), "alice")
	assert.True(t, errors.Is(err, domain.ErrInvalidParams))

	// unfunded caller: the ledger pull fails and nothing is minted
	_, err = f.vault.Deposit(ctx, "bob", decimal.NewFromInt(10), "bob")
	assert.Error(t, err)
	assert.True(t, f.vault.TotalShares().IsZero())
}

func TestMintPullsExactCollateral(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 100)
	f.fund(t, primaryToken, "bob", 100)
	f.setNow(50)

	// seed a share price of 3 assets per 2 shares
	_, err := f.vault.Deposit(ctx, "alice", decimal.NewFromInt(2), "alice")
	require.NoError(t, err)
	require.NoError(t, f.mem.Mint(primaryToken, vaultAccount, decimal.NewFromInt(1)))

	// minting 1 share costs ceil(1*3/2) = 2 assets
	assets, err := f.vault.Mint(ctx, "bob", decimal.NewFromInt(1), "bob")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2).Equal(assets))
	assert.True(t, decimal.NewFromInt(1).Equal(f.vault.SharesOf("bob")))
}

func TestBuyOptionGating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, settlementToken, exchangeAccount, 1000)

	f.setNow(150)

	err := f.vault.BuyOption(ctx, "mallory", decimal.NewFromInt(10), decimal.NewFromInt(2))
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	err = f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(10), decimal.NewFromFloat(0.5))
	assert.True(t, errors.Is(err, domain.ErrPriceTooLow))

	err = f.vault.BuyOption(ctx, exchangeAccount, decimal.Zero, decimal.NewFromInt(2))
	assert.True(t, errors.Is(err, domain.ErrZeroAmount))

	// settling tail blocks option sales
	f.setNow(1120)
	err = f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(10), decimal.NewFromInt(2))
	assert.True(t, errors.Is(err, domain.ErrBufferTimeNotEnded))

	// pre-round and rollable phases allow them
	f.setNow(50)
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(10), decimal.NewFromInt(2)))
	f.setNow(1151)
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(10), decimal.NewFromInt(2)))
}

func TestBuyOptionAllowanceGrowsAdditively(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, settlementToken, exchangeAccount, 1000)
	f.setNow(150)

	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(30), decimal.NewFromInt(2)))
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(20), decimal.NewFromInt(2)))

	allowance, err := f.vault.ExchangeAllowance(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(allowance), "each sale adds to the standing allowance")
	assert.True(t, decimal.NewFromInt(50).Equal(f.mem.Allowance(primaryToken, vaultAccount, exchangeAccount)))
}

func TestExchangeExercisesAllowance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 100)
	f.fund(t, settlementToken, exchangeAccount, 1000)

	f.setNow(50)
	_, err := f.vault.Deposit(ctx, "alice", decimal.NewFromInt(100), "alice")
	require.NoError(t, err)

	f.setNow(150)
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(40), decimal.NewFromInt(2)))

	// the exchange settles in the money by pulling covered assets directly
	err = f.mem.TransferFrom(primaryToken, exchangeAccount, vaultAccount, exchangeAccount, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(f.mem.BalanceOf(primaryToken, vaultAccount)))

	err = f.mem.TransferFrom(primaryToken, exchangeAccount, vaultAccount, exchangeAccount, decimal.NewFromInt(1))
	assert.Error(t, err, "exercise beyond the granted allowance must fail")
}

func TestBuyOptionDoesNotRegrantExercisedCover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 1000)
	f.fund(t, settlementToken, exchangeAccount, 1000)

	f.setNow(50)
	_, err := f.vault.Deposit(ctx, "alice", decimal.NewFromInt(1000), "alice")
	require.NoError(t, err)

	f.setNow(150)
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(40), decimal.NewFromInt(2)))

	// the exchange exercises the full cover, draining the ledger allowance
	require.NoError(t, f.mem.TransferFrom(primaryToken, exchangeAccount, vaultAccount, exchangeAccount, decimal.NewFromInt(40)))
	assert.True(t, f.mem.Allowance(primaryToken, vaultAccount, exchangeAccount).IsZero())

	// the next sale grows from the live allowance, not the old total
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(10), decimal.NewFromInt(2)))
	allowance, err := f.vault.ExchangeAllowance(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(allowance), "exercised cover must stay spent")

	// a partial exercise leaves the remainder as the base
	require.NoError(t, f.mem.TransferFrom(primaryToken, exchangeAccount, vaultAccount, exchangeAccount, decimal.NewFromInt(4)))
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(5), decimal.NewFromInt(2)))
	allowance, err = f.vault.ExchangeAllowance(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(11).Equal(allowance))
}

func TestWithdrawOnBehalf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 100)

	f.setNow(50)
	_, err := f.vault.Deposit(ctx, "alice", decimal.NewFromInt(100), "alice")
	require.NoError(t, err)

	f.setNow(1200)

	// no approval yet
	_, err = f.vault.Withdraw(ctx, "bob", decimal.NewFromInt(10), "bob", "alice")
	assert.True(t, errors.Is(err, domain.ErrAllowanceExceeded))

	require.NoError(t, f.vault.ApproveShares("alice", "bob", decimal.NewFromInt(25)))
	assert.True(t, decimal.NewFromInt(25).Equal(f.vault.SharesAllowance("alice", "bob")))

	burned, err := f.vault.Withdraw(ctx, "bob", decimal.NewFromInt(10), "bob", "alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(burned))
	assert.True(t, decimal.NewFromInt(15).Equal(f.vault.SharesAllowance("alice", "bob")), "allowance draws down by the burned shares")
	assert.True(t, decimal.NewFromInt(10).Equal(f.mem.BalanceOf(primaryToken, "bob")))

	_, err = f.vault.Withdraw(ctx, "bob", decimal.NewFromInt(20), "bob", "alice")
	assert.True(t, errors.Is(err, domain.ErrAllowanceExceeded))
}

func TestRedeemMoreThanHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 100)

	f.setNow(50)
	_, err := f.vault.Deposit(ctx, "alice", decimal.NewFromInt(100), "alice")
	require.NoError(t, err)

	f.setNow(1200)
	_, err = f.vault.Redeem(ctx, "alice", decimal.NewFromInt(101), "alice", "alice")
	assert.True(t, errors.Is(err, domain.ErrInsufficientShares))
	assert.True(t, decimal.NewFromInt(100).Equal(f.vault.TotalShares()), "failed redeem must not burn")
}

func TestRolloverAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setNow(1151)

	err := f.vault.RollOptionsVault(ctx, "mallory", time.Unix(2000, 0), time.Unix(3000, 0), f.exec, decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	require.NoError(t, f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(2000, 0), time.Unix(3000, 0), f.exec, decimal.NewFromInt(1)))
}

func TestRolloverPhaseAndParams(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// still settling
	f.setNow(1120)
	err := f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(2000, 0), time.Unix(3000, 0), f.exec, decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, domain.ErrBufferTimeNotEnded))

	f.setNow(1151)

	// inverted window
	err = f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(3000, 0), time.Unix(2000, 0), f.exec, decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, domain.ErrInvalidParams))

	// window starting in the past
	err = f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(1000, 0), time.Unix(3000, 0), f.exec, decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, domain.ErrInvalidParams))

	// zero minimum output
	err = f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(2000, 0), time.Unix(3000, 0), f.exec, decimal.Zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidParams))

	// missing executor
	err = f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(2000, 0), time.Unix(3000, 0), nil, decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, domain.ErrInvalidParams))
}

func TestRolloverPartialSwapLeavesWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, settlementToken, exchangeAccount, 1000)

	f.setNow(150)
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(100), decimal.NewFromInt(2)))

	f.setNow(1151)
	f.exec.SetFillFraction(decimal.NewFromFloat(0.5))

	err := f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(2000, 0), time.Unix(3000, 0), f.exec, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSwapFailed))

	w := f.vault.Window()
	assert.Equal(t, int64(100), w.Start.Unix(), "failed rollover must not move the window")
	assert.Equal(t, int64(1100), w.End.Unix())
}

func TestOpenRollover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mem := ledger.NewMemory()
	orch, err := swap.NewOrchestrator(mem.Bind(settlementToken, vaultAccount), settlementToken, primaryToken, vaultAccount, nil)
	require.NoError(t, err)
	exec, err := swap.NewSimulateExecutor(mem, "swap-venue", decimal.NewFromInt(1))
	require.NoError(t, err)

	open, err := New(Config{
		PrimaryToken:       primaryToken,
		SettlementToken:    settlementToken,
		Account:            vaultAccount,
		Owner:              ownerAccount,
		Exchange:           exchangeAccount,
		Window:             domain.Window{Start: time.Unix(100, 0), End: time.Unix(1100, 0)},
		BufferTime:         50 * time.Second,
		LimitPrice:         decimal.Zero,
		RestrictedRollover: false,
	}, mem.Bind(primaryToken, vaultAccount), mem.Bind(settlementToken, vaultAccount), orch,
		WithClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)

	f.setNow(1151)
	require.NoError(t, open.RollOptionsVault(ctx, "anyone", time.Unix(2000, 0), time.Unix(3000, 0), exec, decimal.NewFromInt(1)),
		"open rollover accepts any caller")
}

func TestPauseBlocksEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 100)
	f.fund(t, settlementToken, exchangeAccount, 100)

	require.True(t, errors.Is(f.vault.Pause("mallory"), domain.ErrUnauthorized))
	require.NoError(t, f.vault.Pause(ownerAccount))
	assert.True(t, f.vault.Paused())
	assert.True(t, errors.Is(f.vault.Pause(ownerAccount), domain.ErrPaused))

	f.setNow(50)
	_, err := f.vault.Deposit(ctx, "alice", decimal.NewFromInt(10), "alice")
	assert.True(t, errors.Is(err, domain.ErrPaused))
	_, err = f.vault.Mint(ctx, "alice", decimal.NewFromInt(10), "alice")
	assert.True(t, errors.Is(err, domain.ErrPaused))

	f.setNow(150)
	assert.True(t, errors.Is(f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(1), decimal.NewFromInt(2)), domain.ErrPaused))

	f.setNow(1200)
	_, err = f.vault.Withdraw(ctx, "alice", decimal.NewFromInt(1), "alice", "alice")
	assert.True(t, errors.Is(err, domain.ErrPaused))
	_, err = f.vault.Redeem(ctx, "alice", decimal.NewFromInt(1), "alice", "alice")
	assert.True(t, errors.Is(err, domain.ErrPaused))
	assert.True(t, errors.Is(f.vault.RollOptionsVault(ctx, ownerAccount, time.Unix(2000, 0), time.Unix(3000, 0), f.exec, decimal.NewFromInt(1)), domain.ErrPaused))
	assert.True(t, errors.Is(f.vault.SetLimitPrice(ownerAccount, decimal.NewFromInt(2)), domain.ErrPaused))
	assert.True(t, errors.Is(f.vault.SetBufferTime(ownerAccount, time.Minute), domain.ErrPaused))
	assert.True(t, errors.Is(f.vault.ScheduleMigration(ownerAccount, "target"), domain.ErrPaused))
	assert.True(t, errors.Is(f.vault.ApproveShares("alice", "bob", decimal.NewFromInt(1)), domain.ErrPaused))

	// unpause is the one exempt mutating call
	require.True(t, errors.Is(f.vault.Unpause("mallory"), domain.ErrUnauthorized))
	require.NoError(t, f.vault.Unpause(ownerAccount))
	assert.False(t, f.vault.Paused())
	assert.True(t, errors.Is(f.vault.Unpause(ownerAccount), domain.ErrInvalidParams))

	_, err = f.vault.Deposit(ctx, "alice", decimal.NewFromInt(10), "alice")
	assert.True(t, errors.Is(err, domain.ErrRoundAlreadyStarted), "operations resume their normal gating after unpause")
}

func TestAdminSetters(t *testing.T) {
	f := newFixture(t)

	assert.True(t, errors.Is(f.vault.SetLimitPrice("mallory", decimal.NewFromInt(3)), domain.ErrUnauthorized))
	assert.True(t, errors.Is(f.vault.SetLimitPrice(ownerAccount, decimal.NewFromInt(-1)), domain.ErrInvalidParams))
	require.NoError(t, f.vault.SetLimitPrice(ownerAccount, decimal.NewFromInt(3)))
	assert.True(t, decimal.NewFromInt(3).Equal(f.vault.LimitPrice()))

	assert.True(t, errors.Is(f.vault.SetBufferTime("mallory", time.Minute), domain.ErrUnauthorized))
	assert.True(t, errors.Is(f.vault.SetBufferTime(ownerAccount, -time.Second), domain.ErrInvalidParams))
	require.NoError(t, f.vault.SetBufferTime(ownerAccount, 2*time.Minute))
	assert.Equal(t, 2*time.Minute, f.vault.BufferTime())
}

func TestPreviewsMatchOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, primaryToken, "alice", 100)
	f.fund(t, settlementToken, exchangeAccount, 1000)

	f.setNow(50)
	_, err := f.vault.Deposit(ctx, "alice", decimal.NewFromInt(100), "alice")
	require.NoError(t, err)

	f.setNow(150)
	require.NoError(t, f.vault.BuyOption(ctx, exchangeAccount, decimal.NewFromInt(30), decimal.NewFromInt(2)))

	f.setNow(1200)

	quotedShares, err := f.vault.PreviewWithdraw(ctx, decimal.NewFromInt(40))
	require.NoError(t, err)
	quotedSettle, err := f.vault.PreviewSettlementRedeem(ctx, quotedShares)
	require.NoError(t, err)

	burned, err := f.vault.Withdraw(ctx, "alice", decimal.NewFromInt(40), "alice", "alice")
	require.NoError(t, err)
	assert.True(t, quotedShares.Equal(burned))
	assert.True(t, quotedSettle.Equal(f.mem.BalanceOf(settlementToken, "alice")))
}
