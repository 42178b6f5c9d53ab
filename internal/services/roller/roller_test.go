package roller

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollvault/rollvault/internal/domain"
	"github.com/rollvault/rollvault/internal/ledger"
	"github.com/rollvault/rollvault/internal/services/pricer"
	"github.com/rollvault/rollvault/internal/services/swap"
	"github.com/rollvault/rollvault/internal/services/vault"
)

func newRollerFixture(t *testing.T, settleFunds int64, price int64) (*Roller, *ledger.Memory, *vault.Vault) {
	mem := ledger.NewMemory()
	pair := domain.Pair{Primary: "ETH", Settlement: "USDC"}

	settlement := mem.Bind(pair.Settlement, "vault")
	orch, err := swap.NewOrchestrator(settlement, pair.Settlement, pair.Primary, "vault", nil)
	require.NoError(t, err)

	exec, err := swap.NewSimulateExecutor(mem, "swap-venue", decimal.NewFromInt(1))
	require.NoError(t, err)

	v, err := vault.New(vault.Config{
		PrimaryToken:    pair.Primary,
		SettlementToken: pair.Settlement,
		Account:         "vault",
		Owner:           "owner",
		Exchange:        "exchange",
		Window:          domain.Window{Start: time.Unix(100, 0), End: time.Unix(200, 0)},
		BufferTime:      0,
	}, mem.Bind(pair.Primary, "vault"), settlement, orch)
	require.NoError(t, err)

	if settleFunds > 0 {
		require.NoError(t, mem.Mint(pair.Settlement, "vault", decimal.NewFromInt(settleFunds)))
	}

	feed, err := pricer.NewStaticPricer(decimal.NewFromInt(price))
	require.NoError(t, err)

	r, err := New(v, exec, feed, pair, "owner", time.Hour, nil)
	require.NoError(t, err)
	return r, mem, v
}

func TestNewValidation(t *testing.T) {
	_, _, v := newRollerFixture(t, 0, 1)

	feed, err := pricer.NewStaticPricer(decimal.NewFromInt(1))
	require.NoError(t, err)
	exec, err := swap.NewSimulateExecutor(ledger.NewMemory(), "x", decimal.NewFromInt(1))
	require.NoError(t, err)

	_, err = New(nil, exec, feed, domain.Pair{}, "owner", time.Hour, nil)
	assert.Error(t, err)
	_, err = New(v, nil, feed, domain.Pair{}, "owner", time.Hour, nil)
	assert.Error(t, err)
	_, err = New(v, exec, nil, domain.Pair{}, "owner", time.Hour, nil)
	assert.Error(t, err)
	_, err = New(v, exec, feed, domain.Pair{}, "owner", 0, nil)
	assert.Error(t, err)
}

func TestQuoteMinOut(t *testing.T) {
	ctx := context.Background()

	// empty settlement balance still quotes the minimal positive output
	r, _, _ := newRollerFixture(t, 0, 2)
	minOut, err := r.quoteMinOut(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1).Equal(minOut))

	// 1000 settlement at price 2 expects 500 out, less the slippage haircut
	r, _, _ = newRollerFixture(t, 1000, 2)
	minOut, err = r.quoteMinOut(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(495).Equal(minOut))
}

func TestRollOnceAdvancesWindow(t *testing.T) {
	ctx := context.Background()
	r, mem, v := newRollerFixture(t, 100, 1)

	require.Equal(t, domain.PhaseRollable, v.PhaseNow())
	require.NoError(t, r.rollOnce(ctx))

	assert.True(t, mem.BalanceOf("USDC", "vault").IsZero(), "settlement drained on roll")
	assert.True(t, v.Window().Start.After(time.Now()), "new round starts in the future")
	assert.Equal(t, time.Hour, v.Window().End.Sub(v.Window().Start))
}
