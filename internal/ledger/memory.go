package ledger

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Memory is an in-process token ledger with ERC-20 style semantics:
// per-token balances plus owner→spender allowances drawn down by
// TransferFrom. It backs simulation runs and tests.
type Memory struct {
	mu         sync.RWMutex
	balances   map[string]map[string]decimal.Decimal            // token -> holder -> balance
	allowances map[string]map[string]map[string]decimal.Decimal // token -> owner -> spender -> allowance
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		balances:   make(map[string]map[string]decimal.Decimal),
		allowances: make(map[string]map[string]map[string]decimal.Decimal),
	}
}

// Mint credits newly issued tokens to an account. Used to fund accounts in
// simulation and tests.
func (m *Memory) Mint(token, to string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("mint amount must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.credit(token, to, amount)
	return nil
}

// Transfer moves tokens between two accounts.
func (m *Memory) Transfer(token, from, to string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transfer amount must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.move(token, from, to, amount)
}

// TransferFrom moves tokens out of owner's account on spender's authority,
// drawing down the standing allowance. This is the path an options exchange
// uses to exercise against a granted allowance.
func (m *Memory) TransferFrom(token, spender, owner, to string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transfer amount must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := m.allowance(token, owner, spender)
	if allowed.LessThan(amount) {
		return errors.Errorf("allowance exceeded: %s allows %s to spend %s of %s, requested %s",
			owner, spender, allowed.String(), token, amount.String())
	}
	if err := m.move(token, owner, to, amount); err != nil {
		return err
	}
	m.setAllowance(token, owner, spender, allowed.Sub(amount))
	return nil
}

// Approve sets spender's allowance over owner's tokens to exactly amount.
func (m *Memory) Approve(token, owner, spender string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New("allowance must not be negative")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.setAllowance(token, owner, spender, amount)
	return nil
}

// BalanceOf reports the holder's balance for the token.
func (m *Memory) BalanceOf(token, holder string) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if holders, ok := m.balances[token]; ok {
		return holders[holder]
	}
	return decimal.Zero
}

// Allowance reports how much of owner's tokens spender may still move.
func (m *Memory) Allowance(token, owner, spender string) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.allowance(token, owner, spender)
}

func (m *Memory) move(token, from, to string, amount decimal.Decimal) error {
	have := decimal.Zero
	if holders, ok := m.balances[token]; ok {
		have = holders[from]
	}
	if have.LessThan(amount) {
		return errors.Errorf("insufficient %s balance: %s has %s, needs %s",
			token, from, have.String(), amount.String())
	}
	m.balances[token][from] = have.Sub(amount)
	m.credit(token, to, amount)
	return nil
}

func (m *Memory) credit(token, to string, amount decimal.Decimal) {
	holders, ok := m.balances[token]
	if !ok {
		holders = make(map[string]decimal.Decimal)
		m.balances[token] = holders
	}
	holders[to] = holders[to].Add(amount)
}

func (m *Memory) allowance(token, owner, spender string) decimal.Decimal {
	if owners, ok := m.allowances[token]; ok {
		if spenders, ok := owners[owner]; ok {
			return spenders[spender]
		}
	}
	return decimal.Zero
}

func (m *Memory) setAllowance(token, owner, spender string, amount decimal.Decimal) {
	owners, ok := m.allowances[token]
	if !ok {
		owners = make(map[string]map[string]decimal.Decimal)
		m.allowances[token] = owners
	}
	spenders, ok := owners[owner]
	if !ok {
		spenders = make(map[string]decimal.Decimal)
		owners[owner] = spenders
	}
	spenders[spender] = amount
}

// Binding is a Memory ledger scoped to one token and one account, giving the
// vault its TokenLedger view.
type Binding struct {
	mem     *Memory
	token   string
	account string
}

// Bind scopes the ledger to a token and an account.
func (m *Memory) Bind(token, account string) *Binding {
	return &Binding{mem: m, token: token, account: account}
}

// Token returns the bound token symbol.
func (b *Binding) Token() string { return b.token }

// Account returns the bound account.
func (b *Binding) Account() string { return b.account }

func (b *Binding) TransferIn(_ context.Context, from string, amount decimal.Decimal) error {
	return b.mem.Transfer(b.token, from, b.account, amount)
}

func (b *Binding) TransferOut(_ context.Context, to string, amount decimal.Decimal) error {
	return b.mem.Transfer(b.token, b.account, to, amount)
}

func (b *Binding) BalanceOf(_ context.Context, holder string) (decimal.Decimal, error) {
	return b.mem.BalanceOf(b.token, holder), nil
}

func (b *Binding) Approve(_ context.Context, spender string, amount decimal.Decimal) error {
	return b.mem.Approve(b.token, b.account, spender, amount)
}

func (b *Binding) Allowance(_ context.Context, owner, spender string) (decimal.Decimal, error) {
	return b.mem.Allowance(b.token, owner, spender), nil
}
