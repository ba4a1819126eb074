package ledger

import (
	"context"
	"sync"

	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

// MemoryLedger is a ValueLedger kept in a map. Safe for concurrent use.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[models.AccountID]uint64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[models.AccountID]uint64)}
}

func (m *MemoryLedger) Deposit(_ context.Context, account models.AccountID, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credit(account, amount)
}

func (m *MemoryLedger) Withdraw(_ context.Context, account models.AccountID, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debit(account, amount)
}

func (m *MemoryLedger) Transfer(_ context.Context, from, to models.AccountID, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount == 0 {
		return nil
	}
	if m.balances[from] < amount {
		return insufficient(from, m.balances[from], amount)
	}
	if from == to {
		return nil
	}
	if m.balances[to] > MaxBalance-amount {
		return errors.ErrInvalidArgument.Explain("balance of %s would overflow", to)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

func (m *MemoryLedger) BalanceOf(_ context.Context, account models.AccountID) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account], nil
}

func (m *MemoryLedger) credit(account models.AccountID, amount uint64) error {
	if amount > MaxBalance || m.balances[account] > MaxBalance-amount {
		return errors.ErrInvalidArgument.Explain("balance of %s would overflow", account)
	}
	m.balances[account] += amount
	return nil
}

func (m *MemoryLedger) debit(account models.AccountID, amount uint64) error {
	if m.balances[account] < amount {
		return insufficient(account, m.balances[account], amount)
	}
	m.balances[account] -= amount
	return nil
}

func insufficient(account models.AccountID, have, want uint64) error {
	return errors.ErrInsufficientBalance.Explain("account %s has %d, needs %d", account, have, want)
}
