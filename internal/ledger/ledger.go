// Package ledger provides the ValueLedger the trading engine moves payment
// value through, with an in-memory and a SQL (gorm) implementation.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Aidin1998/commodex/pkg/models"
)

// MaxBalance is the largest balance any account may hold, the range of a
// signed BIGINT column. Credits past it fail with InvalidArgument.
const MaxBalance = math.MaxInt64

// ValueLedger holds fungible value balances per account. Every method is
// atomic: it either applies fully or not at all. Zero amounts are no-ops.
type ValueLedger interface {
	// Deposit adds amount to account.
	Deposit(ctx context.Context, account models.AccountID, amount uint64) error
	// Withdraw removes amount from account, failing with InsufficientBalance.
	Withdraw(ctx context.Context, account models.AccountID, amount uint64) error
	// Transfer moves amount between accounts, failing with InsufficientBalance.
	Transfer(ctx context.Context, from, to models.AccountID, amount uint64) error
	// BalanceOf returns the balance of account, 0 if unknown.
	BalanceOf(ctx context.Context, account models.AccountID) (uint64, error)
}

// Seed deposits the given balances, in account order so that failures are
// reproducible.
func Seed(ctx context.Context, l ValueLedger, balances map[string]uint64) error {
	accounts := make([]string, 0, len(balances))
	for a := range balances {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	for _, a := range accounts {
		if err := l.Deposit(ctx, models.AccountID(a), balances[a]); err != nil {
			return fmt.Errorf("failed to seed account %s: %w", a, err)
		}
	}
	return nil
}
