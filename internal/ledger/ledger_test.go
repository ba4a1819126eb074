package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Aidin1998/commodex/pkg/errors"
)

func setupGormLedger(t *testing.T) *GormLedger {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	l, err := NewGormLedger(zap.NewNop(), db)
	require.NoError(t, err)
	return l
}

func implementations(t *testing.T) map[string]ValueLedger {
	return map[string]ValueLedger{
		"memory": NewMemoryLedger(),
		"gorm":   setupGormLedger(t),
	}
}

func TestLedgerDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	for name, l := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			bal, err := l.BalanceOf(ctx, "alice")
			require.NoError(t, err)
			assert.Zero(t, bal)

			require.NoError(t, l.Deposit(ctx, "alice", 100))
			require.NoError(t, l.Deposit(ctx, "alice", 50))
			require.NoError(t, l.Withdraw(ctx, "alice", 30))
			bal, _ = l.BalanceOf(ctx, "alice")
			assert.Equal(t, uint64(120), bal)

			err = l.Withdraw(ctx, "alice", 121)
			assert.ErrorIs(t, err, errors.ErrInsufficientBalance)
			bal, _ = l.BalanceOf(ctx, "alice")
			assert.Equal(t, uint64(120), bal)

			assert.ErrorIs(t, l.Withdraw(ctx, "ghost", 1), errors.ErrInsufficientBalance)
			assert.NoError(t, l.Withdraw(ctx, "ghost", 0))
		})
	}
}

func TestLedgerRejectsBalanceOverflow(t *testing.T) {
	ctx := context.Background()
	for name, l := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, l.Deposit(ctx, "alice", MaxBalance))
			assert.ErrorIs(t, l.Deposit(ctx, "alice", 1), errors.ErrInvalidArgument)
			assert.ErrorIs(t, l.Deposit(ctx, "bob", MaxBalance+1), errors.ErrInvalidArgument)

			require.NoError(t, l.Deposit(ctx, "carol", 1))
			assert.ErrorIs(t, l.Transfer(ctx, "carol", "alice", 1), errors.ErrInvalidArgument)

			a, _ := l.BalanceOf(ctx, "alice")
			b, _ := l.BalanceOf(ctx, "bob")
			c, _ := l.BalanceOf(ctx, "carol")
			assert.Equal(t, uint64(MaxBalance), a)
			assert.Zero(t, b)
			assert.Equal(t, uint64(1), c, "failed transfer must not debit the sender")
		})
	}
}

func TestLedgerTransfer(t *testing.T) {
	ctx := context.Background()
	for name, l := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, l.Deposit(ctx, "alice", 500))
			require.NoError(t, l.Transfer(ctx, "alice", "bob", 200))
			require.NoError(t, l.Transfer(ctx, "alice", "alice", 100))

			a, _ := l.BalanceOf(ctx, "alice")
			b, _ := l.BalanceOf(ctx, "bob")
			assert.Equal(t, uint64(300), a)
			assert.Equal(t, uint64(200), b)

			err := l.Transfer(ctx, "bob", "alice", 201)
			assert.ErrorIs(t, err, errors.ErrInsufficientBalance)
			a, _ = l.BalanceOf(ctx, "alice")
			b, _ = l.BalanceOf(ctx, "bob")
			assert.Equal(t, uint64(300), a, "failed transfer must not move value")
			assert.Equal(t, uint64(200), b)

			assert.NoError(t, l.Transfer(ctx, "nobody", "alice", 0))
		})
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, Seed(ctx, l, map[string]uint64{"alice": 10, "bob": 20}))
	b, _ := l.BalanceOf(ctx, "bob")
	assert.Equal(t, uint64(20), b)
}

func TestGormLedgerJournal(t *testing.T) {
	ctx := context.Background()
	l := setupGormLedger(t)
	require.NoError(t, l.Deposit(ctx, "alice", 100))
	require.NoError(t, l.Transfer(ctx, "alice", "bob", 40))
	require.Error(t, l.Transfer(ctx, "alice", "bob", 400))

	entries, err := l.entries(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EntryTransfer, entries[0].Type)
	assert.Equal(t, "bob", entries[0].ToAccount)
	assert.Equal(t, EntryDeposit, entries[1].Type)
}

func TestMemoryLedgerConcurrentTransfers(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Deposit(ctx, "alice", 10000))

	var wg sync.WaitGroup
	n := 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Transfer(ctx, "alice", "bob", 10); err != nil {
				t.Errorf("transfer failed: %v", err)
			}
		}()
	}
	wg.Wait()
	a, _ := l.BalanceOf(ctx, "alice")
	b, _ := l.BalanceOf(ctx, "bob")
	assert.Equal(t, uint64(10000-10*n), a)
	assert.Equal(t, uint64(10*n), b)
}
