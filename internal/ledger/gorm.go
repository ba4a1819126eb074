package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

// Account is one row of value balance.
type Account struct {
	ID        string `gorm:"primaryKey;size:128"`
	Balance   uint64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Account) TableName() string {
	return "value_accounts"
}

// Entry journals every applied movement.
type Entry struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Type        string `gorm:"size:16;not null"` // deposit, withdrawal, transfer
	FromAccount string `gorm:"size:128;index"`
	ToAccount   string `gorm:"size:128;index"`
	Amount      uint64 `gorm:"not null"`
	CreatedAt   time.Time
}

func (Entry) TableName() string {
	return "value_entries"
}

const (
	EntryDeposit    = "deposit"
	EntryWithdrawal = "withdrawal"
	EntryTransfer   = "transfer"
)

// GormLedger is a ValueLedger stored in a SQL database through gorm. Each
// call runs in its own database transaction.
type GormLedger struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewGormLedger migrates the ledger tables and returns the ledger.
func NewGormLedger(logger *zap.Logger, db *gorm.DB) (*GormLedger, error) {
	if err := db.AutoMigrate(&Account{}, &Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger tables: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormLedger{logger: logger, db: db}, nil
}

func (l *GormLedger) Deposit(ctx context.Context, account models.AccountID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := credit(tx, account, amount); err != nil {
			return err
		}
		return journal(tx, EntryDeposit, "", account, amount)
	})
}

func (l *GormLedger) Withdraw(ctx context.Context, account models.AccountID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := debit(tx, account, amount); err != nil {
			return err
		}
		return journal(tx, EntryWithdrawal, account, "", amount)
	})
}

func (l *GormLedger) Transfer(ctx context.Context, from, to models.AccountID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := debit(tx, from, amount); err != nil {
			return err
		}
		if err := credit(tx, to, amount); err != nil {
			return err
		}
		return journal(tx, EntryTransfer, from, to, amount)
	})
	if err != nil {
		l.logger.Debug("Ledger transfer failed",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Uint64("amount", amount),
			zap.Error(err))
	}
	return err
}

func (l *GormLedger) BalanceOf(ctx context.Context, account models.AccountID) (uint64, error) {
	var acc Account
	err := l.db.WithContext(ctx).Where("id = ?", string(account)).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.ErrInternal.Explain("failed to read balance").Wrap(err)
	}
	return acc.Balance, nil
}

// entries returns the journal of movements touching account, newest first.
func (l *GormLedger) entries(ctx context.Context, account models.AccountID, limit int) ([]Entry, error) {
	var entries []Entry
	err := l.db.WithContext(ctx).
		Where("from_account = ? OR to_account = ?", string(account), string(account)).
		Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	return entries, nil
}

// debit subtracts amount only when the row holds enough; the guard lives in
// the WHERE clause so concurrent writers cannot overdraw.
func debit(tx *gorm.DB, account models.AccountID, amount uint64) error {
	res := tx.Model(&Account{}).
		Where("id = ? AND balance >= ?", string(account), amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return errors.ErrInternal.Explain("failed to debit %s", account).Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		var have uint64
		tx.Model(&Account{}).Where("id = ?", string(account)).Select("balance").Scan(&have)
		return insufficient(account, have, amount)
	}
	return nil
}

func credit(tx *gorm.DB, account models.AccountID, amount uint64) error {
	var have uint64
	if err := tx.Model(&Account{}).Where("id = ?", string(account)).Select("balance").Scan(&have).Error; err != nil {
		return errors.ErrInternal.Explain("failed to read balance of %s", account).Wrap(err)
	}
	if amount > MaxBalance || have > MaxBalance-amount {
		return errors.ErrInvalidArgument.Explain("balance of %s would overflow", account)
	}
	now := time.Now()
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("value_accounts.balance + ?", amount),
			"updated_at": now,
		}),
	}).Create(&Account{ID: string(account), Balance: amount, CreatedAt: now, UpdatedAt: now}).Error
	if err != nil {
		return errors.ErrInternal.Explain("failed to credit %s", account).Wrap(err)
	}
	return nil
}

func journal(tx *gorm.DB, kind string, from, to models.AccountID, amount uint64) error {
	entry := &Entry{Type: kind, FromAccount: string(from), ToAccount: string(to), Amount: amount, CreatedAt: time.Now()}
	if err := tx.Create(entry).Error; err != nil {
		return errors.ErrInternal.Explain("failed to journal %s", kind).Wrap(err)
	}
	return nil
}
