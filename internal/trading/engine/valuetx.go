package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Aidin1998/commodex/internal/ledger"
	"github.com/Aidin1998/commodex/pkg/models"
)

type movement struct {
	from, to models.AccountID
	amount   uint64
}

// valueTx applies a sequence of ledger transfers and, on failure, reverses
// the ones already applied in the opposite order.
type valueTx struct {
	ctx     context.Context
	ledger  ledger.ValueLedger
	logger  *zap.Logger
	applied []movement
	err     error
}

func newValueTx(ctx context.Context, l ledger.ValueLedger, logger *zap.Logger) *valueTx {
	return &valueTx{ctx: ctx, ledger: l, logger: logger}
}

// transfer is a no-op once a previous transfer failed, and for zero amounts.
func (tx *valueTx) transfer(from, to models.AccountID, amount uint64) {
	if tx.err != nil || amount == 0 {
		return
	}
	if err := tx.ledger.Transfer(tx.ctx, from, to, amount); err != nil {
		tx.err = err
		return
	}
	tx.applied = append(tx.applied, movement{from: from, to: to, amount: amount})
}

// commit returns the first transfer error after rolling back.
func (tx *valueTx) commit() error {
	if tx.err == nil {
		return nil
	}
	tx.rollback()
	return tx.err
}

func (tx *valueTx) rollback() {
	ctx := context.WithoutCancel(tx.ctx)
	for i := len(tx.applied) - 1; i >= 0; i-- {
		m := tx.applied[i]
		if err := tx.ledger.Transfer(ctx, m.to, m.from, m.amount); err != nil {
			tx.logger.Error("Failed to compensate value transfer",
				zap.String("from", string(m.from)),
				zap.String("to", string(m.to)),
				zap.Uint64("amount", m.amount),
				zap.Error(err))
		}
	}
	tx.applied = nil
}
