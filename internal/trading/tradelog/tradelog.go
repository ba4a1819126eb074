// Package tradelog is the append-only record of executed trades, indexed by
// trade id and by trader.
package tradelog

import (
	"math"
	"time"

	"github.com/tidwall/btree"

	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

// Log stores trades ordered by id. Not safe for concurrent use.
type Log struct {
	trades   btree.Map[uint64, models.Trade]
	byTrader map[models.AccountID][]uint64
	lastID   uint64
}

func New() *Log {
	return &Log{byTrader: make(map[models.AccountID][]uint64)}
}

// Append records a trade under the next sequential id and returns it. All
// fields have been validated by the caller.
func (l *Log) Append(trader models.AccountID, commodityID uint64, isBuy bool, amount, price uint64, timestamp time.Time) uint64 {
	l.lastID++
	id := l.lastID
	l.trades.Set(id, models.Trade{
		ID:          id,
		Trader:      trader,
		CommodityID: commodityID,
		IsBuy:       isBuy,
		Amount:      amount,
		Price:       price,
		Timestamp:   timestamp,
	})
	l.byTrader[trader] = append(l.byTrader[trader], id)
	return id
}

// Get returns the trade with the given id.
func (l *Log) Get(id uint64) (models.Trade, error) {
	t, ok := l.trades.Get(id)
	if !ok {
		return models.Trade{}, errors.ErrNotFound.Explain("trade %d not found", id)
	}
	return t, nil
}

// ListByTrader returns the trader's trade ids in chronological order.
func (l *Log) ListByTrader(account models.AccountID) []uint64 {
	ids := l.byTrader[account]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// Count returns the number of recorded trades.
func (l *Log) Count() uint64 {
	return uint64(l.trades.Len())
}

// Page returns up to limit trades with id greater than afterID, ascending.
func (l *Log) Page(afterID uint64, limit int) []models.Trade {
	if limit <= 0 || afterID == math.MaxUint64 {
		return nil
	}
	out := make([]models.Trade, 0, min(limit, l.trades.Len()))
	l.trades.Ascend(afterID+1, func(_ uint64, t models.Trade) bool {
		out = append(out, t)
		return len(out) < limit
	})
	return out
}
