package engine

import (
	"context"

	"github.com/Aidin1998/commodex/pkg/models"
)

// Admin is the administrator account fixed at construction.
func (e *Engine) Admin() models.AccountID { return e.admin }

// Account is the engine's own account in the value ledger.
func (e *Engine) Account() models.AccountID { return e.self }

// Commodity returns the commodity with the given id.
func (e *Engine) Commodity(id uint64) (models.Commodity, error) {
	return e.registry.Get(id)
}

// Commodities lists every registered commodity in id order.
func (e *Engine) Commodities() []models.Commodity {
	return e.registry.List()
}

// CommodityCount is the number of registered commodities.
func (e *Engine) CommodityCount() uint64 {
	return e.registry.Count()
}

// Trade returns the trade with the given id.
func (e *Engine) Trade(id uint64) (models.Trade, error) {
	return e.trades.Get(id)
}

// TradesPage returns up to limit trades with ids above afterID.
func (e *Engine) TradesPage(afterID uint64, limit int) []models.Trade {
	return e.trades.Page(afterID, limit)
}

// TradesByTrader returns the trader's trade ids, oldest first.
func (e *Engine) TradesByTrader(trader models.AccountID) []uint64 {
	return e.trades.ListByTrader(trader)
}

// TradeCount is the number of executed trades.
func (e *Engine) TradeCount() uint64 {
	return e.trades.Count()
}

// Balance is the holding of account in commodityID.
func (e *Engine) Balance(account models.AccountID, commodityID uint64) uint64 {
	return e.holdings.Get(account, commodityID)
}

// Holdings lists the account's non-zero holdings by commodity id.
func (e *Engine) Holdings(account models.AccountID) []models.Holding {
	return e.holdings.Holdings(account)
}

// ValueBalance reads the account's balance in the value ledger.
func (e *Engine) ValueBalance(ctx context.Context, account models.AccountID) (uint64, error) {
	return e.ledger.BalanceOf(ctx, account)
}

// EngineBalance is the value retained by the engine account: buy proceeds
// net of fees and the fees levied on sells, less what sellers were paid.
func (e *Engine) EngineBalance(ctx context.Context) (uint64, error) {
	return e.ledger.BalanceOf(ctx, e.self)
}
