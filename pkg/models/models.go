package models

import "time"

// AccountID identifies a trader, the administrator or the engine itself in
// both the holdings store and the value ledger.
type AccountID string

// Commodity is a registered tradable asset.
type Commodity struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	TotalSupply     uint64    `json:"total_supply"`
	CurrentPrice    uint64    `json:"current_price"`
	LastPriceUpdate time.Time `json:"last_price_update"`
	IsActive        bool      `json:"is_active"`
}

// Trade is the immutable record of one buy or sell execution. Price is the
// commodity price at execution, before any post-trade update.
type Trade struct {
	ID          uint64    `json:"id"`
	Trader      AccountID `json:"trader"`
	CommodityID uint64    `json:"commodity_id"`
	IsBuy       bool      `json:"is_buy"`
	Amount      uint64    `json:"amount"`
	Price       uint64    `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
}

// Side returns "buy" or "sell".
func (t Trade) Side() string {
	if t.IsBuy {
		return SideBuy
	}
	return SideSell
}

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Holding is an account's quantity of one commodity.
type Holding struct {
	CommodityID uint64 `json:"commodity_id"`
	Amount      uint64 `json:"amount"`
}

// Settlement describes how the value of one trade was split.
// Fee + Counterparty always equals Total.
type Settlement struct {
	Total        uint64 `json:"total"`
	Fee          uint64 `json:"fee"`
	Counterparty uint64 `json:"counterparty"`
	Refund       uint64 `json:"refund,omitempty"`
}

// Execution is what a successful buy or sell returns.
type Execution struct {
	Trade      Trade      `json:"trade"`
	Settlement Settlement `json:"settlement"`
	NewPrice   uint64     `json:"new_price"`
}
