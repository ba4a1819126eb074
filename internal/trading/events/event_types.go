package events

import "github.com/Aidin1998/commodex/pkg/models"

// Event topics
const (
	TopicCommodity = "commodity"
	TopicTrade     = "trade"
	TopicFees      = "fees"
)

// Event types
const (
	TypeCommodityRegistered = "COMMODITY_REGISTERED"
	TypePriceSet            = "PRICE_SET"
	TypeTradeExecuted       = "TRADE_EXECUTED"
	TypeFeesWithdrawn       = "FEES_WITHDRAWN"
)

// CommodityRegistered is published once per successful registration.
type CommodityRegistered struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	InitialPrice uint64 `json:"initial_price"`
}

// PriceSet is published for administrator price overrides only.
type PriceSet struct {
	ID    uint64 `json:"id"`
	Price uint64 `json:"price"`
}

// TradeExecuted is published for every buy and sell. Price is the execution
// price, not the post-trade price.
type TradeExecuted struct {
	TradeID     uint64           `json:"trade_id"`
	Trader      models.AccountID `json:"trader"`
	CommodityID uint64           `json:"commodity_id"`
	IsBuy       bool             `json:"is_buy"`
	Amount      uint64           `json:"amount"`
	Price       uint64           `json:"price"`
}

type FeesWithdrawn struct {
	Account models.AccountID `json:"account"`
	Amount  uint64           `json:"amount"`
}

// Key returns the partitioning key of a payload: the commodity id when the
// event concerns one commodity, empty otherwise.
func Key(payload any) string {
	switch p := payload.(type) {
	case CommodityRegistered:
		return formatID(p.ID)
	case PriceSet:
		return formatID(p.ID)
	case TradeExecuted:
		return formatID(p.CommodityID)
	}
	return ""
}
