// Package engine executes commodity trades against the registry, the
// holdings store, the trade log and the value ledger.
//
// Every mutating call either applies completely or leaves no trace: it
// validates and computes everything first, moves value through the ledger
// with compensation on failure, and only then touches in-memory state and
// emits its event. The engine is not safe for concurrent use; callers
// serialize access (see trading.Service). A mutating call made while
// another is in progress, for example from a ledger callback, fails with
// ErrReentrant.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Aidin1998/commodex/internal/ledger"
	"github.com/Aidin1998/commodex/internal/trading/balance"
	"github.com/Aidin1998/commodex/internal/trading/events"
	"github.com/Aidin1998/commodex/internal/trading/pricing"
	"github.com/Aidin1998/commodex/internal/trading/registry"
	"github.com/Aidin1998/commodex/internal/trading/tradelog"
	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/metrics"
	"github.com/Aidin1998/commodex/pkg/models"
)

// Operation names used in logs and metrics
const (
	OpRegister     = "register"
	OpSetPrice     = "set_price"
	OpBuy          = "buy"
	OpSell         = "sell"
	OpWithdrawFees = "withdraw_fees"
)

// Config holds what the engine is fixed to at construction.
type Config struct {
	// Admin may register commodities, override prices and withdraw fees.
	Admin models.AccountID
	// Self is the engine's own account in the value ledger.
	Self models.AccountID
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Oracle defaults to pricing.TimeOracle.
	Oracle pricing.Oracle
}

// Engine represents the trading engine
type Engine struct {
	logger   *zap.Logger
	admin    models.AccountID
	self     models.AccountID
	now      func() time.Time
	oracle   pricing.Oracle
	ledger   ledger.ValueLedger
	bus      events.EventBus
	registry *registry.Registry
	holdings *balance.Store
	trades   *tradelog.Log

	entered bool
}

// NewEngine creates a trading engine with empty state.
func NewEngine(logger *zap.Logger, cfg Config, valueLedger ledger.ValueLedger, bus events.EventBus) (*Engine, error) {
	if cfg.Admin == "" {
		return nil, fmt.Errorf("admin account is required")
	}
	if cfg.Self == "" {
		return nil, fmt.Errorf("engine account is required")
	}
	if cfg.Admin == cfg.Self {
		return nil, fmt.Errorf("engine account %q must differ from the admin account", cfg.Self)
	}
	if valueLedger == nil {
		return nil, fmt.Errorf("value ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Oracle == nil {
		cfg.Oracle = pricing.TimeOracle{}
	}
	if bus == nil {
		bus = events.NewInMemoryEventBus(logger)
	}
	return &Engine{
		logger:   logger,
		admin:    cfg.Admin,
		self:     cfg.Self,
		now:      cfg.Clock,
		oracle:   cfg.Oracle,
		ledger:   valueLedger,
		bus:      bus,
		registry: registry.New(cfg.Admin),
		holdings: balance.NewStore(),
		trades:   tradelog.New(),
	}, nil
}

// enter sets the re-entrancy flag; the returned func clears it.
func (e *Engine) enter() (func(), error) {
	if e.entered {
		return nil, errors.ErrReentrant.Explain("another engine operation is in progress")
	}
	e.entered = true
	return func() { e.entered = false }, nil
}

// observe records latency and, for failures, the rejection.
func (e *Engine) observe(op string, start time.Time, err error) {
	metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	kind := errors.KindOf(err)
	metrics.Rejections.WithLabelValues(op, string(kind)).Inc()
	if kind == errors.KindInternal {
		e.logger.Error("Engine operation failed", zap.String("op", op), zap.Error(err))
		return
	}
	e.logger.Debug("Engine operation rejected", zap.String("op", op), zap.Error(err))
}

func (e *Engine) publish(ctx context.Context, topic, typ string, at time.Time, payload any) {
	e.bus.Publish(ctx, events.New(topic, typ, at, payload))
}

// RegisterCommodity adds a commodity to the catalog. Administrator only.
func (e *Engine) RegisterCommodity(ctx context.Context, caller models.AccountID, name, symbol string, initialPrice, totalSupply uint64) (id uint64, err error) {
	start := time.Now()
	defer func() { e.observe(OpRegister, start, err) }()

	release, err := e.enter()
	if err != nil {
		return 0, err
	}
	defer release()

	now := e.now()
	id, err = e.registry.Register(caller, name, symbol, initialPrice, totalSupply, now)
	if err != nil {
		return 0, err
	}

	e.publish(ctx, events.TopicCommodity, events.TypeCommodityRegistered, now, events.CommodityRegistered{
		ID:           id,
		Name:         name,
		Symbol:       symbol,
		InitialPrice: initialPrice,
	})
	e.logger.Info("Commodity registered",
		zap.Uint64("commodity_id", id),
		zap.String("symbol", symbol),
		zap.Uint64("price", initialPrice),
		zap.Uint64("total_supply", totalSupply))
	return id, nil
}

// SetPrice is the administrator price override.
func (e *Engine) SetPrice(ctx context.Context, caller models.AccountID, commodityID, price uint64) (err error) {
	start := time.Now()
	defer func() { e.observe(OpSetPrice, start, err) }()

	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	now := e.now()
	if err = e.registry.SetPrice(caller, commodityID, price, now); err != nil {
		return err
	}

	metrics.PriceUpdates.WithLabelValues(metrics.SourceAdmin).Inc()
	e.publish(ctx, events.TopicCommodity, events.TypePriceSet, now, events.PriceSet{ID: commodityID, Price: price})
	e.logger.Info("Commodity price set", zap.Uint64("commodity_id", commodityID), zap.Uint64("price", price))
	return nil
}

// tradable loads the commodity and checks the arguments shared by buy and sell.
func (e *Engine) tradable(trader models.AccountID, commodityID, amount uint64) (models.Commodity, error) {
	if trader == "" {
		return models.Commodity{}, errors.ErrInvalidArgument.Explain("trader is required")
	}
	if trader == e.self {
		return models.Commodity{}, errors.ErrInvalidArgument.Explain("the engine account cannot trade")
	}
	c, err := e.registry.Get(commodityID)
	if err != nil {
		return models.Commodity{}, err
	}
	if !c.IsActive {
		return models.Commodity{}, errors.ErrInactiveCommodity.Explain("commodity %d is not active", commodityID)
	}
	if amount == 0 {
		return models.Commodity{}, errors.ErrInvalidArgument.Explain("amount must be positive").WithField("amount", "must be positive")
	}
	return c, nil
}

// Buy purchases amount units at the current price. suppliedValue is the
// value the trader attaches to the call; it is taken from the trader's
// ledger account and whatever exceeds the cost is refunded.
func (e *Engine) Buy(ctx context.Context, trader models.AccountID, commodityID, amount, suppliedValue uint64) (exec models.Execution, err error) {
	start := time.Now()
	defer func() { e.observe(OpBuy, start, err) }()

	release, err := e.enter()
	if err != nil {
		return exec, err
	}
	defer release()

	c, err := e.tradable(trader, commodityID, amount)
	if err != nil {
		return exec, err
	}
	total, err := tradeValue(amount, c.CurrentPrice)
	if err != nil {
		return exec, err
	}
	if suppliedValue < total {
		return exec, errors.ErrInsufficientPayment.Explain("buying %d of commodity %d costs %d, supplied %d",
			amount, commodityID, total, suppliedValue)
	}
	if e.holdings.Get(trader, commodityID) > math.MaxUint64-amount {
		return exec, errors.ErrInvalidArgument.Explain("holding of commodity %d would overflow", commodityID)
	}
	now := e.now()
	next, update, err := e.oracle.NextPrice(c, now)
	if err != nil {
		return exec, err
	}
	s := settle(total, suppliedValue, true)

	tx := newValueTx(ctx, e.ledger, e.logger)
	tx.transfer(trader, e.self, suppliedValue)
	tx.transfer(e.self, e.admin, s.Fee)
	tx.transfer(e.self, trader, s.Refund)
	if err = tx.commit(); err != nil {
		return exec, err
	}

	e.holdings.Credit(trader, commodityID, amount)
	return e.record(ctx, trader, c, true, amount, now, s, next, update), nil
}

// Sell sells amount units of the trader's holding at the current price. The
// seller is paid the trade value less the platform fee from the engine's
// account.
func (e *Engine) Sell(ctx context.Context, trader models.AccountID, commodityID, amount uint64) (exec models.Execution, err error) {
	start := time.Now()
	defer func() { e.observe(OpSell, start, err) }()

	release, err := e.enter()
	if err != nil {
		return exec, err
	}
	defer release()

	c, err := e.tradable(trader, commodityID, amount)
	if err != nil {
		return exec, err
	}
	if held := e.holdings.Get(trader, commodityID); held < amount {
		return exec, errors.ErrInsufficientBalance.Explain("account %s holds %d of commodity %d, selling %d",
			trader, held, commodityID, amount)
	}
	total, err := tradeValue(amount, c.CurrentPrice)
	if err != nil {
		return exec, err
	}
	now := e.now()
	next, update, err := e.oracle.NextPrice(c, now)
	if err != nil {
		return exec, err
	}
	s := settle(total, 0, false)

	tx := newValueTx(ctx, e.ledger, e.logger)
	tx.transfer(e.self, trader, s.Counterparty)
	if err = tx.commit(); err != nil {
		return exec, err
	}

	if err = e.holdings.Debit(trader, commodityID, amount); err != nil {
		// unreachable: the holding was checked above and nothing ran since
		tx.rollback()
		return exec, errors.ErrInternal.Wrap(err)
	}
	return e.record(ctx, trader, c, false, amount, now, s, next, update), nil
}

// record appends the trade, commits the post-trade price and emits the
// event. Nothing in here can fail.
func (e *Engine) record(ctx context.Context, trader models.AccountID, c models.Commodity, isBuy bool, amount uint64, now time.Time, s models.Settlement, next uint64, update bool) models.Execution {
	id := e.trades.Append(trader, c.ID, isBuy, amount, c.CurrentPrice, now)
	trade, _ := e.trades.Get(id)

	newPrice := c.CurrentPrice
	if update {
		// c was loaded from the registry a moment ago, so it exists
		_ = e.registry.ApplyPriceUpdate(c.ID, next, now)
		newPrice = next
		metrics.PriceUpdates.WithLabelValues(metrics.SourceAuto).Inc()
	}

	side := trade.Side()
	metrics.TradesExecuted.WithLabelValues(side).Inc()
	metrics.TradeVolume.WithLabelValues(side).Add(float64(s.Total))
	metrics.PlatformFees.Add(float64(s.Fee))

	e.publish(ctx, events.TopicTrade, events.TypeTradeExecuted, now, events.TradeExecuted{
		TradeID:     id,
		Trader:      trader,
		CommodityID: c.ID,
		IsBuy:       isBuy,
		Amount:      amount,
		Price:       c.CurrentPrice,
	})
	e.logger.Info("Trade executed",
		zap.Uint64("trade_id", id),
		zap.Uint64("commodity_id", c.ID),
		zap.String("trader", string(trader)),
		zap.String("side", side),
		zap.Uint64("amount", amount),
		zap.Uint64("price", c.CurrentPrice),
		zap.Uint64("fee", s.Fee),
		zap.Uint64("new_price", newPrice))

	return models.Execution{Trade: trade, Settlement: s, NewPrice: newPrice}
}

// WithdrawFees moves the engine account's whole value balance to the
// administrator and returns the amount moved. Administrator only.
func (e *Engine) WithdrawFees(ctx context.Context, caller models.AccountID) (amount uint64, err error) {
	start := time.Now()
	defer func() { e.observe(OpWithdrawFees, start, err) }()

	release, err := e.enter()
	if err != nil {
		return 0, err
	}
	defer release()

	if caller != e.admin {
		return 0, errors.ErrUnauthorized.Explain("only the administrator may withdraw fees")
	}
	amount, err = e.ledger.BalanceOf(ctx, e.self)
	if err != nil {
		return 0, fmt.Errorf("failed to read engine balance: %w", err)
	}
	if amount == 0 {
		return 0, nil
	}
	if err = e.ledger.Transfer(ctx, e.self, e.admin, amount); err != nil {
		e.logger.Error("Failed to withdraw fees", zap.Uint64("amount", amount), zap.Error(err))
		return 0, fmt.Errorf("failed to withdraw fees: %w", err)
	}

	now := e.now()
	e.publish(ctx, events.TopicFees, events.TypeFeesWithdrawn, now, events.FeesWithdrawn{Account: e.admin, Amount: amount})
	e.logger.Info("Fees withdrawn", zap.String("account", string(e.admin)), zap.Uint64("amount", amount))
	return amount, nil
}
