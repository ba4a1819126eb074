package trading

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Aidin1998/commodex/internal/ledger"
	"github.com/Aidin1998/commodex/internal/trading/engine"
	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

// TradingService defines trading operations for dependency injection
type TradingService interface {
	RegisterCommodity(ctx context.Context, caller models.AccountID, name, symbol string, initialPrice, totalSupply uint64) (models.Commodity, error)
	SetPrice(ctx context.Context, caller models.AccountID, commodityID, price uint64) (models.Commodity, error)
	Buy(ctx context.Context, trader models.AccountID, commodityID, amount, suppliedValue uint64) (models.Execution, error)
	Sell(ctx context.Context, trader models.AccountID, commodityID, amount uint64) (models.Execution, error)
	WithdrawFees(ctx context.Context, caller models.AccountID) (uint64, error)
	Deposit(ctx context.Context, caller, account models.AccountID, amount uint64) (uint64, error)

	GetCommodity(id uint64) (models.Commodity, error)
	ListCommodities() []models.Commodity
	GetTrade(id uint64) (models.Trade, error)
	ListTrades(afterID uint64, limit int) []models.Trade
	TradesByTrader(trader models.AccountID) []uint64
	Holding(account models.AccountID, commodityID uint64) uint64
	Holdings(account models.AccountID) []models.Holding
	ValueBalance(ctx context.Context, account models.AccountID) (uint64, error)
	Stats(ctx context.Context) (Stats, error)
}

// Stats summarizes the exchange.
type Stats struct {
	Commodities   uint64           `json:"commodities"`
	Trades        uint64           `json:"trades"`
	EngineAccount models.AccountID `json:"engine_account"`
	EngineBalance uint64           `json:"engine_balance"`
}

// Service implements TradingService by running every engine call, queries
// included, under one mutex. The engine itself is single-threaded.
//
// The context handed to the ledger and to event handlers carries a marker for
// the running call. A call made with that context while the outer call holds
// the lock fails with Reentrant. The query methods that take no context
// cannot see the marker and must not be called from ledger or event
// callbacks.
type Service struct {
	logger *zap.Logger
	mu     sync.Mutex
	engine *engine.Engine
	ledger ledger.ValueLedger
}

var _ TradingService = (*Service)(nil)

// NewService creates a new trading service
func NewService(logger *zap.Logger, eng *engine.Engine, valueLedger ledger.ValueLedger) (*Service, error) {
	if eng == nil || valueLedger == nil {
		return nil, fmt.Errorf("engine and value ledger are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, engine: eng, ledger: valueLedger}, nil
}

type operationKey struct{}

// begin takes the lock for one call and returns the context to pass down. It
// fails when ctx already belongs to a call on this service.
func (s *Service) begin(ctx context.Context) (context.Context, error) {
	if owner, _ := ctx.Value(operationKey{}).(*Service); owner == s {
		return ctx, errors.ErrReentrant.Explain("nested call into the trading service")
	}
	s.mu.Lock()
	return context.WithValue(ctx, operationKey{}, s), nil
}

func (s *Service) RegisterCommodity(ctx context.Context, caller models.AccountID, name, symbol string, initialPrice, totalSupply uint64) (models.Commodity, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return models.Commodity{}, err
	}
	defer s.mu.Unlock()
	id, err := s.engine.RegisterCommodity(ctx, caller, name, symbol, initialPrice, totalSupply)
	if err != nil {
		return models.Commodity{}, err
	}
	return s.engine.Commodity(id)
}

func (s *Service) SetPrice(ctx context.Context, caller models.AccountID, commodityID, price uint64) (models.Commodity, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return models.Commodity{}, err
	}
	defer s.mu.Unlock()
	if err := s.engine.SetPrice(ctx, caller, commodityID, price); err != nil {
		return models.Commodity{}, err
	}
	return s.engine.Commodity(commodityID)
}

func (s *Service) Buy(ctx context.Context, trader models.AccountID, commodityID, amount, suppliedValue uint64) (models.Execution, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return models.Execution{}, err
	}
	defer s.mu.Unlock()
	return s.engine.Buy(ctx, trader, commodityID, amount, suppliedValue)
}

func (s *Service) Sell(ctx context.Context, trader models.AccountID, commodityID, amount uint64) (models.Execution, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return models.Execution{}, err
	}
	defer s.mu.Unlock()
	return s.engine.Sell(ctx, trader, commodityID, amount)
}

func (s *Service) WithdrawFees(ctx context.Context, caller models.AccountID) (uint64, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return s.engine.WithdrawFees(ctx, caller)
}

// Deposit credits account in the value ledger out of thin air. It stands in
// for an external funding flow and is reserved to the administrator.
func (s *Service) Deposit(ctx context.Context, caller, account models.AccountID, amount uint64) (uint64, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	if caller != s.engine.Admin() {
		return 0, errors.ErrUnauthorized.Explain("only the administrator may fund accounts")
	}
	if account == "" || amount == 0 {
		return 0, errors.ErrInvalidArgument.Explain("account and a positive amount are required")
	}
	if err := s.ledger.Deposit(ctx, account, amount); err != nil {
		return 0, err
	}
	s.logger.Info("Account funded", zap.String("account", string(account)), zap.Uint64("amount", amount))
	return s.ledger.BalanceOf(ctx, account)
}

func (s *Service) GetCommodity(id uint64) (models.Commodity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Commodity(id)
}

func (s *Service) ListCommodities() []models.Commodity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Commodities()
}

func (s *Service) GetTrade(id uint64) (models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Trade(id)
}

func (s *Service) ListTrades(afterID uint64, limit int) []models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.TradesPage(afterID, limit)
}

func (s *Service) TradesByTrader(trader models.AccountID) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.TradesByTrader(trader)
}

func (s *Service) Holding(account models.AccountID, commodityID uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Balance(account, commodityID)
}

func (s *Service) Holdings(account models.AccountID) []models.Holding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Holdings(account)
}

func (s *Service) ValueBalance(ctx context.Context, account models.AccountID) (uint64, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return s.engine.ValueBalance(ctx, account)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer s.mu.Unlock()
	bal, err := s.engine.EngineBalance(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Commodities:   s.engine.CommodityCount(),
		Trades:        s.engine.TradeCount(),
		EngineAccount: s.engine.Account(),
		EngineBalance: bal,
	}, nil
}
