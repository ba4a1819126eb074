// Package handlers contains the HTTP handlers of the exchange API.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Aidin1998/commodex/api/responses"
	"github.com/Aidin1998/commodex/internal/trading"
	"github.com/Aidin1998/commodex/pkg/models"
	"github.com/Aidin1998/commodex/pkg/validation"
)

// CallerKey is the gin context key holding the caller's account id.
const CallerKey = "caller"

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// TradingHandler serves the commodity, trade, account and fee routes.
type TradingHandler struct {
	logger    *zap.Logger
	service   trading.TradingService
	validator *validation.Validator
}

func NewTradingHandler(logger *zap.Logger, service trading.TradingService) *TradingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradingHandler{logger: logger, service: service, validator: validation.NewValidator()}
}

// RegisterRoutes mounts the handlers on rg. requireCaller guards every
// mutating route.
func (h *TradingHandler) RegisterRoutes(rg *gin.RouterGroup, requireCaller gin.HandlerFunc) {
	rg.GET("/stats", h.Stats)

	commodities := rg.Group("/commodities")
	{
		commodities.GET("", h.ListCommodities)
		commodities.GET("/:id", h.GetCommodity)
		commodities.POST("", requireCaller, h.RegisterCommodity)
		commodities.PUT("/:id/price", requireCaller, h.SetPrice)
		commodities.POST("/:id/buy", requireCaller, h.Buy)
		commodities.POST("/:id/sell", requireCaller, h.Sell)
	}

	trades := rg.Group("/trades")
	{
		trades.GET("", h.ListTrades)
		trades.GET("/:id", h.GetTrade)
	}

	accounts := rg.Group("/accounts/:account")
	{
		accounts.GET("/trades", h.AccountTrades)
		accounts.GET("/holdings", h.AccountHoldings)
		accounts.GET("/holdings/:id", h.AccountHolding)
		accounts.GET("/value", h.AccountValue)
		accounts.POST("/deposit", requireCaller, h.Deposit)
	}

	rg.POST("/fees/withdraw", requireCaller, h.WithdrawFees)
}

// Caller returns the account set by the caller middleware.
func Caller(c *gin.Context) models.AccountID {
	return models.AccountID(c.GetString(CallerKey))
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		responses.BadRequest(c, name+" must be an unsigned integer")
		return 0, false
	}
	return id, true
}

type registerRequest struct {
	Name         string `json:"name" binding:"max=64"`
	Symbol       string `json:"symbol" binding:"max=16"`
	InitialPrice uint64 `json:"initial_price"`
	TotalSupply  uint64 `json:"total_supply"`
}

type priceRequest struct {
	Price uint64 `json:"price"`
}

type buyRequest struct {
	Amount uint64 `json:"amount"`
	Value  uint64 `json:"value"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		responses.BadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *TradingHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, stats)
}

func (h *TradingHandler) ListCommodities(c *gin.Context) {
	responses.Success(c, h.service.ListCommodities())
}

func (h *TradingHandler) GetCommodity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	commodity, err := h.service.GetCommodity(id)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, commodity)
}

func (h *TradingHandler) RegisterCommodity(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	if err := h.validator.Label("name", req.Name); err != nil {
		responses.FromError(c, err)
		return
	}
	if err := h.validator.Symbol(req.Symbol); err != nil {
		responses.FromError(c, err)
		return
	}
	commodity, err := h.service.RegisterCommodity(c.Request.Context(), Caller(c), req.Name, req.Symbol, req.InitialPrice, req.TotalSupply)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Created(c, commodity, "Commodity registered")
}

func (h *TradingHandler) SetPrice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req priceRequest
	if !bind(c, &req) {
		return
	}
	commodity, err := h.service.SetPrice(c.Request.Context(), Caller(c), id, req.Price)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, commodity, "Price updated")
}

func (h *TradingHandler) Buy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req buyRequest
	if !bind(c, &req) {
		return
	}
	exec, err := h.service.Buy(c.Request.Context(), Caller(c), id, req.Amount, req.Value)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Created(c, exec, "Trade executed")
}

func (h *TradingHandler) Sell(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req amountRequest
	if !bind(c, &req) {
		return
	}
	exec, err := h.service.Sell(c.Request.Context(), Caller(c), id, req.Amount)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Created(c, exec, "Trade executed")
}

func (h *TradingHandler) ListTrades(c *gin.Context) {
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		responses.BadRequest(c, "after must be an unsigned integer")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		responses.BadRequest(c, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxPageLimit)

	trades := h.service.ListTrades(after, limit)
	var next uint64
	if len(trades) == limit {
		next = trades[len(trades)-1].ID
	}
	responses.Page(c, trades, next, limit)
}

func (h *TradingHandler) GetTrade(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	trade, err := h.service.GetTrade(id)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, trade)
}

func (h *TradingHandler) AccountTrades(c *gin.Context) {
	responses.Success(c, h.service.TradesByTrader(models.AccountID(c.Param("account"))))
}

func (h *TradingHandler) AccountHoldings(c *gin.Context) {
	holdings := h.service.Holdings(models.AccountID(c.Param("account")))
	if holdings == nil {
		holdings = []models.Holding{}
	}
	responses.Success(c, holdings)
}

func (h *TradingHandler) AccountHolding(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	amount := h.service.Holding(models.AccountID(c.Param("account")), id)
	responses.Success(c, models.Holding{CommodityID: id, Amount: amount})
}

type valueResponse struct {
	Account models.AccountID `json:"account"`
	Balance uint64           `json:"balance"`
}

func (h *TradingHandler) AccountValue(c *gin.Context) {
	account := models.AccountID(c.Param("account"))
	balance, err := h.service.ValueBalance(c.Request.Context(), account)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, valueResponse{Account: account, Balance: balance})
}

func (h *TradingHandler) Deposit(c *gin.Context) {
	var req amountRequest
	if !bind(c, &req) {
		return
	}
	account := models.AccountID(c.Param("account"))
	balance, err := h.service.Deposit(c.Request.Context(), Caller(c), account, req.Amount)
	if err != nil {
		responses.FromError(c, err)
		return
	}
	responses.Success(c, valueResponse{Account: account, Balance: balance}, "Account funded")
}

type withdrawResponse struct {
	Amount uint64 `json:"amount"`
}

func (h *TradingHandler) WithdrawFees(c *gin.Context) {
	amount, err := h.service.WithdrawFees(c.Request.Context(), Caller(c))
	if err != nil {
		h.logger.Debug("Fee withdrawal rejected", zap.String("caller", string(Caller(c))), zap.Error(err))
		responses.FromError(c, err)
		return
	}
	responses.Success(c, withdrawResponse{Amount: amount}, "Fees withdrawn")
}
