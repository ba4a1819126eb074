package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Aidin1998/commodex/api/handlers"
	"github.com/Aidin1998/commodex/api/responses"
	"github.com/Aidin1998/commodex/internal/config"
	"github.com/Aidin1998/commodex/internal/trading"
)

// Request headers
const (
	HeaderAccountID = "X-Account-ID"
	HeaderRequestID = "X-Request-ID"
)

// Server represents the API server
type Server struct {
	router     *gin.Engine
	logger     *zap.Logger
	trading    *handlers.TradingHandler
	httpServer *http.Server
}

// NewServer creates a new API server around the trading service
func NewServer(logger *zap.Logger, cfg config.HTTPConfig, svc trading.TradingService) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &Server{
		logger:  logger,
		trading: handlers.NewTradingHandler(logger.Named("http"), svc),
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderAccountID, HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	server.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")
	v1.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1.GET("/health", s.healthCheck)
	s.trading.RegisterRoutes(v1, requireCaller())
}

// Start serves HTTP on the configured address until Shutdown is called. It
// returns nil after a clean shutdown, including one that came first.
func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// requestID tags every request with an id, reusing the client's when sent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(responses.TraceIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// requireCaller takes the caller's account from the X-Account-ID header.
// The header is trusted; authenticating it is the job of the gateway.
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(HeaderAccountID)
		if caller == "" {
			responses.MissingCaller(c)
			return
		}
		c.Set(handlers.CallerKey, caller)
		c.Next()
	}
}
