// Package server exposes the faucet over HTTP: POST /claim,
// GET /status/:wallet, GET /balance, plus health and metrics endpoints.
// Every response carries a success flag; failures add a machine-readable
// error code and a human-readable message, never internal error detail.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clayrobbins/brokeagent-cash/internal/faucet"
	"github.com/clayrobbins/brokeagent-cash/internal/sol"
)

// TreasuryReader reports the faucet's funding balances.
type TreasuryReader interface {
	Balances(ctx context.Context) (*sol.TreasuryBalances, error)
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config carries the presentation values the handlers need.
type Config struct {
	// ClaimMessage is returned on successful claims,
	// e.g. "Claimed $1 CASH + 0.001 SOL".
	ClaimMessage string
	// WalletSetupURL is included in no_wallet responses.
	WalletSetupURL string
}

// Server wires the gin router around the claim service.
type Server struct {
	engine   *gin.Engine
	service  *faucet.Service
	treasury TreasuryReader
	health   Pinger
	metrics  *metricsRegistry
	cfg      Config
	log      *slog.Logger
}

// New builds the router. treasury and health may be nil; the corresponding
// endpoints then degrade gracefully.
func New(service *faucet.Service, treasury TreasuryReader, health Pinger, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		service:  service,
		treasury: treasury,
		health:   health,
		metrics:  newMetricsRegistry(),
		cfg:      cfg,
		log:      log,
	}

	engine.Use(s.requestLogger())

	engine.POST("/claim", s.handleClaim)
	engine.GET("/status/:wallet", s.handleStatus)
	engine.GET("/balance", s.handleBalance)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(s.metrics.handler()))

	return s
}

// Handler exposes the router for tests and for mounting.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("requestID", requestID)
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"requestId", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type claimRequest struct {
	WalletAddress string `json:"walletAddress"`
}

func (s *Server) handleClaim(c *gin.Context) {
	start := time.Now()

	var req claimRequest
	// A missing or empty body is treated the same as a missing wallet.
	_ = c.ShouldBindJSON(&req)

	record, err := s.service.Claim(c.Request.Context(), req.WalletAddress)
	s.metrics.observeClaim(time.Since(start).Seconds())
	if err != nil {
		code := s.writeClaimError(c, err)
		s.metrics.incClaim(code)
		return
	}

	s.metrics.incClaim("success")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"solTx":   record.SolTx,
		"cashTx":  record.CashTx,
		"message": s.cfg.ClaimMessage,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	wallet := c.Param("wallet")

	record, err := s.service.Status(c.Request.Context(), wallet)
	if err != nil {
		code := s.writeClaimError(c, err)
		s.metrics.incStatus(code)
		return
	}

	if record == nil {
		s.metrics.incStatus("unclaimed")
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"claimed": false,
		})
		return
	}

	s.metrics.incStatus("claimed")
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"claimed":   true,
		"solTx":     record.SolTx,
		"cashTx":    record.CashTx,
		"claimedAt": record.ClaimedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleBalance(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")

	if s.treasury == nil {
		s.writeError(c, http.StatusInternalServerError, faucet.CodeServerError, "Balance reporting is not configured")
		return
	}
	balances, err := s.treasury.Balances(c.Request.Context())
	if err != nil {
		s.log.Error("balance check failed", "error", err)
		s.writeError(c, http.StatusInternalServerError, faucet.CodeServerError, "An unknown error occurred")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"sol":           balances.Sol,
		"cash":          balances.Cash,
		"solFormatted":  fmt.Sprintf("%.4f", balances.Sol),
		"cashFormatted": fmt.Sprintf("%.2f", balances.Cash),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeClaimError maps a pipeline outcome to its HTTP response and returns
// the error code for metrics.
func (s *Server) writeClaimError(c *gin.Context, err error) string {
	var claimErr *faucet.ClaimError
	if !errors.As(err, &claimErr) {
		s.writeError(c, http.StatusInternalServerError, faucet.CodeServerError, "An unknown error occurred")
		return faucet.CodeServerError
	}

	status := http.StatusInternalServerError
	switch claimErr.Code {
	case faucet.CodeNoWallet, faucet.CodeInvalidWallet, faucet.CodeAlreadyClaimed:
		status = http.StatusBadRequest
	}

	body := gin.H{
		"success": false,
		"error":   claimErr.Code,
		"message": claimErr.Message,
	}
	if claimErr.Code == faucet.CodeNoWallet && s.cfg.WalletSetupURL != "" {
		body["setupUrl"] = s.cfg.WalletSetupURL
	}
	c.JSON(status, body)
	return claimErr.Code
}

func (s *Server) writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
