// Package http provides the HTTP adapter for the application layer.
// Handlers are thin: they parse the request, call a service and translate
// classified failures to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given handlers
func NewServer(config ServerConfig, handlers *Handlers, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		handlers: handlers,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware logs method, path, status and latency per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// setupRoutes registers all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)

	v1 := s.router.Group("/api/v1")
	{
		claims := v1.Group("/claims")
		{
			claims.POST("", s.handlers.CreateClaim)
			claims.GET("", s.handlers.ListClaims)
			claims.GET("/:id", s.handlers.GetClaim)
			claims.GET("/:id/audit", s.handlers.GetClaimAudit)
			claims.POST("/:id/attachments", s.handlers.AttachDocument)
			claims.POST("/:id/submit", s.handlers.SubmitClaim)
			claims.POST("/:id/return", s.handlers.ReturnClaim)
			claims.POST("/:id/approve", s.handlers.ApproveClaim)
			claims.POST("/:id/override", s.handlers.OverrideApproveClaim)
			claims.POST("/:id/reject", s.handlers.RejectClaim)
			claims.POST("/:id/pay", s.handlers.PayClaim)
			claims.POST("/:id/flag-fraud", s.handlers.FlagFraud)
			claims.POST("/:id/clear-fraud", s.handlers.ClearFraudFlag)
			claims.POST("/:id/votes", s.handlers.CastVote)
			claims.GET("/:id/votes", s.handlers.ListVotes)
		}

		v1.GET("/fraud/heatmap", s.handlers.FraudHeatmap)

		policies := v1.Group("/policies")
		{
			policies.POST("", s.handlers.CreatePolicy)
			policies.GET("", s.handlers.ListPolicies)
			policies.GET("/:id", s.handlers.GetPolicy)
			policies.POST("/:id/activate", s.handlers.ActivatePolicy)
			policies.POST("/:id/cancel", s.handlers.CancelPolicy)
			policies.POST("/:id/quote-renewal", s.handlers.QuoteRenewal)
			policies.POST("/:id/renew", s.handlers.RenewPolicy)
		}

		members := v1.Group("/members")
		{
			members.POST("", s.handlers.CreateMember)
			members.GET("/:id", s.handlers.GetMember)
			members.POST("/:id/request-documents", s.handlers.RequestDocuments)
			members.POST("/:id/documents", s.handlers.AddMemberDocument)
			members.POST("/:id/documents/:docID/verify", s.handlers.VerifyMemberDocument)
			members.POST("/:id/approve", s.handlers.ApproveMember)
			members.POST("/:id/activate", s.handlers.ActivateMember)
			members.POST("/:id/suspend", s.handlers.SuspendMember)
			members.POST("/:id/reinstate", s.handlers.ReinstateMember)
			members.POST("/:id/terminate", s.handlers.TerminateMember)
		}

		bordereaux := v1.Group("/bordereaux")
		{
			bordereaux.POST("", s.handlers.GenerateBordereau)
			bordereaux.GET("/:id", s.handlers.GetBordereau)
			bordereaux.POST("/:id/confirm", s.handlers.ConfirmBordereau)
			bordereaux.POST("/:id/export", s.handlers.ExportBordereau)
		}

		settlements := v1.Group("/settlements")
		{
			settlements.POST("", s.handlers.CreateSettlement)
			settlements.POST("/:id/confirm", s.handlers.ConfirmSettlement)
			settlements.POST("/:id/settle", s.handlers.SettleSettlement)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server starting", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts the server down
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
