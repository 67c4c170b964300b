package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xbrldata/keygate/internal/config"
	"github.com/xbrldata/keygate/internal/handler"
	"github.com/xbrldata/keygate/internal/keys"
	"github.com/xbrldata/keygate/internal/middleware"
	"github.com/xbrldata/keygate/internal/ratelimit"
	"github.com/xbrldata/keygate/internal/repository"
	"github.com/xbrldata/keygate/internal/service"
	"github.com/xbrldata/keygate/internal/storage"
	"github.com/xbrldata/keygate/internal/usage"
)

type Server struct {
	router        *gin.Engine
	config        *config.Config
	redis         *storage.RedisClient
	postgres      *storage.Postgres
	apiKeyService *service.APIKeyService
	authService   *service.AuthService
	recorder      *usage.Recorder
	limiter       *ratelimit.Tiered
	apiKeyHandler *handler.APIKeyHandler
	verifyHandler *handler.VerifyHandler
	tierHandler   *handler.TierHandler
	httpServer    *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	credRepo := repository.NewCredentialRepository(postgres)
	tierRepo := repository.NewTierRepository(postgres)

	generator := keys.NewGenerator(cfg.Keys.Env)
	hasher := keys.NewHasher(cfg.Keys.Pepper, cfg.Keys.BcryptCost)

	recorder := usage.NewRecorder(credRepo, cfg.Usage.BufferSize)

	apiKeyService := service.NewAPIKeyService(credRepo, tierRepo, generator, hasher).
		WithRecorder(recorder)
	authService := service.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)

	limiter := ratelimit.NewTiered(ratelimit.NewStore(cfg.RateLimit.Backend, redis))

	s := &Server{
		router:        router,
		config:        cfg,
		redis:         redis,
		postgres:      postgres,
		apiKeyService: apiKeyService,
		authService:   authService,
		recorder:      recorder,
		limiter:       limiter,
		apiKeyHandler: handler.NewAPIKeyHandler(apiKeyService),
		verifyHandler: handler.NewVerifyHandler(apiKeyService, limiter),
		tierHandler:   handler.NewTierHandler(tierRepo, credRepo),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	// Key management, consumed by the web app with a service token.
	admin := s.router.Group("/admin", middleware.RequireAuth(s.authService))
	{
		admin.POST("/keys", s.apiKeyHandler.Create)
		admin.GET("/keys", s.apiKeyHandler.List)
		admin.GET("/keys/:id", s.apiKeyHandler.Get)
		admin.PATCH("/keys/:id", s.apiKeyHandler.Update)
		admin.POST("/keys/:id/rotate", s.apiKeyHandler.Rotate)
		admin.DELETE("/keys/:id", s.apiKeyHandler.Revoke)
		admin.GET("/tiers", s.tierHandler.List)
	}

	// Out-of-process verification for data-plane services.
	internal := s.router.Group("/internal", middleware.RequireAuth(s.authService))
	{
		internal.POST("/verify", s.verifyHandler.Verify)
		internal.POST("/consume", s.verifyHandler.Consume)
	}

	// Key-protected surface: verification then throttling, in order.
	protected := s.router.Group("/v1",
		middleware.VerifyAPIKey(s.apiKeyService),
		middleware.TierRateLimit(s.limiter),
	)
	{
		protected.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "pong",
				"tier":    c.GetString(middleware.ContextKeyTier),
			})
		})
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "keygate",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

// AuthService exposes the token service for bootstrap tooling.
func (s *Server) AuthService() *service.AuthService {
	return s.authService
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.recorder.Close()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
