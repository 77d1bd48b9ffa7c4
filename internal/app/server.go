// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"arborlead-service/internal/config"
	"arborlead-service/internal/db"
	authHandler "arborlead-service/internal/handlers/auth"
	kpiHandler "arborlead-service/internal/handlers/kpi"
	leadHandler "arborlead-service/internal/handlers/lead"
	partnerHandler "arborlead-service/internal/handlers/partner"
	quoteHandler "arborlead-service/internal/handlers/quote"
	wsHandler "arborlead-service/internal/handlers/ws"
	"arborlead-service/internal/middleware"
	"arborlead-service/internal/pkg/cache"
	"arborlead-service/internal/pkg/jwt"
	"arborlead-service/internal/pkg/session"
	"arborlead-service/internal/repository/postgres"
	authsvc "arborlead-service/internal/service/auth"
	"arborlead-service/internal/service/automation"
	"arborlead-service/internal/service/billing"
	"arborlead-service/internal/service/email"
	kpisvc "arborlead-service/internal/service/kpi"
	"arborlead-service/internal/service/notification"
	partnersvc "arborlead-service/internal/service/partner"
	"arborlead-service/internal/service/workflow"
	"arborlead-service/internal/websocket"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	httpServer *http.Server
	automation *automation.AutomationService
	cancel     context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New()}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Logger -----
	var logger *zap.Logger
	var err error
	if s.cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to stores")

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session store & rate limiter -----
	sessionStore := session.NewStore(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)
	cacheClient := cache.NewClient(redisClient)

	// ----- Email -----
	emailSender := email.NewEmailSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)

	// ----- Repositories -----
	leadRepo := postgres.NewLeadRepository(pool)
	quoteRepo := postgres.NewQuoteRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	kpiRepo := postgres.NewKPIRepository(pool)

	// ----- WebSocket hub -----
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// ----- Services -----
	kpiService := kpisvc.NewKPIService(kpiRepo, cacheClient, logger)
	notifyService := notification.NewNotificationService(emailSender, s.cfg.PublicURL, logger)
	billingService := billing.NewBillingService(
		leadRepo,
		userRepo,
		kpiService,
		notifyService,
		s.cfg.LeadFee,
		logger,
	)
	leadExpiry := time.Duration(s.cfg.LeadExpiryHours) * time.Hour
	workflowService := workflow.NewWorkflowService(
		leadRepo,
		quoteRepo,
		userRepo,
		billingService,
		kpiService,
		notifyService,
		hub,
		s.cfg.LeadFee,
		s.cfg.DefaultCommissionRate,
		leadExpiry,
		logger,
	)
	partnerService := partnersvc.NewPartnerService(userRepo, logger)
	authService := authsvc.NewAuthService(userRepo, jwtManager, sessionStore, rateLimiter, logger)

	// ----- Seed admin -----
	if err := authService.EnsureAdminExists(ctx, s.cfg.AdminEmail, s.cfg.AdminPassword); err != nil {
		logger.Error("failed to seed admin account", zap.Error(err))
	}

	// ----- Automation sweeps -----
	s.automation = automation.NewAutomationService(
		leadRepo,
		kpiService,
		billingService,
		kpiService,
		leadExpiry,
		logger,
	)
	if err := s.automation.Start(ctx); err != nil {
		return fmt.Errorf("failed to start automation: %w", err)
	}

	// ----- Handlers -----
	handlers := &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(authService),
		LeadHandler:    leadHandler.NewLeadHandler(workflowService),
		PartnerHandler: partnerHandler.NewPartnerHandler(workflowService, partnerService),
		QuoteHandler:   quoteHandler.NewQuoteHandler(workflowService),
		KPIHandler:     kpiHandler.NewKPIHandler(kpiService),
		WSHandler:      wsHandler.NewWSHandler(hub, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	SetupRouter(s.engine, handlers)

	// ----- HTTP server -----
	s.httpServer = &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	logger.Info("server starting",
		zap.String("addr", s.cfg.HTTPAddr),
		zap.String("environment", s.cfg.Environment))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener, the cron sweeps and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.automation != nil {
		s.automation.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.logger != nil {
		defer s.logger.Sync()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
