// Package server contains the HTTP handlers and routing for the treematch API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"treematch/internal/config"
	"treematch/internal/featureflags"
	"treematch/internal/middleware"
	"treematch/internal/notifications"
	"treematch/internal/repository"
	"treematch/internal/secure"
	"treematch/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	notifier       *notifications.Notifier
	featureFlags   *featureflags.Manager

	authService      *service.AuthService
	matchService     *service.MatchService
	blockService     *service.BlockService
	chatService      *service.ChatService
	discoveryService *service.DiscoveryService
	adminService     *service.AdminService
}

// NewServer creates a Server over already-initialized dependencies.
// redisClient may be nil; rate limits then fail open and match and message events are dropped.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	vault, err := secure.NewVault(key, []byte(cfg.FingerprintKey))
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	middleware.InitMiddleware(cfg)

	store := repository.NewStore(db)
	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient)

	limits := service.TreeLimits{
		ChainMaxDepth:  cfg.ReferralChainMaxDepth,
		TreeMaxDepth:   cfg.ReferralTreeMaxDepth,
		TreeDepthLimit: cfg.ReferralTreeDepthLimit,
	}
	search := service.SearchLimits{
		DefaultPageSize: cfg.SearchDefaultPageSize,
		MaxPageSize:     cfg.SearchMaxPageSize,
	}

	referrals := service.NewReferralService(store, vault, limits)
	blocks := service.NewBlockService(store, vault)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("treematch-api"),
		notifier:       notifier,
		featureFlags:   flags,

		blockService:     blocks,
		chatService:      service.NewChatService(store, vault, blocks, notifier),
		matchService:     service.NewMatchService(store, vault, notifier),
		discoveryService: service.NewDiscoveryService(store, vault, referrals, blocks, flags, search),
		adminService:     service.NewAdminService(store, vault, referrals),
		authService: service.NewAuthService(store, vault, referrals, service.AuthConfig{
			JWTSecret:     cfg.JWTSecret,
			TokenTTL:      time.Duration(cfg.JWTTTLHours) * time.Hour,
			SetupPassword: cfg.AdminSetupPassword,
		}),
	}
	return s, nil
}

// App builds the fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "treematch API",
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// fiber refuses a wildcard origin together with credentials.
	origins := s.config.AllowedOrigins
	if origins == "" || origins == "*" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	api.Post("/setup/root", s.InitializeRoot)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/validate-referral/:code", s.ValidateReferralCode)
	auth.Get("/me", middleware.AuthRequired, s.Me)

	protected := api.Group("", middleware.AuthRequired)

	referrals := protected.Group("/referrals")
	referrals.Get("/tree", s.GetMyTree)
	referrals.Get("/chain/:userId", s.GetChain)
	referrals.Get("/stats", s.GetReferralStats)
	referrals.Get("/mine", s.GetMyReferrals)
	referrals.Get("/referrer", s.GetMyReferrer)
	referrals.Get("/distance/:userId", s.GetDistance)

	// Static paths before the generic /:id routes.
	users := protected.Group("/users")
	users.Get("/search", s.SearchUsers)
	users.Get("/matches", s.GetMatches)
	users.Get("/blocked", s.GetBlockedUsers)
	users.Put("/me", s.UpdateMyProfile)
	users.Post("/:id/like", middleware.RateLimit(s.redis, 60, time.Minute, "like"), s.LikeUser)
	users.Post("/:id/block", middleware.RateLimit(s.redis, 30, time.Minute, "block"), s.BlockUser)
	users.Delete("/:id/block", s.UnblockUser)
	users.Get("/:id", s.GetUserProfile)

	chat := protected.Group("/chat")
	chat.Get("/conversations", s.GetConversations)
	chat.Get("/unread-count", s.GetUnreadCount)
	chat.Post("/send", middleware.RateLimit(s.redis, 60, time.Minute, "chat_send"), s.SendMessage)
	chat.Post("/start/:userId", s.StartChat)
	chat.Get("/:chatId/messages", s.GetChatMessages)
	chat.Delete("/:chatId", s.DeleteChat)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/stats", s.GetAdminStats)
	admin.Get("/users", s.ListAdminUsers)
	admin.Post("/users/:id/suspend", s.SuspendUser)
	admin.Post("/users/:id/unsuspend", s.UnsuspendUser)
	admin.Delete("/users/:id", s.DeleteUser)
	admin.Get("/tree/verify", s.VerifyTree)
}

// HealthCheck reports database and Redis reachability.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis only backs rate limits and events, so its absence degrades but does not fail.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	} else if redisStatus != "healthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// AdminRequired returns middleware that rejects everyone except the root user.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := middleware.CurrentUserID(c)
		if err := s.adminService.RequireRoot(middleware.UserContext(c), userID); err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}

// Start runs the HTTP listener until it fails or is shut down.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown drains in-flight requests. The database and Redis clients belong
// to the caller and are closed by it.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		return err
	}
	middleware.Logger.Info("Server shutdown complete")
	return nil
}
