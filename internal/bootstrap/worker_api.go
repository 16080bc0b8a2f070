package bootstrap

import (
	"context"
	"strings"

	"github.com/InboxGenie/IG-Gmail-MCP/adapter/in/http"
	"github.com/InboxGenie/IG-Gmail-MCP/config"
	"github.com/InboxGenie/IG-Gmail-MCP/infra/database"
	"github.com/InboxGenie/IG-Gmail-MCP/infra/middleware"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewAPI connects every backend and returns the HTTP app.
func NewAPI(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := NewApp(cfg, deps)
	logger.Info("API server initialized successfully")
	return app, cleanup, nil
}

// NewApp wires routes and middleware around already built dependencies.
func NewApp(cfg *config.Config, deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json for both directions, matching the handlers.
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:          1 * 1024 * 1024,
		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())

	// AllowCredentials:true requires explicit origins (not "*")
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		allowOrigins = "*"
		allowCredentials = false
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health and metrics (no auth required)
	health := http.NewHealthHandler()
	if deps.DB != nil {
		health.WithCheck("postgres", deps.DB)
	}
	if deps.Redis != nil {
		health.WithCheck("redis", http.PingFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}))
	}
	if deps.MongoDB != nil {
		health.WithCheck("mongodb", http.PingFunc(func(ctx context.Context) error {
			return deps.MongoDB.Ping(ctx, nil)
		}))
	}
	health.Register(app)

	metricsHandler := http.NewMetricsHandler(deps.Latency).WithCache("embeddings", deps.Embedder)
	if deps.DB != nil {
		metricsHandler.WithPool("postgres", func() map[string]any {
			return metrics.CollectPoolStats(deps.DB).ToMap()
		})
	}
	if deps.Redis != nil {
		metricsHandler.WithPool("redis", func() map[string]any {
			st := database.GetRedisStats(deps.Redis)
			return map[string]any{
				"hits":        st.Hits,
				"misses":      st.Misses,
				"timeouts":    st.Timeouts,
				"total_conns": st.TotalConns,
				"idle_conns":  st.IdleConns,
			}
		})
	}
	metricsHandler.Register(app)

	// API routes (auth first so the limiter can key on the user)
	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	api.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Handler())

	http.NewSearchHandler(deps.SearchService).Register(api)

	return app
}
