package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/learningreport/account-service/internal/api/handler"
	"github.com/learningreport/account-service/internal/api/middleware"
	"github.com/learningreport/account-service/internal/core/domain"
	"github.com/learningreport/account-service/internal/core/ports"
)

// Dependencies groups everything the router needs.
type Dependencies struct {
	Accounts ports.AccountService
	Tokens   ports.TokenVerifier
	// Probes are checked by /health/ready, keyed by dependency name.
	Probes map[string]handler.Probe
	Logger zerolog.Logger
	// AdminOnlyAccounts puts the account management routes behind an Admin token.
	AdminOnlyAccounts bool
	// Registry receives the HTTP metrics and backs /metrics. Nil uses the
	// default Prometheus registry, which also holds the service metrics.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "accounts",
		Subsystem:  "http",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Handlers ---
	accountHandler := handler.NewAccountHandler(deps.Accounts)
	authHandler := handler.NewAuthHandler(deps.Accounts)
	healthHandler := handler.NewHealthHandler(deps.Probes)
	authMiddleware := middleware.Auth(deps.Tokens, deps.Logger)

	// --- Account routes ---
	users := e.Group("/api/users")

	users.POST("/login", authHandler.Login)
	users.GET("/me", authHandler.Me, authMiddleware)

	manage := []echo.MiddlewareFunc{}
	if deps.AdminOnlyAccounts {
		manage = append(manage, authMiddleware, middleware.RBAC(domain.RoleAdmin))
	}
	users.GET("", accountHandler.List, manage...)
	users.POST("", accountHandler.Create, manage...)
	users.GET("/:id", accountHandler.Get, manage...)
	users.PUT("/:id", accountHandler.Update, manage...)
	users.DELETE("/:id", accountHandler.Delete, manage...)

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
