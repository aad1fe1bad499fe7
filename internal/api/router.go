package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/account-service/docs"
	"github.com/99minutos/account-service/internal/api/handler"
	"github.com/99minutos/account-service/internal/api/middleware"
	"github.com/99minutos/account-service/internal/core/ports"
	"github.com/99minutos/account-service/internal/core/domain"
)

// Deps holds everything the router needs to build the HTTP surface.
type Deps struct {
	Service  ports.AccountService
	Verifier middleware.TokenVerifier
	Log      zerolog.Logger

	// Checks are the readiness probes served by /health/ready.
	Checks map[string]handler.CheckFunc

	// ProtectAdminRoutes puts the user management routes behind a token
	// carrying AdminRole.
	ProtectAdminRoutes bool
	AdminRole          string

	// Registry receives the HTTP metrics. Nil uses the default registerer.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsMiddlewareConfig(d.Registry)))

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(metricsHandlerConfig(d.Registry)))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)

	// --- Public account routes ---
	accounts := handler.NewAccountHandler(d.Service)

	e.POST("/register", accounts.Register)
	e.POST("/login", accounts.Login)
	e.GET("/verify-token", accounts.VerifyToken)

	// --- User management ---
	var guard []echo.MiddlewareFunc
	if d.ProtectAdminRoutes {
		role := d.AdminRole
		if role == "" {
			role = domain.RoleAdmin
		}
		guard = append(guard, middleware.Auth(d.Verifier), middleware.RequireRole(role))
	}

	e.GET("/users", accounts.List, guard...)
	e.GET("/user/:id", accounts.Get, guard...)
	e.PUT("/update/:id", accounts.Update, guard...)
	e.DELETE("/delete/:id", accounts.Delete, guard...)

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
			if v.Status >= 500 {
				event = log.Error().Err(v.Error)
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

func metricsMiddlewareConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{
		Namespace: "accounts",
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandlerConfig(reg *prometheus.Registry) echoprometheus.HandlerConfig {
	if reg == nil {
		return echoprometheus.HandlerConfig{}
	}
	return echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, reg},
	}
}
