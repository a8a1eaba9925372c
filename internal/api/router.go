// Package api wires together all HTTP routes for the sales pipeline backend.
//
// Route grouping philosophy:
//   - /api/v1/auth/ endpoints are unauthenticated but sit behind a stricter
//     rate limit, since credential stuffing is the main abuse vector.
//   - Everything else under /api/v1/ requires a bearer token, and the
//     org-scoped subtree additionally requires an X-Organization-Id header
//     naming an organization the caller belongs to.
package api

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/salespipe/salespipe/internal/api/handlers"
	"github.com/salespipe/salespipe/internal/auth"
	"github.com/salespipe/salespipe/internal/cache"
	"github.com/salespipe/salespipe/internal/config"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/middleware"
	"github.com/salespipe/salespipe/internal/service"
)

// BackgroundServices holds references to background resources that must be
// stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// rateLimitMiddleware picks the limiter backend. With a Redis cache the limit
// is enforced through redis_rate so all instances share one budget; otherwise
// an in-memory token bucket is used and registered for shutdown.
func (bg *BackgroundServices) rateLimitMiddleware(c cache.Cache, cfg middleware.RateLimitConfig) gin.HandlerFunc {
	if rc, ok := c.(*cache.RedisCache); ok {
		return middleware.RedisRateLimitMiddleware(middleware.NewRedisRateLimiter(rc.Client(), cfg))
	}
	limiter := middleware.NewRateLimiter(cfg)
	bg.rateLimiters = append(bg.rateLimiters, limiter)
	return middleware.RateLimitMiddleware(limiter)
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB, c cache.Cache) (*gin.Engine, *BackgroundServices) {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	bg := &BackgroundServices{}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		log.Fatalf("Failed to initialize token manager: %v", err)
	}

	// Repositories. Deal queries go through sqlx for transaction support; the
	// rest use the plain handle.
	sqlxDB := sqlx.NewDb(db, "postgres")
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	contactRepo := repositories.NewContactRepository(db)
	dealRepo := repositories.NewDealRepository(sqlxDB)
	taskRepo := repositories.NewTaskRepository(db)
	activityRepo := repositories.NewActivityRepository(db)

	authSvc := service.NewAuthService(userRepo, orgRepo, tokens)
	orgSvc := service.NewOrganizationService(orgRepo)
	contactSvc := service.NewContactService(contactRepo, dealRepo)
	dealSvc := service.NewDealService(dealRepo, contactRepo, orgRepo, activityRepo)
	taskSvc := service.NewTaskService(taskRepo, dealRepo, activityRepo)
	activitySvc := service.NewActivityService(activityRepo, dealRepo)
	analyticsSvc := service.NewAnalyticsService(dealRepo, c, cfg.Cache.TTL, slog.Default())

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// System endpoints
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, c))
	router.GET("/version", versionHandler())

	v1 := router.Group("/api/v1")

	// Auth endpoints are public but throttled harder than the rest of the API.
	authGroup := v1.Group("/auth")
	if cfg.Security.RateLimiting.Enabled {
		authGroup.Use(bg.rateLimitMiddleware(c, middleware.AuthRateLimitConfig(cfg.Security.RateLimiting)))
	}
	authGroup.POST("/register", handlers.RegisterHandler(authSvc))
	authGroup.POST("/login", handlers.LoginHandler(authSvc))
	authGroup.POST("/refresh", handlers.RefreshHandler(authSvc))

	authed := v1.Group("")
	if cfg.Security.RateLimiting.Enabled {
		authed.Use(bg.rateLimitMiddleware(c, middleware.APIRateLimitConfig(cfg.Security.RateLimiting)))
	}
	authed.Use(middleware.AuthMiddleware(tokens, userRepo))

	authed.GET("/organizations/me", handlers.ListOrganizationsHandler(orgSvc))

	// Everything below is scoped to one organization via X-Organization-Id.
	org := authed.Group("")
	org.Use(middleware.OrgContextMiddleware(orgSvc))

	org.GET("/organizations/current", handlers.CurrentOrganizationHandler())

	org.POST("/contacts", handlers.CreateContactHandler(contactSvc))
	org.GET("/contacts", handlers.ListContactsHandler(contactSvc))
	org.GET("/contacts/:contact_id", handlers.GetContactHandler(contactSvc))
	org.DELETE("/contacts/:contact_id", handlers.DeleteContactHandler(contactSvc))

	org.POST("/deals", handlers.CreateDealHandler(dealSvc))
	org.GET("/deals", handlers.ListDealsHandler(dealSvc))
	org.GET("/deals/:deal_id", handlers.GetDealHandler(dealSvc))
	org.PATCH("/deals/:deal_id", handlers.UpdateDealHandler(dealSvc))

	org.GET("/deals/:deal_id/activities", handlers.ListActivitiesHandler(activitySvc))
	org.POST("/deals/:deal_id/activities", handlers.AddCommentHandler(activitySvc))

	org.POST("/tasks", handlers.CreateTaskHandler(taskSvc))
	org.GET("/tasks", handlers.ListTasksHandler(taskSvc))

	org.GET("/analytics/deals/summary", handlers.DealsSummaryHandler(analyticsSvc))
	org.GET("/analytics/deals/funnel", handlers.DealsFunnelHandler(analyticsSvc))

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database and cache connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the cache backend so
// that a Kubernetes readiness gate fails when analytics reads would error.
func readinessHandler(db *sql.DB, c cache.Cache) gin.HandlerFunc {
	return func(gc *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			gc.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Probe the cache with a known-absent sentinel key. Get exercises
		// connectivity without creating any state.
		if _, _, err := c.Get(gc.Request.Context(), ".readiness-probe"); err != nil {
			checks["cache"] = "unhealthy"
			gc.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "cache backend not ready",
			})
			return
		}
		checks["cache"] = "healthy"

		gc.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Organization-Id")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
