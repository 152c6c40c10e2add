// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/config"
	"github.com/tbourn/go-sensorhub-backend/internal/counter"
	"github.com/tbourn/go-sensorhub-backend/internal/faults"
	"github.com/tbourn/go-sensorhub-backend/internal/http/handlers"
	"github.com/tbourn/go-sensorhub-backend/internal/http/middleware"
	"github.com/tbourn/go-sensorhub-backend/internal/ratelimit"
	"github.com/tbourn/go-sensorhub-backend/internal/services"
)

// Deps carries the injectable collaborators for route wiring. Zero-value
// fields fall back to the shipped implementations: an in-memory counter
// store, an HTTP receiver pointed at the configured downstream (or the local
// mock), probabilistic fault injectors, and the mock payment provider.
type Deps struct {
	// Counter backs the fixed-window rate limiter.
	Counter counter.Store
	// Receiver is the downstream relay delivery port.
	Receiver services.Receiver
	// Charger is the payment provider port.
	Charger services.Charger
	// RelayFaults decides failures for POST /mock-relay/receive.
	RelayFaults faults.Injector
	// PayFaults decides failures for POST /mock-pay/charge.
	PayFaults faults.Injector
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), edge rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the public API at the configured base path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Edge rate limiter (per credential/IP flood protection; the tight
//     per-device and per-client fixed windows live in the services)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // relay client credential
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket edge limiter per credential/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAPIKeyOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/readiness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Dependency injection: services ← db/limiter/ports
	store := deps.Counter
	if store == nil {
		store = counter.NewMemoryStore()
	}
	limiter := ratelimit.New(store)

	relayFaults := deps.RelayFaults
	if relayFaults == nil {
		relayFaults = faults.NewRandom(cfg.Relay.FailRate, time.Now().UnixNano())
	}
	payFaults := deps.PayFaults
	if payFaults == nil {
		payFaults = faults.NewRandom(cfg.Billing.PayFailRate, time.Now().UnixNano())
	}

	receiver := deps.Receiver
	if receiver == nil {
		target := cfg.Relay.TargetURL
		if target == "" {
			// Default downstream is this process's own mock receiver.
			target = "http://localhost:" + cfg.Port + joinBasePath(cfg.APIBasePath, "/mock-relay/receive")
		}
		receiver = &services.HTTPReceiver{URL: target}
	}
	charger := deps.Charger
	if charger == nil {
		charger = &services.MockCharger{Injector: payFaults}
	}

	telSvc := services.NewTelemetryService(db, limiter)
	telSvc.RateLimit = cfg.TelemetryLimit.Limit
	telSvc.RateWindow = cfg.TelemetryLimit.Window

	relaySvc := services.NewRelayService(db, limiter, receiver)
	relaySvc.MaxAttempts = cfg.Relay.MaxAttempts
	relaySvc.BackoffBase = cfg.Relay.BackoffBase
	relaySvc.RateLimit = cfg.RelayLimit.Limit
	relaySvc.RateWindow = cfg.RelayLimit.Window

	devSvc := &services.DeviceService{DB: db}
	billSvc := &services.BillingService{DB: db, Charger: charger}

	h := handlers.New(telSvc, relaySvc, devSvc, billSvc)
	mocks := &handlers.MockHandlers{Relay: relayFaults, Pay: payFaults}

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Telemetry
		api.POST("/telemetry/ping", h.PingTelemetry)

		// Relay
		api.POST("/relay/publish", h.PublishRelay)
		api.POST("/mock-relay/receive", mocks.ReceiveRelay)

		// Devices
		api.GET("/device/latest", h.LatestDevice)

		// Billing
		api.POST("/billing/subscribe", h.Subscribe)
		api.POST("/mock-pay/charge", mocks.Charge)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinBasePath joins the API base path and a route, treating "/" as root.
func joinBasePath(base, route string) string {
	if base == "" || base == "/" {
		return route
	}
	return base + route
}
