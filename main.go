package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GPT-Gradient/xynergy-core-sub001/audit"
	"github.com/GPT-Gradient/xynergy-core-sub001/breaker"
	"github.com/GPT-Gradient/xynergy-core-sub001/cache"
	"github.com/GPT-Gradient/xynergy-core-sub001/config"
	"github.com/GPT-Gradient/xynergy-core-sub001/controller"
	"github.com/GPT-Gradient/xynergy-core-sub001/db"
	"github.com/GPT-Gradient/xynergy-core-sub001/identity"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/middleware"
	"github.com/GPT-Gradient/xynergy-core-sub001/ratelimit"
	"github.com/GPT-Gradient/xynergy-core-sub001/realtime"
	"github.com/GPT-Gradient/xynergy-core-sub001/router"
	"github.com/GPT-Gradient/xynergy-core-sub001/tenant"
	"github.com/GPT-Gradient/xynergy-core-sub001/upstream"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.GetConfig()

	// Initialize logger
	logger.InitLogger()
	defer logger.Sync()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Initialize EventBus
	bus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	// Initialize audit trail
	auditRepository, err := audit.NewElasticsearchRepository(cfg.Audit.ElasticsearchURL, cfg.Audit.Index)
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository, cfg.Audit.Buffer)
	auditService.Start(ctx)

	// Initialize tiered response cache
	store := cache.NewTiered(
		cache.NewRedisStore(db.RedisClient, "gateway"),
		cfg.Cache.LocalMaxEntries,
		cfg.Cache.LocalTTL,
	)

	// Initialize breaker registry; transitions flow onto the bus
	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           cfg.Breaker.Window,
		Cooldown:         cfg.Breaker.Cooldown,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	}, func(name string, from, to breaker.State) {
		bus.Publish(ctx, util.EventBreakerTransition, map[string]string{
			"backend": name,
			"from":    from.String(),
			"to":      to.String(),
		})
	})

	// Initialize the service router over the configured backends
	backends := make(map[string]upstream.Backend, len(cfg.Backends))
	proxied := make([]string, 0, len(cfg.Backends))
	for name, b := range cfg.Backends {
		backends[name] = upstream.Backend{
			Name:      name,
			BaseURL:   b.BaseURL,
			Timeout:   b.Timeout,
			CacheTTL:  b.CacheTTL,
			Cacheable: b.Cacheable,
		}
		// The identity store is reached internally, never proxied
		if name != cfg.Identity.GrantBackend {
			proxied = append(proxied, name)
		}
	}
	serviceRouter := upstream.NewRouter(backends, breakers, store)

	// Initialize identity verification and the cached grant source
	verifier := identity.NewJWKSVerifier(cfg.Identity.JwksURL, cfg.Identity.SuperAdminGroup)
	grants := identity.NewGrants(
		identity.NewUpstreamGrantSource(serviceRouter, cfg.Identity.GrantBackend),
		store,
		cfg.Identity.GrantTTL,
	)
	enforcer := tenant.NewEnforcer(grants)

	// Initialize rate limiters per route class
	limiters := router.Limiters{
		Default: ratelimit.New("default", cfg.RateLimit["default"].Limit, cfg.RateLimit["default"].Window),
		Admin:   ratelimit.New("admin", cfg.RateLimit["admin"].Limit, cfg.RateLimit["admin"].Window),
	}

	// Initialize realtime fan-out
	hub := realtime.NewHub(db.RedisClient, cfg.Realtime.Channel)
	go hub.Run(ctx)

	// Route gateway events to the audit trail and the realtime surface
	registerEventHandlers(bus, auditService, hub)

	origins := middleware.NewOriginMatcher(cfg.Cors.AllowedOrigins)

	controllers := &controller.Controllers{
		Health:   controller.NewHealthController(store, verifier, serviceRouter, hub),
		Proxy:    controller.NewProxyController(serviceRouter, proxied, bus),
		Grants:   controller.NewGrantController(grants, bus),
		Audit:    controller.NewAuditController(auditService),
		Realtime: controller.NewRealtimeController(hub, enforcer, cfg.Realtime, origins),
	}

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(controllers, verifier, enforcer, limiters, origins, bus)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// registerEventHandlers wires bus events into the audit trail, and breaker
// transitions additionally onto the platform operations topic so admin
// tooling sees backend status changes live.
func registerEventHandlers(bus *util.EventBus, auditService audit.Service, hub *realtime.Hub) {
	record := func(action, outcome string) util.EventHandler {
		return func(ctx context.Context, event util.Event) error {
			detail, err := json.Marshal(event.Payload)
			if err != nil {
				return err
			}
			entry := audit.AuditLog{Action: action, Outcome: outcome, Detail: detail}
			if fields, ok := event.Payload.(map[string]string); ok {
				entry.UserID = fields["userID"]
				entry.TenantID = fields["tenantID"]
				entry.CorrelationID = fields["requestID"]
			}
			auditService.Record(entry)
			return nil
		}
	}

	bus.Subscribe(util.EventAuthFailure, record("authenticate", "denied"))
	bus.Subscribe(util.EventAccessDenied, record("authorize", "denied"))
	bus.Subscribe(util.EventGrantWritten, record("grant.write", "ok"))
	bus.Subscribe(util.EventGrantRevoked, record("grant.revoke", "ok"))
	bus.Subscribe(util.EventBreakerTransition, record("breaker.transition", "ok"))

	bus.Subscribe(util.EventBreakerTransition, func(ctx context.Context, event util.Event) error {
		return hub.Publish(ctx, "platform", "backends", "backend.status", event.Payload)
	})
}
