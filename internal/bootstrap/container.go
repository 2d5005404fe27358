package bootstrap

import (
	"context"
	"fmt"
	"log"

	"casebook/internal/auth"
	"casebook/internal/backend"
	backenddb "casebook/internal/backend/database"
	"casebook/internal/backend/supabase"
	"casebook/internal/config"
	"casebook/internal/controller"
	"casebook/internal/pkg/logger"
	"casebook/internal/pkg/mailer"
	"casebook/internal/repository/contract"
	"casebook/internal/repository/memory"
	"casebook/internal/repository/redisstore"
	"casebook/internal/repository/unitofwork"
	"casebook/internal/service"
	"casebook/internal/session"
	"casebook/internal/websocket"

	pktNats "casebook/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	CaseController          controller.ICaseController
	AuthController          controller.IAuthController
	PageController          controller.IPageController
	SessionSocketController controller.ISessionSocketController

	// Sessions
	SessionRegistry *session.Registry
	WebSocketHub    *websocket.Hub

	// Background Services (nil when disabled; started by main.go)
	ReceiptService service.IReceiptService
	NatsSubscriber *pktNats.Subscriber

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires the application. db may be nil when the backend driver is
// supabase.
func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Backend
	var rawProvider backend.Provider
	switch cfg.Backend.Driver {
	case "supabase":
		if cfg.Backend.SupabaseURL == "" || cfg.Backend.SupabaseKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required for the supabase backend")
		}
		rawProvider = supabase.NewClient(cfg.Backend.SupabaseURL, cfg.Backend.SupabaseKey)
	case "database":
		if db == nil {
			return nil, fmt.Errorf("the database backend needs a database connection")
		}
		uowFactory := unitofwork.NewRepositoryFactory(db)
		rawProvider = backenddb.NewProvider(uowFactory, cfg.Backend.JWTSecret, cfg.Backend.AccessTokenTTL)
	default:
		return nil, fmt.Errorf("unknown BACKEND_DRIVER %q", cfg.Backend.Driver)
	}
	sysLogger.Info("BOOT", "Backend selected", map[string]interface{}{"driver": cfg.Backend.Driver})

	provider := rawProvider
	if cfg.Cache.CaseTTL > 0 {
		provider = backend.NewCached(rawProvider, cfg.Cache.CaseTTL)
	}

	// 2. Infrastructure
	// NATS
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		}
		c.closers = append(c.closers, natsPub.Close, natsSub.Close)
	}

	// Token storage
	var tokens contract.TokenRepository
	var rdb *redis.Client
	switch cfg.Session.Storage {
	case "redis":
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		tokens = redisstore.NewTokenRepository(rdb)
		c.closers = append(c.closers, func() { rdb.Close() })
	default:
		tokens = memory.NewTokenRepository()
	}

	// 3. Auth & sessions
	pubSub := auth.NewPubSub()
	authClient := auth.NewClient(provider, tokens, pubSub, natsPub, sysLogger)
	registry := session.NewRegistry(authClient, cfg.Session.IdleTTL, sysLogger)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	if rdb != nil {
		// Shared token storage means several instances; keep their stores in step.
		if err := authClient.StartRelay(bgCtx, auth.NewRedisRelay(rdb)); err != nil {
			stopBackground()
			return nil, fmt.Errorf("failed to start auth relay: %w", err)
		}
	}

	wsHub := websocket.NewHub(sysLogger)
	registry.OnStoreCreated(wsHub.Attach)
	go wsHub.Run(bgCtx)

	// Registry first so stores unsubscribe before the bus closes.
	c.closers = append(c.closers, stopBackground, registry.Close, authClient.Close, func() { pubSub.Close() })

	// 4. Services
	caseService := service.NewCaseService(provider, natsPub, sysLogger)
	authService := service.NewAuthService(authClient, provider, sysLogger)

	if receiptsEnabled(natsPub, natsSub, cfg) {
		if directory, ok := rawProvider.(service.UserDirectory); ok {
			emailService := mailer.NewEmailService(
				cfg.SMTP.Host,
				cfg.SMTP.Port,
				cfg.SMTP.Email,
				cfg.SMTP.Password,
				cfg.SMTP.SenderName,
			)
			c.ReceiptService = service.NewReceiptService(rawProvider, directory, emailService, cfg.App.BaseURL, sysLogger)
			c.NatsSubscriber = natsSub
		} else {
			sysLogger.Info("BOOT", "Case receipts need the database backend; disabled", nil)
		}
	}

	// 5. Controllers
	c.CaseController = controller.NewCaseController(caseService, provider)
	c.AuthController = controller.NewAuthController(authService, provider)
	c.PageController = controller.NewPageController(caseService, authService, sysLogger)
	c.SessionSocketController = controller.NewSessionSocketController(wsHub)
	c.SessionRegistry = registry
	c.WebSocketHub = wsHub

	return c, nil
}

// receiptsEnabled needs both NATS halves: the consumer only ever sees the
// CASE_CREATED events this service publishes.
func receiptsEnabled(pub *pktNats.Publisher, sub *pktNats.Subscriber, cfg *config.Config) bool {
	return pub != nil && sub != nil && cfg.SMTP.Host != ""
}

// Close releases connections and background workers in reverse dependency order.
func (c *Container) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
	c.closers = nil
}
