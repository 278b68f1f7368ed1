package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ebank-backoffice/internal/config"
	"github.com/iliyamo/ebank-backoffice/internal/customer"
	"github.com/iliyamo/ebank-backoffice/internal/database"
	"github.com/iliyamo/ebank-backoffice/internal/handler"
	"github.com/iliyamo/ebank-backoffice/internal/identity"
	"github.com/iliyamo/ebank-backoffice/internal/ledger"
	"github.com/iliyamo/ebank-backoffice/internal/logger"
	"github.com/iliyamo/ebank-backoffice/internal/model"
	"github.com/iliyamo/ebank-backoffice/internal/queue"
	"github.com/iliyamo/ebank-backoffice/internal/repository"
	"github.com/iliyamo/ebank-backoffice/internal/router"
	"github.com/iliyamo/ebank-backoffice/internal/service"
	"github.com/iliyamo/ebank-backoffice/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config
	logger.SetDebug(cfg.Env == "dev")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database unavailable", err, nil)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		logger.Error("schema migration failed", err, nil)
		os.Exit(1)
	}

	rdb := config.NewRedisClient() // nil when Redis is unreachable

	accounts := repository.NewAccountRepo(db)
	customers := repository.NewCustomerRepo(db)

	var ledgerOpts []ledger.Option
	if cfg.RabbitURL != "" {
		pub := service.NewOperationPublisher(cfg.RabbitURL)
		defer pub.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(pub))
		go runAuditConsumer(ctx, cfg)
	}
	engine := ledger.NewEngine(accounts, newLocker(cfg, rdb), ledgerOpts...)
	history := ledger.NewHistoryService(accounts)

	identities := identity.NewEngine(
		repository.NewIdentityRepo(db),
		repository.NewRoleRepo(db),
		utils.NewBcryptHasher(cfg.BcryptCost),
		identity.WithTokenTTL(cfg.AccessTTL()),
	)
	bootstrapAdmin(ctx, cfg, identities)

	custSvc := customer.NewService(customers, accounts, engine, identities)
	signer := utils.NewJWTSigner(cfg.JWTSecret)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Logger = logger.Logger()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info("request", logger.Fields{
				"method": v.Method, "uri": v.URI, "status": v.Status, "latency": v.Latency.String(),
			})
			return nil
		},
	}))

	router.Register(e, router.Deps{
		Auth:      handler.NewAuthHandler(identities, signer),
		Accounts:  handler.NewAccountHandler(engine, history, custSvc),
		Customers: handler.NewCustomerHandler(custSvc),
		Tokens:    signer,
		Health:    []handler.Pinger{db},
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", logger.Fields{"addr": addr, "env": cfg.Env})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", err, nil)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", err, nil)
	}
}

// newLocker picks the account lock backend.  The redis backend falls back
// to in-process locks when Redis is unreachable at startup.
func newLocker(cfg config.Config, rdb *redis.Client) ledger.Locker {
	if cfg.LockBackend == config.LockBackendRedis {
		if rdb != nil {
			return ledger.NewRedisLocker(rdb, "ebank:lock:account", cfg.LockTTL)
		}
		logger.Warn("redis lock backend requested but redis is unavailable, using in-process locks", nil)
	}
	return ledger.NewKeyedMutex()
}

// runAuditConsumer drains operation events into the configured sink until
// ctx is cancelled.
func runAuditConsumer(ctx context.Context, cfg config.Config) {
	var sink queue.Sink
	switch cfg.AuditSink {
	case config.AuditSinkMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		ms, disconnect, err := queue.ConnectMongoSink(connectCtx, cfg.MongoURI, cfg.MongoDB, cfg.MongoAuditColl)
		cancel()
		if err != nil {
			logger.Error("audit sink unavailable", err, logger.Fields{"sink": cfg.AuditSink})
			return
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = disconnect(dctx)
		}()
		sink = ms
	default:
		sink = queue.NewFileSink(cfg.AuditFile)
	}
	if err := queue.StartOperationConsumer(ctx, cfg.RabbitURL, sink); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("operation consumer stopped", err, nil)
	}
}

// bootstrapAdmin makes sure the configured administrator exists so a fresh
// deployment can issue its first token.
func bootstrapAdmin(ctx context.Context, cfg config.Config, identities *identity.Engine) {
	if cfg.BootstrapAdminUser == "" || cfg.BootstrapAdminPass == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := identities.AddNewAccount(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPass, model.RoleAdmin)
	switch {
	case err == nil:
		logger.Info("bootstrap admin created", logger.Fields{"username": cfg.BootstrapAdminUser})
	case errors.Is(err, identity.ErrDuplicateIdentity):
	default:
		logger.Error("bootstrap admin failed", err, logger.Fields{"username": cfg.BootstrapAdminUser})
	}
}
