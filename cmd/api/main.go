package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArowuTest/calmcoins-backend/api/routes"
	"github.com/ArowuTest/calmcoins-backend/internal/authz"
	"github.com/ArowuTest/calmcoins-backend/internal/catalog"
	"github.com/ArowuTest/calmcoins-backend/internal/config"
	"github.com/ArowuTest/calmcoins-backend/internal/handlers"
	"github.com/ArowuTest/calmcoins-backend/internal/keylock"
	"github.com/ArowuTest/calmcoins-backend/internal/middleware"
	"github.com/ArowuTest/calmcoins-backend/internal/realtime"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories/memory"
	mongorepo "github.com/ArowuTest/calmcoins-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/calmcoins-backend/internal/services"
	"github.com/ArowuTest/calmcoins-backend/pkg/logger"
	mongodb "github.com/ArowuTest/calmcoins-backend/pkg/mongodb"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"
)

// storage bundles the repositories of one driver
type storage struct {
	users         repositories.UserRepository
	progress      repositories.ProgressRepository
	wallets       repositories.WalletRepository
	transactions  repositories.TransactionRepository
	notifications repositories.NotificationRepository
	tx            repositories.TxManager
	health        func(ctx context.Context) error
	close         func(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.close(context.Background()); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	// Key locks
	var locker keylock.Locker = keylock.NewMemory()
	if cfg.Locking.Driver == config.DriverRedis {
		locker = keylock.NewRedis(rdb, keylock.RedisOptions{TTL: cfg.Locking.TTL, Wait: cfg.Locking.Wait}, log)
	}

	// Realtime
	var publisher realtime.Publisher = realtime.Nop{}
	var socket gin.HandlerFunc
	if cfg.Realtime.Enabled {
		hub := realtime.NewSocketHub(cfg.JWT.Secret, middleware.OriginChecker(cfg.Server.AllowedHosts), log)
		go func() {
			if err := hub.Serve(); err != nil {
				log.Error("Socket server stopped", "error", err)
			}
		}()
		defer hub.Close()
		socket = hub.Handler()
		publisher = hub

		if cfg.Realtime.Bus == config.DriverRedis {
			bus := realtime.NewRedisBus(rdb, cfg.Realtime.Channel, log)
			if err := bus.StartForwarder(ctx, hub); err != nil {
				log.Error("Failed to subscribe to realtime bus", "error", err)
				os.Exit(1)
			}
			publisher = bus
		}
	}

	cat := catalog.Default()

	// Initialize Services
	ledger := services.NewLedger(store.wallets, store.transactions, log)
	notifier := services.NewNotifier(store.notifications, publisher, log)
	badges := services.NewBadgeEngine(cat, store.users, store.progress, notifier, locker, log)
	completion := services.NewCompletionRecorder(cat, store.progress, ledger, store.tx, locker, publisher, badges, log)
	replay := services.NewReplayUnlocker(store.progress, ledger, store.tx, locker, publisher, log)

	var limiter *middleware.UserRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewUserRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		limiter.StartCleanup(ctx)
	}

	// Setup Router
	router := routes.SetupRouter(cfg, routes.HandlerDependencies{
		GameHandler:         handlers.NewGameHandler(completion, replay),
		BadgeHandler:        handlers.NewBadgeHandler(badges),
		WalletHandler:       handlers.NewWalletHandler(ledger),
		NotificationHandler: handlers.NewNotificationHandler(notifier),
		UserHandler:         handlers.NewUserHandler(services.NewUserDirectory(store.users, ledger)),
		Catalog:             cat,
		Checker:             authz.NewRoleChecker(),
		Progress:            store.progress,
		RateLimiter:         limiter,
		Socket:              socket,
		HealthCheck:         store.health,
		Logger:              log,
	})

	// Start the server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Info("Server starting", "port", cfg.Server.Port, "storage", cfg.Storage.Driver, "locking", cfg.Locking.Driver)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exiting")
}

// openStorage builds the repositories for the configured driver
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("Using in-memory storage; data is lost on restart")
		s := memory.NewStore()
		return &storage{
			users:         memory.NewUserRepository(s),
			progress:      memory.NewProgressRepository(s),
			wallets:       memory.NewWalletRepository(s),
			transactions:  memory.NewTransactionRepository(s),
			notifications: memory.NewNotificationRepository(s),
			tx:            memory.NewTxManager(s),
			health:        func(context.Context) error { return nil },
			close:         func(context.Context) error { return nil },
		}, nil
	}

	client, err := mongodb.NewClient(cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.MongoDB.Database)

	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if !cfg.MongoDB.Transactions {
		log.Warn("MongoDB transactions disabled; completion awards rely on key locks and conditional updates")
	}

	return &storage{
		users:         mongorepo.NewUserRepository(db),
		progress:      mongorepo.NewProgressRepository(db),
		wallets:       mongorepo.NewWalletRepository(db),
		transactions:  mongorepo.NewTransactionRepository(db),
		notifications: mongorepo.NewNotificationRepository(db),
		tx:            mongorepo.NewTxManager(client, cfg.MongoDB.Transactions),
		health:        client.Ping,
		close:         client.Disconnect,
	}, nil
}
