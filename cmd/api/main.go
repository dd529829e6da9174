package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-pos-ledger/internal/audit"
	"go-pos-ledger/internal/config"
	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/handler"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/scheduler"
	"go-pos-ledger/internal/service"
	"go-pos-ledger/internal/ws"
	"go-pos-ledger/pkg/database"
	"go-pos-ledger/pkg/jwt"
	"go-pos-ledger/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	cfg := config.Load()

	zlog, err := logger.Init(logger.Options{Mode: cfg.LogMode, Filename: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		zap.L().Fatal("invalid configuration", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		zap.L().Fatal("invalid TIMEZONE", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		zap.L().Fatal("database connection failed", zap.Error(err))
	}
	if err := model.Migrate(db); err != nil {
		zap.L().Fatal("migration failed", zap.Error(err))
	}

	// 3. Seed admin user
	seedAdmin(db, cfg)

	// 4. Event bus, WebSocket hub and audit trail
	bus := event.NewBus()
	wsHub := ws.NewHub()
	go wsHub.Run()

	productRepo := repository.NewProductRepo(db)
	trxRepo := repository.NewTransactionRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	supplierRepo := repository.NewSupplierRepo(db)
	adjRepo := repository.NewAdjustmentRepo(db)
	activityRepo := repository.NewActivityRepo(db)
	userRepo := repository.NewUserRepo(db)
	reportRepo := repository.NewReportRepo(db)

	if err := audit.NewRecorder(activityRepo).Attach(bus); err != nil {
		zap.L().Fatal("audit subscribe failed", zap.Error(err))
	}
	if err := wsHub.Attach(bus); err != nil {
		zap.L().Fatal("ws subscribe failed", zap.Error(err))
	}

	// 5. Dependency Injection (Wiring Layers)
	seq, closeSeq := newSequencer(cfg, db, trxRepo)
	defer closeSeq()

	aggregates := service.NewAggregateUpdater(db, customerRepo, cfg.AggregateMaxAttempts)
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.TokenTTL())

	invService := service.NewInventoryService(db, productRepo, categoryRepo, supplierRepo, adjRepo, bus)
	trxService := service.NewTransactionService(db, productRepo, trxRepo, customerRepo, seq, aggregates, bus,
		service.TransactionOptions{MaxAttempts: cfg.SequenceMaxAttempts, Location: loc})
	customerService := service.NewCustomerService(customerRepo, trxRepo, bus)
	supplierService := service.NewSupplierService(db, supplierRepo, bus)
	reportService := service.NewReportService(reportRepo, productRepo, trxRepo, loc, nil)
	authService := service.NewAuthService(userRepo, tokens, cfg.TokenTTL(), bus)
	userService := service.NewUserService(userRepo, bus)
	activityService := service.NewActivityService(activityRepo, loc, nil)

	jobs, err := scheduler.New(scheduler.Config{
		Location:         loc,
		AggregateRetry:   cfg.AggregateRetrySchedule,
		LowStockSchedule: cfg.LowStockSchedule,
	}, aggregates, invService)
	if err != nil {
		zap.L().Fatal("scheduler init failed", zap.Error(err))
	}
	jobs.Start()

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      "POS Ledger v1.0",
		ErrorHandler: handler.ErrorHandler(cfg.IsDevelopment()),
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// 7. Routes
	handler.RegisterRoutes(app, handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		User:        handler.NewUserHandler(userService),
		Inventory:   handler.NewInventoryHandler(invService, loc),
		Transaction: handler.NewTransactionHandler(trxService, loc),
		Customer:    handler.NewCustomerHandler(customerService),
		Supplier:    handler.NewSupplierHandler(supplierService),
		Report:      handler.NewReportHandler(reportService, loc),
		Activity:    handler.NewActivityHandler(activityService, loc),
	}, authService, wsHub)

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(cfg.Address()); err != nil {
			zap.L().Panic("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		zap.L().Error("server forced to shutdown", zap.Error(err))
	}
	jobs.Stop()
	bus.Wait()
	wsHub.Stop()
	zap.L().Info("server exited")
}

// newSequencer prefers Redis when REDIS_ADDR is set and reachable, so every
// API instance shares one counter. Otherwise numbers come from the database.
func newSequencer(cfg config.Config, db *gorm.DB, trxRepo repository.TransactionRepository) (service.Sequencer, func()) {
	dbSeq := service.NewDBSequencer(repository.NewSequenceRepo(db), trxRepo)
	if cfg.RedisAddr == "" {
		zap.L().Info("transaction numbers from database counter")
		return dbSeq, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		zap.L().Warn("redis unreachable, falling back to database counter", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		rdb.Close()
		return dbSeq, func() {}
	}

	zap.L().Info("transaction numbers from redis", zap.String("addr", cfg.RedisAddr))
	return service.NewRedisSequencer(rdb, trxRepo), func() { rdb.Close() }
}

// seedAdmin creates the first admin account when none exists.
func seedAdmin(db *gorm.DB, cfg config.Config) {
	userRepo := repository.NewUserRepo(db)
	ctx := context.Background()
	n, err := userRepo.CountActiveByRole(ctx, model.RoleAdmin)
	if err != nil {
		zap.L().Warn("could not count admins, skipping admin seed", zap.Error(err))
		return
	}
	if n > 0 {
		return
	}
	if taken, err := userRepo.EmailTaken(ctx, cfg.AdminEmail, uuid.Nil); err != nil || taken {
		if err != nil {
			zap.L().Warn("could not check admin email, skipping admin seed", zap.Error(err))
		}
		return
	}

	password := cfg.AdminPassword
	generated := false
	if password == "" {
		if cfg.IsDevelopment() {
			password = "admin123"
		} else {
			password = uuid.New().String()[:12]
			generated = true
		}
	}

	admin := &model.User{
		Email:    cfg.AdminEmail,
		Name:     "Administrator",
		Role:     model.RoleAdmin,
		IsActive: true,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"
	if err := admin.SetPassword(password); err != nil {
		zap.L().Warn("failed to hash admin password", zap.Error(err))
		return
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		zap.L().Warn("failed to create admin user", zap.Error(err))
		return
	}

	if generated {
		zap.L().Warn("admin user created with a generated password, change it after first login",
			zap.String("email", admin.Email), zap.String("password", password))
		return
	}
	zap.L().Info("admin user created", zap.String("email", admin.Email))
}
