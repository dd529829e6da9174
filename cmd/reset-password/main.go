package main

import (
	"context"
	"flag"
	"log"

	"go-pos-ledger/internal/config"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/database"
	"go-pos-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	email := flag.String("email", "", "account to reset (defaults to ADMIN_EMAIL)")
	password := flag.String("password", "", "new password (generated when empty)")
	flag.Parse()

	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}
	cfg := config.Load()
	if _, err := logger.Init(logger.Options{Mode: "development"}); err != nil {
		log.Fatalf("logger init: %v", err)
	}

	if *email == "" {
		*email = cfg.AdminEmail
	}
	if len(*password) > 0 && len(*password) < 6 {
		zap.L().Fatal("password must be at least 6 characters")
	}
	if *password == "" {
		*password = uuid.New().String()[:12]
	}

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DatabaseURL, false)
	if err != nil {
		zap.L().Fatal("database connection failed", zap.Error(err))
	}
	userRepo := repository.NewUserRepo(db)
	ctx := context.Background()

	// 3. Find user
	user, err := userRepo.FindByEmail(ctx, *email)
	if err != nil {
		zap.L().Fatal("user not found", zap.String("email", *email), zap.Error(err))
	}

	// 4. Hash and store, then end every open session
	if err := user.SetPassword(*password); err != nil {
		zap.L().Fatal("failed to hash password", zap.Error(err))
	}
	if err := userRepo.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		zap.L().Fatal("failed to update password", zap.Error(err))
	}
	if err := userRepo.RotateTokenVersion(ctx, user.ID); err != nil {
		zap.L().Fatal("failed to revoke sessions", zap.Error(err))
	}

	zap.L().Info("password reset", zap.String("email", user.Email), zap.String("password", *password))
}
