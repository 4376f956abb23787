// Package main creates the bootstrap system admin. Safe to run repeatedly.
package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/provider-portal/backend/config"
	"github.com/provider-portal/backend/internal/users"
	"github.com/provider-portal/backend/pkg/database"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: 2}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	u, temporary, err := users.SeedSystemAdmin(ctx, pool, users.SeedInput{
		Name:     cfg.Seed.AdminName,
		Email:    cfg.Seed.AdminEmail,
		Username: cfg.Seed.AdminUsername,
		Password: cfg.Seed.AdminPassword,
	})
	switch {
	case errors.Is(err, users.ErrAlreadySeeded):
		logger.Info("system admin already exists", zap.String("email", cfg.Seed.AdminEmail))
		return
	case err != nil:
		logger.Fatal("seed system admin", zap.Error(err))
	}

	fields := []zap.Field{zap.String("user_id", u.ID.String()), zap.String("username", u.Username)}
	if temporary != "" {
		fields = append(fields, zap.String("temporary_password", temporary))
	}
	logger.Info("system admin created", fields...)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
