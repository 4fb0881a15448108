package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/gueripep/brainflash-server/config"
	"github.com/gueripep/brainflash-server/db"
	"github.com/gueripep/brainflash-server/internal/auth/handler"
	"github.com/gueripep/brainflash-server/internal/auth/password"
	repo "github.com/gueripep/brainflash-server/internal/auth/repository/postgres"
	"github.com/gueripep/brainflash-server/internal/auth/service"
)

func main() {
	cfg := config.Load()

	dbPool, err := db.NewPostgresPool(context.Background(), cfg.DBURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer dbPool.Close()

	userRepo := repo.NewPostgresRepository(dbPool)
	tokenService := service.NewTokenService(
		cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessExpiryMin, cfg.RefreshExpiryMin,
		cfg.ResetExpiryMin, cfg.VerifyExpiryMin,
	)
	hasher := password.NewArgon2Hasher()
	userService := service.NewUserService(userRepo, tokenService, hasher, cfg)
	authHandler := handler.NewAuthHandler(userService, cfg.APIKey)

	app := fiber.New()
	handler.RegisterRoutes(app, authHandler)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
