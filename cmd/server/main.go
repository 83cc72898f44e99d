package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/domestyx/internal/cache"
	"github.com/example/domestyx/internal/config"
	"github.com/example/domestyx/internal/database"
	"github.com/example/domestyx/internal/handlers"
	applog "github.com/example/domestyx/internal/logger"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/routes"
	"github.com/example/domestyx/internal/services"
	"github.com/example/domestyx/internal/storage"
	"github.com/example/domestyx/internal/workflow"
)

func main() {
	cfg := config.Load()
	log := applog.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	db, err := database.Connect(cfg.DatabaseURL, !cfg.IsProduction(), log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	store := storage.NewDatabaseStore(db)

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := cache.New(startCtx, cfg.Redis)
	cancel()
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	var health handlers.HealthChecker
	if redisClient != nil {
		defer redisClient.Close()
		health = redisClient
	} else {
		log.Warn("REDIS_URL not set, token revocation is kept in memory")
	}
	revoked := cache.NewRevocationList(redisClient)

	dispatcher, err := services.NewDispatcher(cfg.Delivery, log)
	if err != nil {
		log.Fatal("otp delivery setup failed", zap.Error(err))
	}
	otpEngine := otp.NewEngine(otp.ConfigFrom(cfg.OTP, cfg.IsProduction()), store, dispatcher, log)
	workflowService := workflow.NewService(store, log)

	app := fiber.New(fiber.Config{
		AppName:      "DomestyX Backend",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	routes.Register(app, routes.Dependencies{
		Config:   cfg,
		DB:       db,
		Accounts: store,
		OTP:      otpEngine,
		Workflow: workflowService,
		Revoked:  revoked,
		Health:   health,
		Log:      log,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("starting server", zap.String("port", cfg.AppPort), zap.String("environment", cfg.Environment))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal("fiber.Listen error", zap.Error(err))
	}
}
