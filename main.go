package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/devansh728/BYVS/database"
	"github.com/devansh728/BYVS/internal/auth"
	"github.com/devansh728/BYVS/internal/config"
	"github.com/devansh728/BYVS/internal/handlers"
	"github.com/devansh728/BYVS/internal/jobs"
	"github.com/devansh728/BYVS/internal/logger"
	"github.com/devansh728/BYVS/internal/models"
	"github.com/devansh728/BYVS/internal/routes"
	"github.com/devansh728/BYVS/internal/services"
	"github.com/devansh728/BYVS/internal/storage"
)

const version = "1.0.0"

func main() {
	dotenv := config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log := logger.SetupLogger(cfg.Env)
	slog.SetDefault(log)
	if dotenv != "" {
		log.Debug("loaded env file", slog.String("path", dotenv))
	}

	// Initialize storage
	var store storage.Store
	storageType := "postgres"
	if cfg.UseMemoryStore {
		log.Warn("using in-memory storage, not for production")
		store = storage.NewMemoryStore()
		storageType = "memory"
	} else {
		db, err := database.Connect(cfg.Database, log)
		if err != nil {
			log.Error("connect database", logger.Err(err))
			os.Exit(1)
		}

		dbStore := storage.NewDatabaseStore(db)
		if err := dbStore.Migrate(); err != nil {
			log.Error("migrate database", logger.Err(err))
			os.Exit(1)
		}
		log.Info("database migrations completed")
		store = dbStore
	}

	// SMS delivery
	var sender jobs.Sender
	if cfg.Twilio.Configured() {
		twilioService, err := services.NewTwilioService(services.TwilioConfig{
			AccountSID:        cfg.Twilio.AccountSID,
			AuthToken:         cfg.Twilio.AuthToken,
			From:              cfg.Twilio.PhoneNumber,
			StatusCallbackURL: cfg.Twilio.StatusCallbackURL,
			Timeout:           jobs.SendTimeout,
		}, log)
		if err != nil {
			log.Error("init twilio", logger.Err(err))
			os.Exit(1)
		}
		sender = twilioService
		log.Info("twilio sms enabled")
	} else {
		log.Warn("twilio credentials not found, sms will only be logged")
		sender = services.NewLogSender(log)
	}

	dispatcher := jobs.NewDispatcher(sender, cfg.Delivery.Workers, cfg.Delivery.QueueSize, log)
	dispatcher.Start()

	// Services
	limiter := services.NewRateLimiter(models.RateLimitPolicy{
		Window:   cfg.RateLimit.Window,
		Ceiling:  cfg.RateLimit.Ceiling,
		Cooldown: cfg.RateLimit.Cooldown,
	}, nil)
	otpService := services.NewOTPService(store, limiter, dispatcher, services.OTPConfig{
		Length:       cfg.OTP.Length,
		TTL:          cfg.OTP.TTL,
		MaxAttempts:  cfg.OTP.MaxAttempts,
		StoreTimeout: cfg.StoreTimeout,
	}, log)
	referralService := services.NewReferralService(store, store, services.ReferralConfig{
		MaxCodeRetries: cfg.ReferralCodeMaxRetries,
		StoreTimeout:   cfg.StoreTimeout,
	}, log)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	accountService := services.NewAccountService(store, otpService, referralService, tokens, dispatcher,
		cfg.IsAdmin, cfg.StoreTimeout, log)

	cleanupJob := jobs.NewCleanupJob(store, limiter, cfg.CleanupInterval, cfg.StoreTimeout, log)
	cleanupJob.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName:      "BYVS Backend v" + version,
		ErrorHandler: handlers.ErrorHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Middleware
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "X-Membership-ID, X-User-Role, Retry-After",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":     "BYVS Backend API",
			"version":     version,
			"environment": cfg.Env,
			"storage":     storageType,
			"sms":         cfg.Twilio.Configured(),
		})
	})

	routes.SetupRoutes(app, routes.Handlers{
		Auth:      handlers.NewAuthHandler(otpService, accountService, log),
		Health:    handlers.NewHealthHandler(version, storageType, store),
		SMSStatus: handlers.NewSMSStatusHandler(log),
	}, routes.Options{
		Tokens:                tokens,
		TwilioAuthToken:       cfg.Twilio.AuthToken,
		SkipWebhookValidation: cfg.Env == config.EnvLocal,
	}, log)

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown", logger.Err(err))
		}
	}()

	log.Info("server starting",
		slog.String("port", cfg.Port),
		slog.String("env", cfg.Env),
		slog.String("storage", storageType),
	)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error("server stopped", logger.Err(err))
	}

	cleanupJob.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dispatcher.Stop(ctx); err != nil {
		log.Warn("delivery queue not drained", logger.Err(err))
	}
}
