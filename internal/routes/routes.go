package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/devansh728/BYVS/internal/auth"
	"github.com/devansh728/BYVS/internal/handlers"
	"github.com/devansh728/BYVS/internal/middleware"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Health    *handlers.HealthHandler
	SMSStatus *handlers.SMSStatusHandler
}

type Options struct {
	Tokens          *auth.TokenManager
	TwilioAuthToken string
	// SkipWebhookValidation disables the Twilio signature check for local
	// tunnels.
	SkipWebhookValidation bool
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, h Handlers, opts Options, log *slog.Logger) {
	app.Get("/health", h.Health.Check)

	otp := app.Group("/auth/otp")
	otp.Post("/send", h.Auth.SendOTP)
	otp.Post("/verify", h.Auth.VerifyOTP)
	otp.Post("/", h.Auth.Register)
	otp.Get("/check-user", h.Auth.CheckUser)
	otp.Get("/me", middleware.RequireJWT(opts.Tokens), h.Auth.Me)

	webhooks := app.Group("/webhook")
	if opts.SkipWebhookValidation {
		log.Warn("sms status webhook validation disabled")
		webhooks.Post("/sms-status", h.SMSStatus.Handle)
	} else {
		webhooks.Post("/sms-status", middleware.ValidateTwilioSignature(opts.TwilioAuthToken), h.SMSStatus.Handle)
	}
}
