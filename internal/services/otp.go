package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devansh728/BYVS/internal/logger"
	"github.com/devansh728/BYVS/internal/models"
	"github.com/devansh728/BYVS/internal/storage"
	"github.com/devansh728/BYVS/internal/utils"
)

const otpMessageFormat = "Your OTP for BYVS is %s. Valid for %d minutes."

// Notifier hands a message to the delivery pipeline without waiting for it.
// The return value reports whether the message was accepted.
type Notifier interface {
	Enqueue(msg models.Message) bool
}

type OTPConfig struct {
	Length       int
	TTL          time.Duration
	MaxAttempts  int
	StoreTimeout time.Duration
}

type OTPService struct {
	store    storage.CredentialStore
	limiter  *RateLimiter
	notifier Notifier
	cfg      OTPConfig
	now      func() time.Time
	log      *slog.Logger
}

func NewOTPService(store storage.CredentialStore, limiter *RateLimiter, notifier Notifier, cfg OTPConfig, log *slog.Logger) *OTPService {
	return &OTPService{
		store:    store,
		limiter:  limiter,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With(logger.Module("services.otp")),
	}
}

// Issue creates a fresh code for phone, replacing any pending one, and queues
// it for delivery. A denied issuance leaves the existing record untouched.
func (s *OTPService) Issue(ctx context.Context, phone string) (string, error) {
	log := s.log.With(logger.Secret("phone", phone))

	decision := s.limiter.TryAcquire(phone)
	if !decision.Allowed {
		log.Warn("otp rate limited", slog.Duration("retry_after", decision.RetryAfter))
		return "", &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	code, err := utils.GenerateSecureOTP(s.cfg.Length)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	otp := models.NewOTP(phone, code, s.now(), s.cfg.TTL, s.cfg.MaxAttempts)
	if err := s.store.PutOTP(ctx, otp); err != nil {
		log.Error("store otp", logger.Err(err))
		return "", fmt.Errorf("store otp: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Enqueue(models.Message{
			To:   phone,
			Body: fmt.Sprintf(otpMessageFormat, code, int(s.cfg.TTL.Minutes())),
			Kind: models.MessageOTP,
		})
	}

	log.Info("otp issued", logger.Secret("otp", code), slog.Time("expires_at", otp.ExpiresAt))
	return code, nil
}

// Verify consumes code for phone. Every outcome except success is reported as
// false so callers cannot tell the failure reasons apart.
func (s *OTPService) Verify(ctx context.Context, phone, code string) bool {
	log := s.log.With(logger.Secret("phone", phone))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	outcome, err := s.store.ConsumeOTP(ctx, phone, code, s.now())
	if err != nil {
		log.Error("consume otp", logger.Err(err))
		return false
	}

	switch outcome {
	case models.OutcomeSuccess:
		log.Info("otp verified")
	case models.OutcomeLockedOut:
		log.Warn("otp locked out")
	default:
		log.Info("otp rejected", slog.String("outcome", outcome.String()))
	}
	return outcome == models.OutcomeSuccess
}
