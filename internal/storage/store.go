package storage

import (
	"context"
	"errors"
	"time"

	"github.com/devansh728/BYVS/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrPhoneTaken        = errors.New("phone already registered")
	ErrReferralCodeTaken = errors.New("referral code already assigned")
	ErrInvalidEventKind  = errors.New("unknown referral event kind")
)

// Store is everything the service layer persists.
type Store interface {
	CredentialStore
	ReferralLedger
	UserStore

	Ping(ctx context.Context) error
}

// CredentialStore keeps the current OTP per phone.
type CredentialStore interface {
	// PutOTP replaces any record for otp.Phone in a single write.
	PutOTP(ctx context.Context, otp *models.OTP) error
	// ConsumeOTP checks and updates the record atomically; two concurrent calls
	// with the right code never both observe OutcomeSuccess.
	ConsumeOTP(ctx context.Context, phone, code string, now time.Time) (models.OTPOutcome, error)
	// DeleteExpiredOTPs drops records that expired before now.
	DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

// ReferralLedger is the de-duplicated log of referral events.
type ReferralLedger interface {
	// RecordReferralEvent inserts ev unless (RefereeUserID, Kind) already exists.
	// The returned flag is false for the duplicate case, which is not an error.
	// Unknown kinds are rejected with ErrInvalidEventKind.
	RecordReferralEvent(ctx context.Context, ev *models.ReferralEvent) (bool, error)
	CountReferralEvents(ctx context.Context, referrerID uint, kind models.ReferralEventKind) (int64, error)
}

// UserStore is the account collaborator the referral flow reads from.
type UserStore interface {
	// CreateUser returns ErrPhoneTaken or ErrReferralCodeTaken on unique conflicts.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	// SetReferrer records who referred the user; the first write wins.
	SetReferrer(ctx context.Context, userID, referrerID uint, code string) (bool, error)
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
}
