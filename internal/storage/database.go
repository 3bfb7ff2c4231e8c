package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devansh728/BYVS/internal/models"
)

const pgUniqueViolation = "23505"

// DatabaseStore persists everything in PostgreSQL through gorm.
// Atomicity comes from the database: row locks for OTP consumption and unique
// indexes for referral de-duplication and code assignment.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open gorm handle.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Migrate creates or updates the tables owned by this store.
func (s *DatabaseStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.OTP{},
		&models.ReferralEvent{},
	)
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// OTP operations
func (s *DatabaseStore) PutOTP(ctx context.Context, otp *models.OTP) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			UpdateAll: true,
		}).
		Create(otp).Error
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *DatabaseStore) ConsumeOTP(ctx context.Context, phone, code string, now time.Time) (models.OTPOutcome, error) {
	outcome := models.OutcomeNotFound

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.OTP
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("phone = ?", phone).
			Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		outcome = rec.Consume(code, now)
		if outcome != models.OutcomeSuccess && outcome != models.OutcomeMismatch {
			return nil
		}

		return tx.Model(&models.OTP{}).
			Where("phone = ?", phone).
			Updates(map[string]any{
				"attempts_remaining": rec.AttemptsRemaining,
				"consumed":           rec.Consumed,
				"consumed_at":        rec.ConsumedAt,
			}).Error
	})
	if err != nil {
		return models.OutcomeNotFound, fmt.Errorf("db error: %w", err)
	}
	return outcome, nil
}

func (s *DatabaseStore) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.OTP{})
	if res.Error != nil {
		return 0, fmt.Errorf("db error: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Referral operations
func (s *DatabaseStore) RecordReferralEvent(ctx context.Context, ev *models.ReferralEvent) (bool, error) {
	if !ev.Kind.Valid() {
		return false, ErrInvalidEventKind
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referee_user_id"}, {Name: "kind"}},
			DoNothing: true,
		}).
		Create(ev)
	if res.Error != nil {
		return false, fmt.Errorf("db error: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *DatabaseStore) CountReferralEvents(ctx context.Context, referrerID uint, kind models.ReferralEventKind) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.ReferralEvent{}).
		Where("referrer_user_id = ? AND kind = ?", referrerID, kind).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// User operations
func (s *DatabaseStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translateUniqueViolation(err)
	}
	return user, nil
}

func (s *DatabaseStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *DatabaseStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.findUser(ctx, "phone = ?", phone)
}

func (s *DatabaseStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return s.findUser(ctx, "referral_code = ?", code)
}

func (s *DatabaseStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("phone = ?", phone).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (s *DatabaseStore) SetReferrer(ctx context.Context, userID, referrerID uint, code string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND referred_by_id IS NULL", userID).
		Updates(map[string]any{
			"referred_by_id":   referrerID,
			"referred_by_code": code,
		})
	if res.Error != nil {
		return false, fmt.Errorf("db error: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *DatabaseStore) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login_at", at)
	if res.Error != nil {
		return fmt.Errorf("db error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) findUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

// translateUniqueViolation maps a unique index conflict on users to the
// matching sentinel so callers can retry code generation.
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case "idx_users_phone":
			return ErrPhoneTaken
		case "idx_users_referral_code":
			return ErrReferralCodeTaken
		}
	}
	return fmt.Errorf("db error: %w", err)
}

var _ Store = (*DatabaseStore)(nil)
