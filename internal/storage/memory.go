package storage

import (
	"context"
	"sync"
	"time"

	"github.com/devansh728/BYVS/internal/models"
)

// MemoryStore holds all data in memory for single-instance deployments and tests
type MemoryStore struct {
	otps           map[string]*models.OTP
	referralEvents map[string]*models.ReferralEvent
	users          map[uint]*models.User
	usersByPhone   map[string]uint
	usersByCode    map[string]uint

	// Mutexes for thread safety
	otpMu      sync.Mutex
	referralMu sync.RWMutex
	userMu     sync.RWMutex

	userCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		otps:           make(map[string]*models.OTP),
		referralEvents: make(map[string]*models.ReferralEvent),
		users:          make(map[uint]*models.User),
		usersByPhone:   make(map[string]uint),
		usersByCode:    make(map[string]uint),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// OTP operations
func (m *MemoryStore) PutOTP(ctx context.Context, otp *models.OTP) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := *otp

	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	m.otps[otp.Phone] = &rec
	return nil
}

func (m *MemoryStore) ConsumeOTP(ctx context.Context, phone, code string, now time.Time) (models.OTPOutcome, error) {
	if err := ctx.Err(); err != nil {
		return models.OutcomeNotFound, err
	}

	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	rec, ok := m.otps[phone]
	if !ok {
		return models.OutcomeNotFound, nil
	}
	return rec.Consume(code, now), nil
}

func (m *MemoryStore) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	var n int64
	for phone, rec := range m.otps {
		if !now.Before(rec.ExpiresAt) {
			delete(m.otps, phone)
			n++
		}
	}
	return n, nil
}

// Referral operations
func (m *MemoryStore) RecordReferralEvent(ctx context.Context, ev *models.ReferralEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !ev.Kind.Valid() {
		return false, ErrInvalidEventKind
	}

	m.referralMu.Lock()
	defer m.referralMu.Unlock()

	key := ev.Key()
	if _, exists := m.referralEvents[key]; exists {
		return false, nil
	}
	rec := *ev
	m.referralEvents[key] = &rec
	return true, nil
}

func (m *MemoryStore) CountReferralEvents(ctx context.Context, referrerID uint, kind models.ReferralEventKind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.referralMu.RLock()
	defer m.referralMu.RUnlock()

	var n int64
	for _, ev := range m.referralEvents {
		if ev.ReferrerUserID == referrerID && ev.Kind == kind {
			n++
		}
	}
	return n, nil
}

// User operations
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.userMu.Lock()
	defer m.userMu.Unlock()

	if _, exists := m.usersByPhone[user.Phone]; exists {
		return nil, ErrPhoneTaken
	}
	if _, exists := m.usersByCode[user.ReferralCode]; exists {
		return nil, ErrReferralCodeTaken
	}

	m.userCounter++
	now := time.Now()
	user.ID = m.userCounter
	user.CreatedAt = now
	user.UpdatedAt = now

	rec := *user
	m.users[rec.ID] = &rec
	m.usersByPhone[rec.Phone] = rec.ID
	m.usersByCode[rec.ReferralCode] = rec.ID
	return user, nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.userMu.RLock()
	defer m.userMu.RUnlock()

	return m.copyUser(id)
}

func (m *MemoryStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.userMu.RLock()
	defer m.userMu.RUnlock()

	id, exists := m.usersByPhone[phone]
	if !exists {
		return nil, ErrNotFound
	}
	return m.copyUser(id)
}

func (m *MemoryStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.userMu.RLock()
	defer m.userMu.RUnlock()

	id, exists := m.usersByCode[code]
	if !exists {
		return nil, ErrNotFound
	}
	return m.copyUser(id)
}

func (m *MemoryStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.userMu.RLock()
	defer m.userMu.RUnlock()

	_, exists := m.usersByPhone[phone]
	return exists, nil
}

func (m *MemoryStore) SetReferrer(ctx context.Context, userID, referrerID uint, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.userMu.Lock()
	defer m.userMu.Unlock()

	user, exists := m.users[userID]
	if !exists {
		return false, ErrNotFound
	}
	if user.ReferredByID != nil {
		return false, nil
	}
	id := referrerID
	user.ReferredByID = &id
	user.ReferredByCode = code
	user.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.userMu.Lock()
	defer m.userMu.Unlock()

	user, exists := m.users[userID]
	if !exists {
		return ErrNotFound
	}
	t := at
	user.LastLoginAt = &t
	user.UpdatedAt = at
	return nil
}

// copyUser must be called with userMu held.
func (m *MemoryStore) copyUser(id uint) (*models.User, error) {
	user, exists := m.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	u := *user
	if user.ReferredByID != nil {
		ref := *user.ReferredByID
		u.ReferredByID = &ref
	}
	if user.LastLoginAt != nil {
		at := *user.LastLoginAt
		u.LastLoginAt = &at
	}
	return &u, nil
}

var _ Store = (*MemoryStore)(nil)
