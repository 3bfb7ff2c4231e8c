package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devansh728/BYVS/internal/logger"
	"github.com/devansh728/BYVS/internal/models"
	"github.com/devansh728/BYVS/internal/storage"
	"github.com/devansh728/BYVS/internal/utils"
)

type ReferralConfig struct {
	MaxCodeRetries int
	StoreTimeout   time.Duration
}

// ReferralService credits referrers for the progress of the users they
// brought in. Attribution is best effort and never fails the caller.
type ReferralService struct {
	users   storage.UserStore
	ledger  storage.ReferralLedger
	cfg     ReferralConfig
	now     func() time.Time
	genCode func() (string, error)
	log     *slog.Logger
}

func NewReferralService(users storage.UserStore, ledger storage.ReferralLedger, cfg ReferralConfig, log *slog.Logger) *ReferralService {
	return &ReferralService{
		users:  users,
		ledger: ledger,
		cfg:    cfg,
		now:    time.Now,
		genCode: func() (string, error) {
			return utils.GenerateReferralCode(models.ReferralCodeLength)
		},
		log: log.With(logger.Module("services.referral")),
	}
}

// AttributeSignup links refereeID to the owner of code and records a SIGNUP
// event. Unknown codes and self referrals are ignored.
func (s *ReferralService) AttributeSignup(ctx context.Context, refereeID uint, code string) {
	s.report("signup", refereeID, s.attributeSignup(ctx, refereeID, code))
}

// AttributeVerification records a VERIFICATION event for the referrer of
// refereeID, if there is one.
func (s *ReferralService) AttributeVerification(ctx context.Context, refereeID uint) {
	s.report("verification", refereeID, s.attributeVerification(ctx, refereeID))
}

func (s *ReferralService) CountVerifiedReferrals(ctx context.Context, referrerID uint) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	return s.ledger.CountReferralEvents(ctx, referrerID, models.ReferralVerification)
}

// AssignReferralCode creates user with a freshly generated referral code,
// retrying on collisions up to the configured limit.
func (s *ReferralService) AssignReferralCode(ctx context.Context, user *models.User) (*models.User, error) {
	for attempt := 1; attempt <= s.cfg.MaxCodeRetries; attempt++ {
		code, err := s.genCode()
		if err != nil {
			return nil, fmt.Errorf("generate referral code: %w", err)
		}
		user.ReferralCode = code

		created, err := s.createUser(ctx, user)
		if errors.Is(err, storage.ErrReferralCodeTaken) {
			s.log.Debug("referral code collision", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	s.log.Error("referral code space exhausted", slog.Int("attempts", s.cfg.MaxCodeRetries))
	return nil, ErrCodeSpaceExhausted
}

func (s *ReferralService) createUser(ctx context.Context, user *models.User) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	return s.users.CreateUser(ctx, user)
}

func (s *ReferralService) attributeSignup(ctx context.Context, refereeID uint, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	referrer, err := s.users.GetUserByReferralCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrReferralCodeUnresolved
	}
	if err != nil {
		return fmt.Errorf("resolve referral code: %w", err)
	}
	if referrer.ID == refereeID {
		return ErrSelfReferral
	}

	referrerID := referrer.ID
	set, err := s.users.SetReferrer(ctx, refereeID, referrerID, code)
	if err != nil {
		return fmt.Errorf("set referrer: %w", err)
	}
	if !set {
		// Already attributed; credit whoever won the first write.
		referee, err := s.users.GetUser(ctx, refereeID)
		if err != nil {
			return fmt.Errorf("load referee: %w", err)
		}
		if referee.ReferredByID == nil {
			return nil
		}
		referrerID = *referee.ReferredByID
	}

	return s.record(ctx, referrerID, refereeID, models.ReferralSignup)
}

func (s *ReferralService) attributeVerification(ctx context.Context, refereeID uint) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	referee, err := s.users.GetUser(ctx, refereeID)
	if err != nil {
		return fmt.Errorf("load referee: %w", err)
	}
	if referee.ReferredByID == nil {
		return nil
	}

	return s.record(ctx, *referee.ReferredByID, refereeID, models.ReferralVerification)
}

func (s *ReferralService) record(ctx context.Context, referrerID, refereeID uint, kind models.ReferralEventKind) error {
	inserted, err := s.ledger.RecordReferralEvent(ctx, &models.ReferralEvent{
		ID:             uuid.NewString(),
		ReferrerUserID: referrerID,
		RefereeUserID:  refereeID,
		Kind:           kind,
		OccurredAt:     s.now(),
	})
	if err != nil {
		return fmt.Errorf("record %s event: %w", kind, err)
	}

	s.log.Debug("referral event",
		slog.String("kind", string(kind)),
		slog.Uint64("referrer_id", uint64(referrerID)),
		slog.Uint64("referee_id", uint64(refereeID)),
		slog.Bool("inserted", inserted),
	)
	return nil
}

func (s *ReferralService) report(stage string, refereeID uint, err error) {
	if err == nil {
		return
	}
	log := s.log.With(slog.String("stage", stage), slog.Uint64("referee_id", uint64(refereeID)))
	if errors.Is(err, ErrSelfReferral) || errors.Is(err, ErrReferralCodeUnresolved) {
		log.Info("referral ignored", logger.Err(err))
		return
	}
	log.Error("referral attribution failed", logger.Err(err))
}
