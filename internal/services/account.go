package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devansh728/BYVS/internal/auth"
	"github.com/devansh728/BYVS/internal/logger"
	"github.com/devansh728/BYVS/internal/models"
	"github.com/devansh728/BYVS/internal/storage"
)

const welcomeMessageFormat = "Welcome to BYVS, %s! Your membership ID is %s."

// Session is what a successful sign-up or login hands back to the client.
type Session struct {
	Token string
	Role  string
	User  *models.User
}

// Profile is a member together with their referral standing.
type Profile struct {
	User              *models.User
	VerifiedReferrals int64
}

type AccountService struct {
	users        storage.UserStore
	otp          *OTPService
	referrals    *ReferralService
	tokens       *auth.TokenManager
	notifier     Notifier
	isAdmin      func(phone string) bool
	storeTimeout time.Duration
	now          func() time.Time
	log          *slog.Logger
}

func NewAccountService(
	users storage.UserStore,
	otp *OTPService,
	referrals *ReferralService,
	tokens *auth.TokenManager,
	notifier Notifier,
	isAdmin func(phone string) bool,
	storeTimeout time.Duration,
	log *slog.Logger,
) *AccountService {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &AccountService{
		users:        users,
		otp:          otp,
		referrals:    referrals,
		tokens:       tokens,
		notifier:     notifier,
		isAdmin:      isAdmin,
		storeTimeout: storeTimeout,
		now:          time.Now,
		log:          log.With(logger.Module("services.account")),
	}
}

// Register creates the member, credits the referrer if a valid code was
// given and returns a session token.
func (s *AccountService) Register(ctx context.Context, req *models.UserRegistration) (*Session, error) {
	log := s.log.With(logger.Secret("phone", req.Phone))

	exists, err := s.Exists(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	user := &models.User{
		Phone:              req.Phone,
		FullName:           req.FullName,
		Age:                req.Age,
		Email:              req.Email,
		WhatsappNumber:     req.WhatsappNumber,
		VillageTownCity:    req.VillageTownCity,
		BlockName:          req.BlockName,
		District:           req.District,
		State:              req.State,
		Profession:         req.Profession,
		InstitutionName:    req.InstitutionName,
		InstitutionAddress: req.InstitutionAddress,
		JoinedAt:           s.now(),
	}

	user, err = s.referrals.AssignReferralCode(ctx, user)
	if errors.Is(err, storage.ErrPhoneTaken) {
		return nil, ErrUserExists
	}
	if err != nil {
		log.Error("create user", logger.Err(err))
		return nil, err
	}

	if req.ReferralCode != "" {
		s.referrals.AttributeSignup(ctx, user.ID, req.ReferralCode)
	}

	membershipID := user.MembershipID()
	if s.notifier != nil {
		s.notifier.Enqueue(models.Message{
			To:   user.Phone,
			Body: fmt.Sprintf(welcomeMessageFormat, user.FullName, membershipID),
			Kind: models.MessageWelcome,
		})
	}

	token, err := s.tokens.Generate(user.Phone, auth.RoleUser)
	if err != nil {
		return nil, err
	}

	log.Info("user registered", slog.String("membership_id", membershipID))
	return &Session{Token: token, Role: auth.RoleUser, User: user}, nil
}

// Login verifies the OTP, stamps the login time, credits the referrer with a
// verification and returns a session token.
func (s *AccountService) Login(ctx context.Context, phone, code string) (*Session, error) {
	if !s.otp.Verify(ctx, phone, code) {
		return nil, ErrVerificationFailed
	}

	user, err := s.userByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	if err := s.touchLogin(ctx, user.ID); err != nil {
		s.log.Error("update last login", logger.Err(err), slog.Uint64("user_id", uint64(user.ID)))
	}
	s.referrals.AttributeVerification(ctx, user.ID)

	role := auth.RoleUser
	if s.isAdmin(phone) {
		role = auth.RoleAdmin
	}
	token, err := s.tokens.Generate(phone, role)
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, Role: role, User: user}, nil
}

func (s *AccountService) Profile(ctx context.Context, phone string) (*Profile, error) {
	user, err := s.userByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	verified, err := s.referrals.CountVerifiedReferrals(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("count referrals: %w", err)
	}
	return &Profile{User: user, VerifiedReferrals: verified}, nil
}

func (s *AccountService) Exists(ctx context.Context, phone string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	exists, err := s.users.ExistsByPhone(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

func (s *AccountService) userByPhone(ctx context.Context, phone string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetUserByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *AccountService) touchLogin(ctx context.Context, userID uint) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.users.UpdateLastLogin(ctx, userID, s.now())
}
