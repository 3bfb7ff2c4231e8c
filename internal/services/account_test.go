package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devansh728/BYVS/internal/auth"
	"github.com/devansh728/BYVS/internal/models"
)

func registration(phone, referralCode string) *models.UserRegistration {
	return &models.UserRegistration{
		FullName:           "Asha Verma",
		Age:                24,
		Phone:              phone,
		Email:              "asha@example.com",
		WhatsappNumber:     phone,
		VillageTownCity:    "Nagpur",
		BlockName:          "Central",
		District:           "Nagpur",
		State:              "Maharashtra",
		Profession:         "Teacher",
		InstitutionName:    "City School",
		InstitutionAddress: "1 Main Road",
		ReferralCode:       referralCode,
	}
}

func TestAccountService_Register(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	session, err := env.accounts.Register(ctx, registration(phone, ""))
	require.NoError(t, err)

	assert.Equal(t, auth.RoleUser, session.Role)
	assert.Equal(t, "BYVS00000001", session.User.MembershipID())
	assert.Len(t, session.User.ReferralCode, models.ReferralCodeLength)
	assert.True(t, session.User.JoinedAt.Equal(t0))

	claims, err := env.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, phone, claims.Subject)

	msgs := env.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageWelcome, msgs[0].Kind)
	assert.Contains(t, msgs[0].Body, "BYVS00000001")

	_, err = env.accounts.Register(ctx, registration(phone, ""))
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestAccountService_RegisterWithReferralThenLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	referrer, err := env.accounts.Register(ctx, registration("+15550000010", ""))
	require.NoError(t, err)

	referee, err := env.accounts.Register(ctx, registration(phone, referrer.User.ReferralCode))
	require.NoError(t, err)

	code, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)

	session, err := env.accounts.Login(ctx, phone, code)
	require.NoError(t, err)
	assert.Equal(t, referee.User.ID, session.User.ID)
	assert.Equal(t, auth.RoleUser, session.Role)

	profile, err := env.accounts.Profile(ctx, "+15550000010")
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.VerifiedReferrals)

	stored, err := env.store.GetUser(ctx, referee.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, stored.LastLoginAt.Equal(t0))
}

func TestAccountService_LoginFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.accounts.Login(ctx, phone, "123456")
	assert.ErrorIs(t, err, ErrVerificationFailed)

	code, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)
	_, err = env.accounts.Login(ctx, phone, code)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAccountService_AdminRole(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.accounts.Register(ctx, registration("+15550000001", ""))
	require.NoError(t, err)

	code, err := env.otp.Issue(ctx, "+15550000001")
	require.NoError(t, err)

	session, err := env.accounts.Login(ctx, "+15550000001", code)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, session.Role)

	claims, err := env.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestAccountService_ExistsAndProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	exists, err := env.accounts.Exists(ctx, phone)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = env.accounts.Profile(ctx, phone)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.accounts.Register(ctx, registration(phone, ""))
	require.NoError(t, err)

	exists, err = env.accounts.Exists(ctx, phone)
	require.NoError(t, err)
	assert.True(t, exists)
}
