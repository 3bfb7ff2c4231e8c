package services

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devansh728/BYVS/internal/models"
)

const phone = "+15551234567"

func TestOTPService_IssueAndVerify(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), code)

	assert.True(t, env.otp.Verify(ctx, phone, code))
	assert.False(t, env.otp.Verify(ctx, phone, code), "a code verifies once")
}

func TestOTPService_ReissueInvalidatesPrevious(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	c1, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)

	env.clock.Advance(testPolicy.Cooldown + time.Second)
	c2, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)
	if c1 == c2 {
		t.Skip("random codes collided")
	}

	assert.False(t, env.otp.Verify(ctx, phone, c1))
	assert.True(t, env.otp.Verify(ctx, phone, c2))
	assert.False(t, env.otp.Verify(ctx, phone, c2))
}

func TestOTPService_ExpiredCodeFails(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)

	env.clock.Advance(testOTPConfig.TTL)
	assert.False(t, env.otp.Verify(ctx, phone, code))
}

func TestOTPService_LockoutAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < testOTPConfig.MaxAttempts; i++ {
		assert.False(t, env.otp.Verify(ctx, phone, wrong))
	}
	assert.False(t, env.otp.Verify(ctx, phone, code), "correct code is rejected once locked out")

	env.clock.Advance(testPolicy.Cooldown)
	fresh, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)
	assert.True(t, env.otp.Verify(ctx, phone, fresh))
}

func TestOTPService_UnknownPhone(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.False(t, env.otp.Verify(context.Background(), "+15550009999", "123456"))
}

func TestOTPService_RateLimitedIssueKeepsExistingCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)

	_, err = env.otp.Issue(ctx, phone)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, testPolicy.Cooldown, rlErr.RetryAfter)

	assert.True(t, env.otp.Verify(ctx, phone, code))
	assert.Len(t, env.notifier.Messages(), 1)
}

func TestOTPService_ConcurrentVerifySingleSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if env.otp.Verify(ctx, phone, code) {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestOTPService_QueuesMessageAndNeverLogsCode(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, bufferLogger(&buf))
	ctx := context.Background()

	code, err := env.otp.Issue(ctx, phone)
	require.NoError(t, err)
	env.otp.Verify(ctx, phone, code)

	msgs := env.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, phone, msgs[0].To)
	assert.Equal(t, models.MessageOTP, msgs[0].Kind)
	assert.Equal(t, "Your OTP for BYVS is "+code+". Valid for 5 minutes.", msgs[0].Body)

	assert.Contains(t, buf.String(), "otp issued")
	assert.NotContains(t, buf.String(), code)
	assert.NotContains(t, buf.String(), phone)
}

type failingCredentialStore struct {
	err error
}

func (f *failingCredentialStore) PutOTP(context.Context, *models.OTP) error { return f.err }

func (f *failingCredentialStore) ConsumeOTP(context.Context, string, string, time.Time) (models.OTPOutcome, error) {
	return models.OutcomeNotFound, f.err
}

func (f *failingCredentialStore) DeleteExpiredOTPs(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

// stalledCredentialStore blocks until the caller's deadline passes.
type stalledCredentialStore struct{}

func (stalledCredentialStore) PutOTP(ctx context.Context, _ *models.OTP) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledCredentialStore) ConsumeOTP(ctx context.Context, _, _ string, _ time.Time) (models.OTPOutcome, error) {
	<-ctx.Done()
	return models.OutcomeNotFound, ctx.Err()
}

func (stalledCredentialStore) DeleteExpiredOTPs(ctx context.Context, _ time.Time) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestOTPService_StoreFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewOTPService(&failingCredentialStore{err: errors.New("db down")},
		NewRateLimiter(testPolicy, nil), notifier, testOTPConfig, discardLogger())

	_, err := svc.Issue(context.Background(), phone)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, notifier.Messages(), "nothing is sent when the code was not stored")

	assert.False(t, svc.Verify(context.Background(), phone, "123456"))
}

func TestOTPService_StalledStoreIsBounded(t *testing.T) {
	cfg := testOTPConfig
	cfg.StoreTimeout = 20 * time.Millisecond
	svc := NewOTPService(stalledCredentialStore{}, NewRateLimiter(testPolicy, nil), nil, cfg, discardLogger())

	start := time.Now()
	assert.False(t, svc.Verify(context.Background(), phone, "123456"))
	_, err := svc.Issue(context.Background(), phone)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
