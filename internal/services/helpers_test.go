package services

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/devansh728/BYVS/internal/auth"
	"github.com/devansh728/BYVS/internal/models"
	"github.com/devansh728/BYVS/internal/storage"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (n *recordingNotifier) Enqueue(msg models.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return true
}

func (n *recordingNotifier) Messages() []models.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Message(nil), n.msgs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bufferLogger drops timestamps so assertions on the output only see what
// the code under test logged.
func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}

var testOTPConfig = OTPConfig{
	Length:       6,
	TTL:          5 * time.Minute,
	MaxAttempts:  5,
	StoreTimeout: time.Second,
}

var testPolicy = models.RateLimitPolicy{
	Window:   time.Hour,
	Ceiling:  5,
	Cooldown: 45 * time.Second,
}

type testEnv struct {
	store     *storage.MemoryStore
	clock     *fakeClock
	notifier  *recordingNotifier
	limiter   *RateLimiter
	otp       *OTPService
	referrals *ReferralService
	tokens    *auth.TokenManager
	accounts  *AccountService
}

func newTestEnv(t *testing.T, log *slog.Logger) *testEnv {
	t.Helper()
	if log == nil {
		log = discardLogger()
	}

	env := &testEnv{
		store:    storage.NewMemoryStore(),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		tokens:   auth.NewTokenManager("test-secret", time.Hour),
	}
	env.limiter = NewRateLimiter(testPolicy, env.clock.Now)

	env.otp = NewOTPService(env.store, env.limiter, env.notifier, testOTPConfig, log)
	env.otp.now = env.clock.Now

	env.referrals = NewReferralService(env.store, env.store, ReferralConfig{
		MaxCodeRetries: 5,
		StoreTimeout:   time.Second,
	}, log)
	env.referrals.now = env.clock.Now

	admins := map[string]bool{"+15550000001": true}
	env.accounts = NewAccountService(env.store, env.otp, env.referrals, env.tokens, env.notifier,
		func(phone string) bool { return admins[phone] }, time.Second, log)
	env.accounts.now = env.clock.Now

	return env
}
