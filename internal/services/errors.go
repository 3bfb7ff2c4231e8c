package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRateLimitExceeded      = errors.New("too many OTP requests")
	ErrVerificationFailed     = errors.New("invalid or expired OTP")
	ErrSelfReferral           = errors.New("self referral")
	ErrReferralCodeUnresolved = errors.New("referral code does not match any user")
	ErrCodeSpaceExhausted     = errors.New("could not assign a unique referral code")
	ErrUserExists             = errors.New("user already exists")
	ErrUserNotFound           = errors.New("user does not exist")
)

// RateLimitError is returned by Issue when the phone must wait before
// another code can be sent. It matches ErrRateLimitExceeded with errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimitExceeded, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
