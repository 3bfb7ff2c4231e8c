package models

import (
	"crypto/subtle"
	"time"
)

// OTP is the single live passcode record for a phone number.
// Issuing a new code overwrites the row, so a phone never has two pending codes.
type OTP struct {
	Phone             string    `gorm:"primaryKey;size:20"`
	Code              string    `gorm:"not null;size:12" json:"-"`
	IssuedAt          time.Time `gorm:"not null"`
	ExpiresAt         time.Time `gorm:"not null;index"`
	AttemptsRemaining int       `gorm:"not null"`
	Consumed          bool      `gorm:"not null"`
	ConsumedAt        *time.Time
}

// OTPOutcome is the internal result of a consume attempt.
// Callers outside the core only ever see success or failure.
type OTPOutcome int

const (
	OutcomeSuccess OTPOutcome = iota
	OutcomeMismatch
	OutcomeExpired
	OutcomeAlreadyConsumed
	OutcomeNotFound
	OutcomeLockedOut
)

func (o OTPOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeExpired:
		return "expired"
	case OutcomeAlreadyConsumed:
		return "already_consumed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeLockedOut:
		return "locked_out"
	default:
		return "unknown"
	}
}

// NewOTP builds a fresh pending record.
func NewOTP(phone, code string, now time.Time, ttl time.Duration, maxAttempts int) *OTP {
	return &OTP{
		Phone:             phone,
		Code:              code,
		IssuedAt:          now,
		ExpiresAt:         now.Add(ttl),
		AttemptsRemaining: maxAttempts,
	}
}

// Consume applies one verification attempt to the record and mutates it in place.
// The caller must hold whatever lock makes the read-modify-write atomic.
func (o *OTP) Consume(code string, now time.Time) OTPOutcome {
	if o == nil {
		return OutcomeNotFound
	}
	if o.Consumed {
		return OutcomeAlreadyConsumed
	}
	if !now.Before(o.ExpiresAt) {
		return OutcomeExpired
	}
	if o.AttemptsRemaining <= 0 {
		return OutcomeLockedOut
	}

	if subtle.ConstantTimeCompare([]byte(o.Code), []byte(code)) != 1 {
		o.AttemptsRemaining--
		return OutcomeMismatch
	}

	o.Consumed = true
	o.ConsumedAt = &now
	return OutcomeSuccess
}
