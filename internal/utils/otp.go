package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	digits      = "0123456789"
	referralSet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// MaxOTPLength matches the width of the stored code column.
	MaxOTPLength = 12
)

// GenerateSecureOTP generates a cryptographically secure numeric OTP of the
// given length. Leading zeros are kept.
func GenerateSecureOTP(length int) (string, error) {
	if length <= 0 || length > MaxOTPLength {
		return "", fmt.Errorf("invalid OTP length %d", length)
	}
	return randomString(digits, length)
}

// GenerateReferralCode returns a random uppercase alphanumeric code.
func GenerateReferralCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid referral code length %d", length)
	}
	return randomString(referralSet, length)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))

	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String(), nil
}
