package models

// MessageKind labels an outbound message for logging.
type MessageKind string

const (
	MessageOTP     MessageKind = "otp"
	MessageWelcome MessageKind = "welcome"
)

// Message is a best-effort outbound SMS. Losing one never changes OTP or
// referral state.
type Message struct {
	To   string
	Body string
	Kind MessageKind
}
