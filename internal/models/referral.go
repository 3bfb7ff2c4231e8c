package models

import (
	"fmt"
	"time"
)

// ReferralEventKind enumerates the stages a referral can reach.
type ReferralEventKind string

const (
	ReferralShare        ReferralEventKind = "SHARE"        // referrer shared their link
	ReferralLinkClick    ReferralEventKind = "LINK_CLICK"   // someone opened the link
	ReferralSignup       ReferralEventKind = "SIGNUP"       // referred user signed up
	ReferralVerification ReferralEventKind = "VERIFICATION" // referred user verified their phone
)

// Valid reports whether k is one of the known kinds.
func (k ReferralEventKind) Valid() bool {
	switch k {
	case ReferralShare, ReferralLinkClick, ReferralSignup, ReferralVerification:
		return true
	}
	return false
}

// ReferralEvent credits a referrer for one stage of a referee's journey.
// (RefereeUserID, Kind) is unique: a stage is counted at most once per referee.
type ReferralEvent struct {
	ID             string            `gorm:"primaryKey;type:uuid"`
	ReferrerUserID uint              `gorm:"not null;index:idx_referral_events_referrer_kind,priority:1"`
	RefereeUserID  uint              `gorm:"not null;uniqueIndex:idx_referral_events_referee_kind,priority:1"`
	Kind           ReferralEventKind `gorm:"not null;size:20;uniqueIndex:idx_referral_events_referee_kind,priority:2;index:idx_referral_events_referrer_kind,priority:2"`
	OccurredAt     time.Time         `gorm:"not null"`
}

// Key is the de-duplication key of the event.
func (e *ReferralEvent) Key() string {
	return fmt.Sprintf("%d/%s", e.RefereeUserID, e.Kind)
}
