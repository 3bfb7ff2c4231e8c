package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ReferralCodeLength is the fixed length of a user's referral code.
const ReferralCodeLength = 8

// User is a registered member. Phone and ReferralCode are both unique.
type User struct {
	gorm.Model
	Phone          string `gorm:"not null;size:20;uniqueIndex:idx_users_phone"`
	FullName       string `gorm:"not null;size:100"`
	ReferralCode   string `gorm:"not null;size:8;uniqueIndex:idx_users_referral_code"`
	ReferredByID   *uint  `gorm:"index"`
	ReferredByCode string `gorm:"size:8"`
	LastLoginAt    *time.Time

	Age                int
	Email              string `gorm:"size:255"`
	WhatsappNumber     string `gorm:"size:20"`
	VillageTownCity    string `gorm:"size:100"`
	BlockName          string `gorm:"size:100"`
	District           string `gorm:"size:100"`
	State              string `gorm:"size:100"`
	Profession         string `gorm:"size:100"`
	InstitutionName    string `gorm:"size:255"`
	InstitutionAddress string `gorm:"size:255"`
	JoinedAt           time.Time
}

// MembershipID renders the public member number derived from the row id.
func (u *User) MembershipID() string {
	return fmt.Sprintf("BYVS%08d", u.ID)
}

// UserRegistration is the payload accepted at sign-up.
type UserRegistration struct {
	FullName           string `json:"fullName" validate:"required,min=2,max=100"`
	Age                int    `json:"age" validate:"required,gte=1,lte=150"`
	Phone              string `json:"phone" validate:"required,e164"`
	Email              string `json:"email" validate:"required,email"`
	WhatsappNumber     string `json:"whatsappNumber" validate:"required"`
	VillageTownCity    string `json:"villageTownCity" validate:"required,max=100"`
	BlockName          string `json:"blockName" validate:"required,max=100"`
	District           string `json:"district" validate:"required,max=100"`
	State              string `json:"state" validate:"required,max=100"`
	Profession         string `json:"profession" validate:"required,max=100"`
	InstitutionName    string `json:"institutionName" validate:"required,max=255"`
	InstitutionAddress string `json:"institutionAddress" validate:"required,max=255"`
	ReferralCode       string `json:"referralCode" validate:"omitempty,len=8,alphanum"`
}
