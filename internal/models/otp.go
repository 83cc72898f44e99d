package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPChannel is the contact channel a code is bound to.
type OTPChannel string

const (
	OTPChannelEmail OTPChannel = "email"
	OTPChannelPhone OTPChannel = "phone"
)

// OTPPurpose scopes a code to one flow; codes are not interchangeable across purposes.
type OTPPurpose string

const (
	OTPPurposeRegistration  OTPPurpose = "registration"
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposeContact       OTPPurpose = "contact"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

var OTPPurposes = []OTPPurpose{OTPPurposeRegistration, OTPPurposeLogin, OTPPurposeContact, OTPPurposePasswordReset}

// OTPRecord is one issued code. Records are never deleted.
type OTPRecord struct {
	BaseModel
	Channel     OTPChannel `gorm:"type:varchar(10);index:idx_otp_key,priority:1;not null" json:"channel"`
	Target      string     `gorm:"index:idx_otp_key,priority:2;not null" json:"target"`
	Purpose     OTPPurpose `gorm:"type:varchar(20);index:idx_otp_key,priority:3;not null" json:"purpose"`
	CodeHash    string     `gorm:"not null" json:"-"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	IsUsed      bool       `gorm:"index;default:false" json:"is_used"`
	VerifiedAt  *time.Time `json:"verified_at"`
	ConsumedAt  *time.Time `json:"consumed_at"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
}

// Expired reports whether the code is past its expiry at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
