package models

import (
	"strings"
	"time"
)

// Role identifies which side of the marketplace a user acts for.
type Role string

const (
	RoleWorker          Role = "worker"
	RoleEmployer        Role = "employer"
	RoleAgency          Role = "agency"
	RoleGovernment      Role = "government"
	RoleSupportProvider Role = "support_provider"
)

// Roles lists every assignable role.
var Roles = []Role{RoleWorker, RoleEmployer, RoleAgency, RoleGovernment, RoleSupportProvider}

// ParseRole normalizes a role string. "client" is accepted for employer.
func ParseRole(value string) (Role, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "client" {
		return RoleEmployer, true
	}
	for _, r := range Roles {
		if string(r) == normalized {
			return r, true
		}
	}
	return "", false
}

// User represents an authenticated marketplace participant.
type User struct {
	BaseModel
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	Phone            string     `gorm:"index" json:"phone"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Role             Role       `gorm:"type:varchar(20);index;not null" json:"role"`
	PasswordHash     string     `json:"-"`
	IsActive         bool       `gorm:"default:true" json:"is_active"`
	EmailVerified    bool       `json:"email_verified"`
	PhoneVerified    bool       `json:"phone_verified"`
	TermsAccepted    bool       `json:"terms_accepted"`
	PrivacyAccepted  bool       `json:"privacy_accepted"`
	MarketingOptIn   bool       `json:"marketing_opt_in"`
	ConsentUpdatedAt *time.Time `json:"consent_updated_at"`
	DeactivatedAt    *time.Time `gorm:"index" json:"deactivated_at"`
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
