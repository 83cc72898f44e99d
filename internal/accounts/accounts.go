// Package accounts creates users together with the profile their role needs.
package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/metrics"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/utils"
)

const minPasswordLength = 8

// Store persists a user and its profile in one transaction. CreateAccount
// returns an apperr Conflict error when the email is taken.
type Store interface {
	EmailTaken(ctx context.Context, email string) (bool, error)
	CreateAccount(ctx context.Context, user *models.User, profile any) error
}

// Attrs are the registration inputs. Role-specific fields seed the profile.
type Attrs struct {
	Email           string
	Password        string
	FirstName       string
	LastName        string
	Phone           string
	TermsAccepted   bool
	PrivacyAccepted bool
	MarketingOptIn  bool
	EmailVerified   bool

	CompanyName   string
	AgencyName    string
	AuthorityName string
	BusinessName  string
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewProfile builds the empty profile record for role.
func NewProfile(role models.Role, userID uuid.UUID, attrs Attrs) any {
	switch role {
	case models.RoleWorker:
		return &models.WorkerProfile{UserID: userID, Phone: attrs.Phone}
	case models.RoleEmployer:
		return &models.EmployerProfile{UserID: userID, Phone: attrs.Phone, CompanyName: attrs.CompanyName}
	case models.RoleAgency:
		return &models.AgencyProfile{UserID: userID, AgencyName: attrs.AgencyName}
	case models.RoleGovernment:
		return &models.GovernmentProfile{UserID: userID, AuthorityName: attrs.AuthorityName}
	case models.RoleSupportProvider:
		return &models.SupportProviderProfile{UserID: userID, BusinessName: attrs.BusinessName, ContactPhone: attrs.Phone}
	}
	return nil
}

// Validate runs the checks CreateUser applies before touching the store.
func Validate(requested models.Role, attrs Attrs) error {
	_, _, err := normalize(requested, attrs)
	return err
}

func normalize(requested models.Role, attrs Attrs) (models.Role, Attrs, error) {
	role, ok := models.ParseRole(string(requested))
	if !ok {
		names := make([]string, len(models.Roles))
		for i, r := range models.Roles {
			names[i] = string(r)
		}
		return "", attrs, apperr.InvalidChoice("role", string(requested), names)
	}

	attrs.Email = NormalizeEmail(attrs.Email)
	if !utils.IsEmail(attrs.Email) {
		return "", attrs, apperr.Validation("invalid_email", "enter a valid email address")
	}
	if err := ValidatePassword(attrs.Password); err != nil {
		return "", attrs, err
	}

	attrs.Phone = strings.TrimSpace(attrs.Phone)
	if attrs.Phone != "" {
		phone, err := otp.NormalizeTarget(models.OTPChannelPhone, attrs.Phone)
		if err != nil {
			return "", attrs, apperr.Validation("invalid_phone", "enter a valid phone number with 8 to 15 digits")
		}
		attrs.Phone = phone
	}
	return role, attrs, nil
}

// CreateUser validates attrs, hashes the password and stores the user with its
// role profile. Both are returned.
func CreateUser(ctx context.Context, store Store, requested models.Role, attrs Attrs) (*models.User, any, error) {
	role, attrs, err := normalize(requested, attrs)
	if err != nil {
		return nil, nil, err
	}

	hash, err := utils.HashPassword(attrs.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Email:           attrs.Email,
		Phone:           attrs.Phone,
		FirstName:       strings.TrimSpace(attrs.FirstName),
		LastName:        strings.TrimSpace(attrs.LastName),
		Role:            role,
		PasswordHash:    hash,
		IsActive:        true,
		TermsAccepted:   attrs.TermsAccepted,
		PrivacyAccepted: attrs.PrivacyAccepted,
		MarketingOptIn:  attrs.MarketingOptIn,
		EmailVerified:   attrs.EmailVerified,
	}
	user.ID = uuid.New()
	if user.TermsAccepted || user.PrivacyAccepted || user.MarketingOptIn {
		now := time.Now()
		user.ConsentUpdatedAt = &now
	}

	profile := NewProfile(role, user.ID, attrs)
	if err := store.CreateAccount(ctx, user, profile); err != nil {
		return nil, nil, err
	}

	metrics.UserCreated(string(role))
	return user, profile, nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validation("weak_password", "password must be at least 8 characters")
	}
	return nil
}
