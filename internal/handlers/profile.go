package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/accounts"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/utils"
)

// ProfileHandler manages user and role profile endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

func (h *ProfileHandler) currentUser(c *fiber.Ctx) (*models.User, error) {
	var user models.User
	if err := h.db.WithContext(c.UserContext()).First(&user, "id = ?", middleware.CurrentActor(c).ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// roleProfile loads the profile row for the user's role, creating an empty one
// for accounts that predate it.
func roleProfile(ctx context.Context, db *gorm.DB, user *models.User) (any, error) {
	profile := accounts.NewProfile(user.Role, user.ID, accounts.Attrs{Phone: user.Phone})
	if profile == nil {
		return nil, nil
	}
	if err := db.WithContext(ctx).Where("user_id = ?", user.ID).FirstOrCreate(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// GetProfile returns the authenticated user with their role profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	profile, err := roleProfile(c.UserContext(), h.db, user)
	if err != nil {
		return err
	}
	return respondOK(c, fiber.Map{"user": user, "profile": profile})
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Phone     *string `json:"phone"`
}

// UpdateProfile updates the account's name and phone. A changed phone must be
// verified again.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone != "" {
			if phone, err = otp.NormalizeTarget(models.OTPChannelPhone, phone); err != nil {
				return err
			}
		}
		if phone != user.Phone {
			updates["phone"] = phone
			updates["phone_verified"] = false
		}
	}
	if len(updates) == 0 {
		return apperr.Validation("no_changes", "no fields to update")
	}

	if err := h.db.WithContext(c.UserContext()).Model(user).Updates(updates).Error; err != nil {
		return err
	}
	return respondOK(c, user)
}

type consentRequest struct {
	TermsAccepted   *bool `json:"terms_accepted"`
	PrivacyAccepted *bool `json:"privacy_accepted"`
	MarketingOptIn  *bool `json:"marketing_opt_in"`
}

// GetConsent returns the caller's consent flags.
func (h *ProfileHandler) GetConsent(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return respondOK(c, consentView(user))
}

// UpdateConsent records changed consent flags with a timestamp.
func (h *ProfileHandler) UpdateConsent(c *fiber.Ctx) error {
	var req consentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.TermsAccepted != nil {
		updates["terms_accepted"] = *req.TermsAccepted
	}
	if req.PrivacyAccepted != nil {
		updates["privacy_accepted"] = *req.PrivacyAccepted
	}
	if req.MarketingOptIn != nil {
		updates["marketing_opt_in"] = *req.MarketingOptIn
	}
	if len(updates) == 0 {
		return apperr.Validation("no_changes", "no fields to update")
	}
	updates["consent_updated_at"] = time.Now()

	if err := h.db.WithContext(c.UserContext()).Model(user).Updates(updates).Error; err != nil {
		return err
	}
	return respondOK(c, consentView(user))
}

func consentView(user *models.User) fiber.Map {
	return fiber.Map{
		"terms_accepted":     user.TermsAccepted,
		"privacy_accepted":   user.PrivacyAccepted,
		"marketing_opt_in":   user.MarketingOptIn,
		"consent_updated_at": user.ConsentUpdatedAt,
	}
}

// PublicWorkers lists active workers with their profiles. Optional filters:
// city, service, language.
func (h *ProfileHandler) PublicWorkers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.WorkerProfile{}).
		Joins("JOIN users ON users.id = worker_profiles.user_id").
		Where("users.is_active = ? AND users.role = ?", true, models.RoleWorker)

	if city := strings.TrimSpace(c.Query("city")); city != "" {
		query = query.Where("LOWER(worker_profiles.city) = ?", strings.ToLower(city))
	}
	if service := strings.TrimSpace(c.Query("service")); service != "" {
		query = query.Where("? = ANY(worker_profiles.services)", service)
	}
	if language := strings.TrimSpace(c.Query("language")); language != "" {
		query = query.Where("? = ANY(worker_profiles.languages)", language)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.WorkerProfile
	if err := query.Preload("User").Order("worker_profiles.created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&items).Error; err != nil {
		return err
	}
	return respondPage(c, items, pg, total)
}

type workerProfileRequest struct {
	Phone               *string  `json:"phone"`
	Address             *string  `json:"address"`
	City                *string  `json:"city"`
	State               *string  `json:"state"`
	Country             *string  `json:"country"`
	ZipCode             *string  `json:"zip_code"`
	Nationality         *string  `json:"nationality"`
	Bio                 *string  `json:"bio"`
	HourlyRate          *string  `json:"hourly_rate"`
	Experience          *string  `json:"experience"`
	Services            []string `json:"services"`
	Availability        []string `json:"availability"`
	Languages           []string `json:"languages"`
	HasTransportation   *bool    `json:"has_transportation"`
	HasReferences       *bool    `json:"has_references"`
	IsBackgroundChecked *bool    `json:"is_background_checked"`
}

// GetRoleProfile returns the caller's role profile.
func (h *ProfileHandler) GetRoleProfile(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	profile, err := roleProfile(c.UserContext(), h.db, user)
	if err != nil {
		return err
	}
	return respondOK(c, profile)
}

// UpdateWorkerProfile updates the worker CV.
func (h *ProfileHandler) UpdateWorkerProfile(c *fiber.Ctx) error {
	var req workerProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	setString(updates, "phone", req.Phone)
	setString(updates, "address", req.Address)
	setString(updates, "city", req.City)
	setString(updates, "state", req.State)
	setString(updates, "country", req.Country)
	setString(updates, "zip_code", req.ZipCode)
	setString(updates, "nationality", req.Nationality)
	setString(updates, "bio", req.Bio)
	setString(updates, "experience", req.Experience)
	setList(updates, "services", req.Services)
	setList(updates, "availability", req.Availability)
	setList(updates, "languages", req.Languages)
	setBool(updates, "has_transportation", req.HasTransportation)
	setBool(updates, "has_references", req.HasReferences)
	setBool(updates, "is_background_checked", req.IsBackgroundChecked)
	if req.HourlyRate != nil {
		rate, err := utils.NormalizeDecimal("hourly_rate", *req.HourlyRate)
		if err != nil {
			return err
		}
		updates["hourly_rate"] = rate
	}
	return h.updateRoleProfile(c, &models.WorkerProfile{}, updates)
}

type employerProfileRequest struct {
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	CompanyName *string `json:"company_name"`
}

// UpdateEmployerProfile updates the employer profile.
func (h *ProfileHandler) UpdateEmployerProfile(c *fiber.Ctx) error {
	var req employerProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	setString(updates, "phone", req.Phone)
	setString(updates, "address", req.Address)
	setString(updates, "company_name", req.CompanyName)
	return h.updateRoleProfile(c, &models.EmployerProfile{}, updates)
}

type agencyProfileRequest struct {
	AgencyName         *string `json:"agency_name"`
	ApprovalNumber     *string `json:"approval_number"`
	ContactInformation *string `json:"contact_information"`
}

// UpdateAgencyProfile updates the agency profile.
func (h *ProfileHandler) UpdateAgencyProfile(c *fiber.Ctx) error {
	var req agencyProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	setString(updates, "agency_name", req.AgencyName)
	setString(updates, "approval_number", req.ApprovalNumber)
	setString(updates, "contact_information", req.ContactInformation)
	return h.updateRoleProfile(c, &models.AgencyProfile{}, updates)
}

type governmentProfileRequest struct {
	AuthorityName       *string `json:"authority_name"`
	CredentialReference *string `json:"credential_reference"`
}

// UpdateGovernmentProfile updates the regulator profile.
func (h *ProfileHandler) UpdateGovernmentProfile(c *fiber.Ctx) error {
	var req governmentProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	setString(updates, "authority_name", req.AuthorityName)
	setString(updates, "credential_reference", req.CredentialReference)
	return h.updateRoleProfile(c, &models.GovernmentProfile{}, updates)
}

type supportProfileRequest struct {
	BusinessName      *string  `json:"business_name"`
	ServiceCategories []string `json:"service_categories"`
	Description       *string  `json:"description"`
	ContactPhone      *string  `json:"contact_phone"`
	City              *string  `json:"city"`
}

// UpdateSupportProfile updates the support provider profile.
func (h *ProfileHandler) UpdateSupportProfile(c *fiber.Ctx) error {
	var req supportProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	setString(updates, "business_name", req.BusinessName)
	setList(updates, "service_categories", req.ServiceCategories)
	setString(updates, "description", req.Description)
	setString(updates, "contact_phone", req.ContactPhone)
	setString(updates, "city", req.City)
	return h.updateRoleProfile(c, &models.SupportProviderProfile{}, updates)
}

// SupportProviders lists support providers, optionally by category or city.
func (h *ProfileHandler) SupportProviders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.SupportProviderProfile{})
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("? = ANY(service_categories)", category)
	}
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		query = query.Where("LOWER(city) = ?", strings.ToLower(city))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var items []models.SupportProviderProfile
	if err := query.Order("business_name asc").Limit(pg.Limit).Offset(pg.Offset).Find(&items).Error; err != nil {
		return err
	}
	return respondPage(c, items, pg, total)
}

func (h *ProfileHandler) updateRoleProfile(c *fiber.Ctx, model any, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return apperr.Validation("no_changes", "no fields to update")
	}
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	profile, err := roleProfile(c.UserContext(), h.db, user)
	if err != nil {
		return err
	}
	if profile == nil {
		return apperr.NotFound("profile not found")
	}
	if err := h.db.WithContext(c.UserContext()).Model(model).
		Where("user_id = ?", user.ID).Updates(updates).Error; err != nil {
		return err
	}
	if err := h.db.WithContext(c.UserContext()).Where("user_id = ?", user.ID).First(profile).Error; err != nil {
		return err
	}
	return respondOK(c, profile)
}

func setString(updates map[string]interface{}, column string, value *string) {
	if value != nil {
		updates[column] = strings.TrimSpace(*value)
	}
}

func setBool(updates map[string]interface{}, column string, value *bool) {
	if value != nil {
		updates[column] = *value
	}
}

func setList(updates map[string]interface{}, column string, values []string) {
	if values == nil {
		return
	}
	cleaned := make(pq.StringArray, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	updates[column] = cleaned
}
