package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
)

// ComplianceHandler lets any user file a report for regulator review.
type ComplianceHandler struct {
	db *gorm.DB
}

// NewComplianceHandler constructs ComplianceHandler.
func NewComplianceHandler(db *gorm.DB) *ComplianceHandler {
	return &ComplianceHandler{db: db}
}

type reportRequest struct {
	SubjectUserID *string `json:"subject_user_id"`
	SubjectJobID  *string `json:"subject_job_id"`
	Category      string  `json:"category" validate:"required,max=100"`
	Description   string  `json:"description" validate:"required,max=5000"`
}

// File creates a pending compliance report about a user or a job.
func (h *ComplianceHandler) File(c *fiber.Ctx) error {
	var req reportRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	subjectUser, err := optionalID("subject_user_id", req.SubjectUserID)
	if err != nil {
		return err
	}
	subjectJob, err := optionalID("subject_job_id", req.SubjectJobID)
	if err != nil {
		return err
	}
	if subjectUser == nil && subjectJob == nil {
		return apperr.Validation("subject_required", "subject_user_id or subject_job_id is required")
	}

	db := h.db.WithContext(c.UserContext())
	if subjectUser != nil {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", *subjectUser).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperr.NotFound("user not found")
		}
	}
	if subjectJob != nil {
		if _, err := findJob(c, h.db, *subjectJob); err != nil {
			return err
		}
	}

	report := models.ComplianceReport{
		ReporterID:    middleware.CurrentActor(c).ID,
		SubjectUserID: subjectUser,
		SubjectJobID:  subjectJob,
		Category:      strings.ToLower(strings.TrimSpace(req.Category)),
		Description:   strings.TrimSpace(req.Description),
		Status:        models.ReportStatusPending,
	}
	if err := db.Create(&report).Error; err != nil {
		return err
	}
	return respondCreated(c, report)
}

// Mine lists reports filed by the caller.
func (h *ComplianceHandler) Mine(c *fiber.Ctx) error {
	var reports []models.ComplianceReport
	if err := h.db.WithContext(c.UserContext()).
		Where("reporter_id = ?", middleware.CurrentActor(c).ID).
		Order("created_at desc").
		Find(&reports).Error; err != nil {
		return err
	}
	return respondOK(c, reports)
}
