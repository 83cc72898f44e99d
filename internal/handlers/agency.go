package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/utils"
	"github.com/example/domestyx/internal/workflow"
)

// AgencyHandler manages recruitment-agency endpoints.
type AgencyHandler struct {
	db *gorm.DB
}

// NewAgencyHandler constructs AgencyHandler.
func NewAgencyHandler(db *gorm.DB) *AgencyHandler {
	return &AgencyHandler{db: db}
}

type employerListing struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	CompanyName string    `json:"company_name"`
}

// ListEmployers returns active employers an agency can post jobs for.
func (h *AgencyHandler) ListEmployers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Table("users").
		Joins("LEFT JOIN employer_profiles ON employer_profiles.user_id = users.id").
		Where("users.role = ? AND users.is_active = ?", models.RoleEmployer, true)

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"users.first_name ILIKE ? OR users.last_name ILIKE ? OR users.email ILIKE ? OR employer_profiles.company_name ILIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []employerListing
	if err := query.
		Select("users.id, users.email, users.first_name, users.last_name, users.phone, COALESCE(employer_profiles.company_name, '') AS company_name").
		Order("users.created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Scan(&items).Error; err != nil {
		return err
	}
	return respondPage(c, items, pg, total)
}

type submissionRequest struct {
	WorkerID          string `json:"worker_id" validate:"required,uuid"`
	JobRole           string `json:"job_role" validate:"required,max=255"`
	ExperienceSummary string `json:"experience_summary" validate:"max=5000"`
	Notes             string `json:"notes" validate:"max=2000"`
}

// CreateSubmission puts a worker forward on behalf of the agency.
func (h *AgencyHandler) CreateSubmission(c *fiber.Ctx) error {
	var req submissionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	workerID := uuid.MustParse(req.WorkerID)
	if _, err := findUserWithRole(c, h.db, workerID, models.RoleWorker); err != nil {
		return err
	}

	submission := models.AgencyWorkerSubmission{
		AgencyID:          middleware.CurrentActor(c).ID,
		WorkerID:          workerID,
		JobRole:           strings.TrimSpace(req.JobRole),
		ExperienceSummary: req.ExperienceSummary,
		Notes:             req.Notes,
		Status:            models.SubmissionStatusSubmitted,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&submission).Error; err != nil {
		return err
	}
	return respondCreated(c, submission)
}

// ListSubmissions returns the agency's submissions, optionally by status.
func (h *AgencyHandler) ListSubmissions(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.AgencyWorkerSubmission{}).
		Where("agency_id = ?", middleware.CurrentActor(c).ID)
	if status := c.Query("status"); status != "" {
		parsed, err := workflow.ParseSubmissionStatus(status)
		if err != nil {
			return err
		}
		query = query.Where("status = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var items []models.AgencyWorkerSubmission
	if err := query.Order("created_at desc").Limit(pg.Limit).Offset(pg.Offset).Find(&items).Error; err != nil {
		return err
	}
	return respondPage(c, items, pg, total)
}

// UpdateSubmissionStatus moves one of the agency's submissions to a new status.
func (h *AgencyHandler) UpdateSubmissionStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status, err := workflow.ParseSubmissionStatus(req.Status)
	if err != nil {
		return err
	}

	var submission models.AgencyWorkerSubmission
	db := h.db.WithContext(c.UserContext())
	if err := db.First(&submission, "id = ? AND agency_id = ?", id, middleware.CurrentActor(c).ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("submission not found")
		}
		return err
	}
	submission.Status = status
	if req.Notes != "" {
		submission.Notes = req.Notes
	}
	if err := db.Save(&submission).Error; err != nil {
		return err
	}
	return respondOK(c, submission)
}
