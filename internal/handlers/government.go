package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/utils"
	"github.com/example/domestyx/internal/workflow"
)

// GovernmentHandler serves the regulator's review queue, reports and analytics.
type GovernmentHandler struct {
	db  *gorm.DB
	svc *workflow.Service
}

// NewGovernmentHandler constructs GovernmentHandler.
func NewGovernmentHandler(db *gorm.DB, svc *workflow.Service) *GovernmentHandler {
	return &GovernmentHandler{db: db, svc: svc}
}

// Analytics returns platform-wide counts for the regulator dashboard.
func (h *GovernmentHandler) Analytics(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}
	usersByRole, err := groupCounts(db, &models.User{}, "role")
	if err != nil {
		return err
	}
	jobsByStatus, err := groupCounts(db, &models.Job{}, "status")
	if err != nil {
		return err
	}
	jobsByReview, err := groupCounts(db, &models.Job{}, "review_status")
	if err != nil {
		return err
	}
	applicationsByStatus, err := groupCounts(db, &models.Application{}, "status")
	if err != nil {
		return err
	}
	reportsByStatus, err := groupCounts(db, &models.ComplianceReport{}, "status")
	if err != nil {
		return err
	}

	return respondOK(c, fiber.Map{
		"total_users":            totalUsers,
		"users_by_role":          usersByRole,
		"jobs_by_status":         jobsByStatus,
		"jobs_by_review_status":  jobsByReview,
		"applications_by_status": applicationsByStatus,
		"reports_by_status":      reportsByStatus,
	})
}

func groupCounts(db *gorm.DB, model any, column string) (map[string]int64, error) {
	type row struct {
		Value string
		Count int64
	}
	var rows []row
	if err := db.Model(model).
		Select(column + " AS value, count(*) AS count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Value] = r.Count
	}
	return counts, nil
}

// ReviewQueue lists jobs by review status, pending by default.
func (h *GovernmentHandler) ReviewQueue(c *fiber.Ctx) error {
	status := models.ReviewStatusPending
	if raw := c.Query("review_status"); raw != "" {
		parsed, err := workflow.ParseReviewStatus(raw)
		if err != nil {
			return err
		}
		status = parsed
	}

	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Job{}).Where("review_status = ?", status)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var jobs []models.Job
	if err := query.Preload("Employer").Order("posted_at asc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&jobs).Error; err != nil {
		return err
	}
	return respondPage(c, jobs, pg, total)
}

// ReviewJob approves, rejects or reopens a job posting.
func (h *GovernmentHandler) ReviewJob(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	job, err := h.svc.ReviewJob(c.UserContext(), middleware.CurrentActor(c), jobID, req.Status, req.Notes)
	if err != nil {
		return err
	}
	return respondOK(c, job)
}

// ListReports returns compliance reports, optionally by status.
func (h *GovernmentHandler) ListReports(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.ComplianceReport{})
	if raw := c.Query("status"); raw != "" {
		status, err := workflow.ParseReportStatus(raw)
		if err != nil {
			return err
		}
		query = query.Where("status = ?", status)
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var reports []models.ComplianceReport
	if err := query.Order("created_at desc").Limit(pg.Limit).Offset(pg.Offset).Find(&reports).Error; err != nil {
		return err
	}
	return respondPage(c, reports, pg, total)
}

type reportUpdateRequest struct {
	Status          string `json:"status" validate:"required"`
	ResolutionNotes string `json:"resolution_notes" validate:"max=5000"`
}

// UpdateReport changes a report's status and records who handled it.
func (h *GovernmentHandler) UpdateReport(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req reportUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status, err := workflow.ParseReportStatus(req.Status)
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	var report models.ComplianceReport
	if err := db.First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("report not found")
		}
		return err
	}

	reviewer := middleware.CurrentActor(c).ID
	report.Status = status
	report.ReviewedByID = &reviewer
	if notes := strings.TrimSpace(req.ResolutionNotes); notes != "" {
		report.ResolutionNotes = notes
	}
	switch status {
	case models.ReportStatusResolved, models.ReportStatusDismissed:
		now := time.Now()
		report.ResolvedAt = &now
	default:
		report.ResolvedAt = nil
	}
	if err := db.Save(&report).Error; err != nil {
		return err
	}
	return respondOK(c, report)
}
