package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
)

// ShortlistHandler manages an employer's shortlisted workers.
type ShortlistHandler struct {
	db *gorm.DB
}

// NewShortlistHandler constructs ShortlistHandler.
func NewShortlistHandler(db *gorm.DB) *ShortlistHandler {
	return &ShortlistHandler{db: db}
}

type shortlistRequest struct {
	WorkerID string  `json:"worker_id" validate:"required,uuid"`
	JobID    *string `json:"job_id"`
	Notes    string  `json:"notes" validate:"max=2000"`
}

// Add shortlists a worker, optionally for one of the employer's jobs.
func (h *ShortlistHandler) Add(c *fiber.Ctx) error {
	var req shortlistRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	actor := middleware.CurrentActor(c)

	workerID := uuid.MustParse(req.WorkerID)
	if _, err := findUserWithRole(c, h.db, workerID, models.RoleWorker); err != nil {
		return err
	}
	jobID, err := optionalID("job_id", req.JobID)
	if err != nil {
		return err
	}
	if jobID != nil {
		job, err := findJob(c, h.db, *jobID)
		if err != nil {
			return err
		}
		if !isJobManager(actor, job) {
			return apperr.Forbidden("you do not manage this job")
		}
	}

	entry := models.ShortlistedWorker{EmployerID: actor.ID, WorkerID: workerID, JobID: jobID, Notes: req.Notes}
	if err := h.db.WithContext(c.UserContext()).Create(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("already_shortlisted", "worker is already shortlisted")
		}
		return err
	}
	return respondCreated(c, entry)
}

// List returns the employer's shortlist, optionally for one job.
func (h *ShortlistHandler) List(c *fiber.Ctx) error {
	query := h.db.WithContext(c.UserContext()).Where("employer_id = ?", middleware.CurrentActor(c).ID)
	if raw := c.Query("job_id"); raw != "" {
		jobID, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Validation("invalid_job_id", "invalid job_id")
		}
		query = query.Where("job_id = ?", jobID)
	}

	var items []models.ShortlistedWorker
	if err := query.Preload("Worker").Order("created_at desc").Find(&items).Error; err != nil {
		return err
	}
	return respondOK(c, items)
}

// Remove deletes a shortlist entry owned by the employer.
func (h *ShortlistHandler) Remove(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).
		Where("id = ? AND employer_id = ?", id, middleware.CurrentActor(c).ID).
		Delete(&models.ShortlistedWorker{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("shortlist entry not found")
	}
	return c.JSON(fiber.Map{"success": true, "message": "worker removed from shortlist"})
}

func findUserWithRole(c *fiber.Ctx, db *gorm.DB, id uuid.UUID, role models.Role) (*models.User, error) {
	var user models.User
	if err := db.WithContext(c.UserContext()).First(&user, "id = ? AND role = ?", id, role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(string(role) + " not found")
		}
		return nil, err
	}
	return &user, nil
}
