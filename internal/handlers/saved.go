package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/utils"
)

// SaveJob bookmarks a visible job for the worker. Saving twice is a no-op.
func (h *JobHandler) SaveJob(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	job, err := h.loadJob(c, jobID)
	if err != nil {
		return err
	}
	if !job.VisibleToWorkers() {
		return apperr.NotFound("job not found")
	}

	actor := middleware.CurrentActor(c)
	saved := models.SavedJob{WorkerID: actor.ID, JobID: jobID}
	err = h.db.WithContext(c.UserContext()).
		Where("worker_id = ? AND job_id = ?", actor.ID, jobID).
		FirstOrCreate(&saved).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return respondCreated(c, saved)
}

// UnsaveJob removes a bookmark.
func (h *JobHandler) UnsaveJob(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).
		Where("worker_id = ? AND job_id = ?", middleware.CurrentActor(c).ID, jobID).
		Delete(&models.SavedJob{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("saved job not found")
	}
	return c.JSON(fiber.Map{"success": true, "message": "job removed from saved list"})
}

// SavedJobs lists the worker's bookmarks.
func (h *JobHandler) SavedJobs(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.SavedJob{}).
		Where("worker_id = ?", middleware.CurrentActor(c).ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var items []models.SavedJob
	if err := query.Preload("Job").Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).Find(&items).Error; err != nil {
		return err
	}
	return respondPage(c, items, pg, total)
}
