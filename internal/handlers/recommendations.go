package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/matching"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/workflow"
)

// RecommendedJobs ranks visible jobs against the calling worker's profile.
func (h *JobHandler) RecommendedJobs(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	ctx := c.UserContext()

	var profile models.WorkerProfile
	if err := h.db.WithContext(ctx).Where("user_id = ?", actor.ID).First(&profile).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// A worker without a profile has nothing to match on.
		return respondOK(c, []fiber.Map{})
	}

	var jobs []models.Job
	if err := h.db.WithContext(ctx).
		Where("status = ? AND review_status = ?", models.JobStatusActive, models.ReviewStatusApproved).
		Find(&jobs).Error; err != nil {
		return err
	}

	ranked := matching.RankJobs(matching.WorkerFactsFrom(&profile), jobs, matching.JobRecommendationLimit)
	items := make([]fiber.Map, len(ranked))
	for i, r := range ranked {
		items[i] = fiber.Map{"job": r.Job, "match_score": r.Score}
	}
	return respondOK(c, items)
}

// RecommendedWorkers ranks active workers for a job the caller manages.
func (h *JobHandler) RecommendedWorkers(c *fiber.Ctx) error {
	jobID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	job, err := h.loadJob(c, jobID)
	if err != nil {
		return err
	}
	if err := workflow.CanManageJob(middleware.CurrentActor(c), job); err != nil {
		return err
	}

	var profiles []models.WorkerProfile
	if err := h.db.WithContext(c.UserContext()).
		Joins("JOIN users ON users.id = worker_profiles.user_id").
		Where("users.is_active = ? AND users.role = ?", true, models.RoleWorker).
		Preload("User").
		Find(&profiles).Error; err != nil {
		return err
	}

	ranked := matching.RankWorkers(matching.JobFactsFrom(job), profiles, matching.WorkerRecommendationLimit)
	items := make([]fiber.Map, len(ranked))
	for i, r := range ranked {
		items[i] = fiber.Map{"worker": r.Profile, "match_score": r.Score}
	}
	return respondOK(c, items)
}
