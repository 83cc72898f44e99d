package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
)

// ReviewHandler manages worker ratings.
type ReviewHandler struct {
	db *gorm.DB
}

// NewReviewHandler constructs ReviewHandler.
func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{db: db}
}

type reviewRequest struct {
	WorkerID string  `json:"worker_id" validate:"required,uuid"`
	JobID    *string `json:"job_id"`
	Rating   int     `json:"rating" validate:"required,min=1,max=5"`
	Comment  string  `json:"comment" validate:"max=2000"`
}

// Create rates a worker. A reviewer rates a worker once per job.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	var req reviewRequest
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

	review := models.WorkerReview{
		ReviewerID: actor.ID,
		WorkerID:   workerID,
		JobID:      jobID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("already_reviewed", "you have already reviewed this worker")
		}
		return err
	}
	return respondCreated(c, review)
}

// ListForWorker returns a worker's reviews with their average rating.
func (h *ReviewHandler) ListForWorker(c *fiber.Ctx) error {
	workerID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var reviews []models.WorkerReview
	if err := h.db.WithContext(c.UserContext()).
		Where("worker_id = ?", workerID).
		Order("created_at desc").
		Find(&reviews).Error; err != nil {
		return err
	}

	return respondOK(c, fiber.Map{
		"reviews":        reviews,
		"count":          len(reviews),
		"average_rating": averageRating(reviews),
	})
}

// averageRating is rounded to two decimals and rendered as a decimal string.
func averageRating(reviews []models.WorkerReview) string {
	if len(reviews) == 0 {
		return "0.00"
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	// Hundredths, rounded half up.
	hundredths := (sum*200 + len(reviews)) / (2 * len(reviews))
	return fmt.Sprintf("%d.%02d", hundredths/100, hundredths%100)
}
