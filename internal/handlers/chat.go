package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/utils"
	"github.com/example/domestyx/internal/workflow"
)

// ChatHandler manages employer-worker conversations and their calls.
type ChatHandler struct {
	db  *gorm.DB
	svc *workflow.Service
}

// NewChatHandler constructs ChatHandler.
func NewChatHandler(db *gorm.DB, svc *workflow.Service) *ChatHandler {
	return &ChatHandler{db: db, svc: svc}
}

type openThreadRequest struct {
	WorkerID   *string `json:"worker_id"`
	EmployerID *string `json:"employer_id"`
	JobID      *string `json:"job_id"`
}

// OpenThread returns the conversation between the caller and the other side,
// creating it on first use.
func (h *ChatHandler) OpenThread(c *fiber.Ctx) error {
	var req openThreadRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	actor := middleware.CurrentActor(c)

	thread := models.ChatThread{}
	switch actor.Role {
	case models.RoleEmployer:
		workerID, err := optionalID("worker_id", req.WorkerID)
		if err != nil {
			return err
		}
		if workerID == nil {
			return apperr.Validation("worker_id_required", "worker_id is required")
		}
		if _, err := findUserWithRole(c, h.db, *workerID, models.RoleWorker); err != nil {
			return err
		}
		thread.EmployerID, thread.WorkerID = actor.ID, *workerID
	case models.RoleWorker:
		employerID, err := optionalID("employer_id", req.EmployerID)
		if err != nil {
			return err
		}
		if employerID == nil {
			return apperr.Validation("employer_id_required", "employer_id is required")
		}
		if _, err := findUserWithRole(c, h.db, *employerID, models.RoleEmployer); err != nil {
			return err
		}
		thread.EmployerID, thread.WorkerID = *employerID, actor.ID
	default:
		return apperr.Forbidden("only employers and workers can start conversations")
	}

	jobID, err := optionalID("job_id", req.JobID)
	if err != nil {
		return err
	}
	if jobID != nil {
		if _, err := findJob(c, h.db, *jobID); err != nil {
			return err
		}
		thread.JobID = jobID
	}
	existing := func() *gorm.DB {
		query := h.db.WithContext(c.UserContext()).
			Where("employer_id = ? AND worker_id = ?", thread.EmployerID, thread.WorkerID)
		if jobID != nil {
			return query.Where("job_id = ?", *jobID)
		}
		return query.Where("job_id IS NULL")
	}

	err = existing().FirstOrCreate(&thread).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another request created the thread between the lookup and the insert.
		var created models.ChatThread
		err = existing().First(&created).Error
		thread = created
	}
	if err != nil {
		return err
	}
	return respondOK(c, thread)
}

// ListThreads returns the caller's conversations.
func (h *ChatHandler) ListThreads(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	var threads []models.ChatThread
	if err := h.db.WithContext(c.UserContext()).
		Where("employer_id = ? OR worker_id = ?", actor.ID, actor.ID).
		Order("updated_at desc").
		Find(&threads).Error; err != nil {
		return err
	}
	return respondOK(c, threads)
}

// ListMessages returns a page of messages, oldest first.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	thread, err := h.participantThread(c)
	if err != nil {
		return err
	}
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.ChatMessage{}).Where("thread_id = ?", thread.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var messages []models.ChatMessage
	if err := query.Order("created_at asc").Limit(pg.Limit).Offset(pg.Offset).Find(&messages).Error; err != nil {
		return err
	}
	return respondPage(c, messages, pg, total)
}

type messageRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

// PostMessage adds a message to the thread.
func (h *ChatHandler) PostMessage(c *fiber.Ctx) error {
	thread, err := h.participantThread(c)
	if err != nil {
		return err
	}
	var req messageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return apperr.Validation("invalid_message", "message cannot be empty")
	}

	msg := models.ChatMessage{ThreadID: thread.ID, SenderID: middleware.CurrentActor(c).ID, Message: text}
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(thread).UpdateColumn("updated_at", msg.CreatedAt).Error
	})
	if err != nil {
		return err
	}
	return respondCreated(c, msg)
}

// MarkRead marks the counterpart's messages in the thread as read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	thread, err := h.participantThread(c)
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).Model(&models.ChatMessage{}).
		Where("thread_id = ? AND sender_id <> ? AND is_read = ?", thread.ID, middleware.CurrentActor(c).ID, false).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	return respondOK(c, fiber.Map{"marked_read": res.RowsAffected})
}

type callRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// RequestCall asks the counterpart for a call.
func (h *ChatHandler) RequestCall(c *fiber.Ctx) error {
	threadID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req callRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	call, err := h.svc.RequestCall(c.UserContext(), middleware.CurrentActor(c), threadID, req.Notes)
	if err != nil {
		return err
	}
	return respondCreated(c, call)
}

type callActionRequest struct {
	Action string `json:"action" validate:"required"`
}

// UpdateCall accepts, rejects or ends a call.
func (h *ChatHandler) UpdateCall(c *fiber.Ctx) error {
	callID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req callActionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	call, err := h.svc.UpdateCall(c.UserContext(), middleware.CurrentActor(c), callID, req.Action)
	if err != nil {
		return err
	}
	return respondOK(c, call)
}

// ListCalls returns the call history of a thread.
func (h *ChatHandler) ListCalls(c *fiber.Ctx) error {
	thread, err := h.participantThread(c)
	if err != nil {
		return err
	}
	var calls []models.CallSession
	if err := h.db.WithContext(c.UserContext()).
		Where("thread_id = ?", thread.ID).
		Order("started_at desc").
		Find(&calls).Error; err != nil {
		return err
	}
	return respondOK(c, calls)
}

func (h *ChatHandler) participantThread(c *fiber.Ctx) (*models.ChatThread, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	var thread models.ChatThread
	if err := h.db.WithContext(c.UserContext()).First(&thread, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("conversation not found")
		}
		return nil, err
	}
	if !thread.Participant(middleware.CurrentActor(c).ID) {
		return nil, apperr.Forbidden("you are not a participant of this conversation")
	}
	return &thread, nil
}
