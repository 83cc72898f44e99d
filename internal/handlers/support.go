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

// SupportHandler manages service requests to support providers.
type SupportHandler struct {
	db *gorm.DB
}

// NewSupportHandler constructs SupportHandler.
func NewSupportHandler(db *gorm.DB) *SupportHandler {
	return &SupportHandler{db: db}
}

type supportRequestBody struct {
	ProviderID  string `json:"provider_id" validate:"required,uuid"`
	Category    string `json:"category" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
}

// CreateRequest opens a service request with a support provider.
func (h *SupportHandler) CreateRequest(c *fiber.Ctx) error {
	var req supportRequestBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	provider, err := findUserWithRole(c, h.db, uuid.MustParse(req.ProviderID), models.RoleSupportProvider)
	if err != nil {
		return err
	}
	actor := middleware.CurrentActor(c)
	if provider.ID == actor.ID {
		return apperr.Validation("invalid_provider_id", "cannot request your own service")
	}

	request := models.SupportServiceRequest{
		RequesterID: actor.ID,
		ProviderID:  provider.ID,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Status:      models.SupportRequestOpen,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&request).Error; err != nil {
		return err
	}
	return respondCreated(c, request)
}

// ListRequests returns requests the caller made or, for providers, received.
func (h *SupportHandler) ListRequests(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.SupportServiceRequest{}).
		Where("requester_id = ? OR provider_id = ?", actor.ID, actor.ID)
	if raw := c.Query("status"); raw != "" {
		status, err := workflow.ParseSupportRequestStatus(raw)
		if err != nil {
			return err
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var items []models.SupportServiceRequest
	if err := query.Order("created_at desc").Limit(pg.Limit).Offset(pg.Offset).Find(&items).Error; err != nil {
		return err
	}
	return respondPage(c, items, pg, total)
}

// UpdateRequestStatus is restricted to the provider the request was sent to.
func (h *SupportHandler) UpdateRequestStatus(c *fiber.Ctx) error {
	request, err := h.participantRequest(c)
	if err != nil {
		return err
	}
	if request.ProviderID != middleware.CurrentActor(c).ID {
		return apperr.Forbidden("only the provider can update this request")
	}
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status, err := workflow.ParseSupportRequestStatus(req.Status)
	if err != nil {
		return err
	}

	request.Status = status
	if err := h.db.WithContext(c.UserContext()).Save(request).Error; err != nil {
		return err
	}
	return respondOK(c, request)
}

// ListMessages returns a request's messages, oldest first.
func (h *SupportHandler) ListMessages(c *fiber.Ctx) error {
	request, err := h.participantRequest(c)
	if err != nil {
		return err
	}
	var messages []models.SupportServiceMessage
	if err := h.db.WithContext(c.UserContext()).
		Where("request_id = ?", request.ID).
		Order("created_at asc").
		Find(&messages).Error; err != nil {
		return err
	}
	return respondOK(c, messages)
}

// PostMessage adds a message to a request thread.
func (h *SupportHandler) PostMessage(c *fiber.Ctx) error {
	request, err := h.participantRequest(c)
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

	msg := models.SupportServiceMessage{RequestID: request.ID, SenderID: middleware.CurrentActor(c).ID, Message: text}
	if err := h.db.WithContext(c.UserContext()).Create(&msg).Error; err != nil {
		return err
	}
	return respondCreated(c, msg)
}

func (h *SupportHandler) participantRequest(c *fiber.Ctx) (*models.SupportServiceRequest, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	var request models.SupportServiceRequest
	if err := h.db.WithContext(c.UserContext()).First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("service request not found")
		}
		return nil, err
	}
	if !request.Participant(middleware.CurrentActor(c).ID) {
		return nil, apperr.Forbidden("you are not a participant of this request")
	}
	return &request, nil
}
