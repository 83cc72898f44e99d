package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/workflow"
)

// OfferHandler manages job offers.
type OfferHandler struct {
	db  *gorm.DB
	svc *workflow.Service
}

// NewOfferHandler constructs OfferHandler.
func NewOfferHandler(db *gorm.DB, svc *workflow.Service) *OfferHandler {
	return &OfferHandler{db: db, svc: svc}
}

type createOfferRequest struct {
	ApplicationID     string `json:"application_id" validate:"required,uuid"`
	Message           string `json:"message" validate:"max=5000"`
	ContractText      string `json:"contract_text"`
	EmployerSignature string `json:"employer_signature" validate:"max=255"`
}

// Create sends an offer for one of the employer's applications.
func (h *OfferHandler) Create(c *fiber.Ctx) error {
	var req createOfferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	offer, err := h.svc.CreateOffer(c.UserContext(), middleware.CurrentActor(c), workflow.OfferInput{
		ApplicationID:     uuid.MustParse(req.ApplicationID),
		Message:           req.Message,
		ContractText:      req.ContractText,
		EmployerSignature: req.EmployerSignature,
	})
	if err != nil {
		return err
	}
	return respondCreated(c, offer)
}

// ListMine returns offers the caller sent or received.
func (h *OfferHandler) ListMine(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	column := "worker_id"
	if actor.Role == models.RoleEmployer {
		column = "employer_id"
	}

	query := h.db.WithContext(c.UserContext()).Where(column+" = ?", actor.ID)
	if status := c.Query("status"); status != "" {
		parsed, err := workflow.ParseOfferStatus(status)
		if err != nil {
			return err
		}
		query = query.Where("status = ?", parsed)
	}

	var offers []models.JobOffer
	if err := query.Order("created_at desc").Find(&offers).Error; err != nil {
		return err
	}
	return respondOK(c, offers)
}

type respondOfferRequest struct {
	Decision  string `json:"decision" validate:"required"`
	Signature string `json:"signature" validate:"max=255"`
}

// Respond accepts or rejects an offer addressed to the worker.
func (h *OfferHandler) Respond(c *fiber.Ctx) error {
	offerID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req respondOfferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	offer, err := h.svc.RespondToOffer(c.UserContext(), middleware.CurrentActor(c), offerID, req.Decision, req.Signature)
	if err != nil {
		return err
	}
	return respondOK(c, offer)
}
