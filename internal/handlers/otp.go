package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
)

type sendOTPRequest struct {
	Channel string `json:"channel" validate:"required"`
	Target  string `json:"target" validate:"required"`
	Purpose string `json:"purpose"`
}

// SendOTP issues a one-time code to an email address or phone number.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.otp.Send(c.UserContext(), otp.SendRequest{
		Channel: req.Channel,
		Target:  req.Target,
		Purpose: req.Purpose,
	})
	if err != nil {
		return err
	}

	body := fiber.Map{
		"success":            true,
		"message":            "verification code sent",
		"channel":            result.Channel,
		"purpose":            result.Purpose,
		"target":             result.MaskedTarget,
		"expires_in_seconds": result.ExpiresInSeconds,
	}
	if result.DebugCode != "" {
		body["message"] = "delivery failed, use the debug code"
		body["debug_code"] = result.DebugCode
	}
	return c.JSON(body)
}

type verifyOTPRequest struct {
	Channel string `json:"channel" validate:"required"`
	Target  string `json:"target" validate:"required"`
	Purpose string `json:"purpose"`
	Code    string `json:"code" validate:"required"`
}

// VerifyOTP checks a code. A signed-in caller verifying their own contact with
// the contact purpose gets it flagged as verified.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	actor := middleware.CurrentActor(c)
	verifyReq := otp.VerifyRequest{
		Channel: req.Channel,
		Target:  req.Target,
		Purpose: req.Purpose,
		Code:    req.Code,
	}
	if actor.ID != uuid.Nil {
		id := actor.ID
		verifyReq.UserID = &id
	}

	rec, err := h.otp.Verify(ctx, verifyReq)
	if err != nil {
		return err
	}

	if rec.Purpose == models.OTPPurposeContact && verifyReq.UserID != nil {
		user, err := h.store.FindUser(ctx, actor.ID)
		if err != nil {
			return err
		}
		if (rec.Channel == models.OTPChannelEmail && user.Email == rec.Target) ||
			(rec.Channel == models.OTPChannelPhone && user.Phone == rec.Target) {
			if err := h.store.MarkContactVerified(ctx, user.ID, rec.Channel); err != nil {
				return err
			}
			h.log.Info("contact verified", zap.String("user_id", user.ID.String()), zap.String("channel", string(rec.Channel)))
		}
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "verification successful",
		"verified": true,
	})
}

type otpLoginRequest struct {
	Channel string `json:"channel" validate:"required"`
	Target  string `json:"target" validate:"required"`
	Code    string `json:"code" validate:"required"`
}

// LoginWithOTP signs a user in with a login-purpose code instead of a password.
func (h *AuthHandler) LoginWithOTP(c *fiber.Ctx) error {
	var req otpLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	rec, err := h.otp.Verify(ctx, otp.VerifyRequest{
		Channel: req.Channel,
		Target:  req.Target,
		Purpose: string(models.OTPPurposeLogin),
		Code:    req.Code,
	})
	if err != nil {
		return err
	}

	user, err := h.store.FindUserByContact(ctx, rec.Channel, rec.Target)
	if err != nil {
		if apperr.HasKind(err, apperr.KindNotFound) {
			return apperr.Unauthorized("no account is registered for this contact")
		}
		return err
	}
	return h.respondWithTokens(c, user)
}
