package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/domestyx/internal/accounts"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/utils"
)

type resetPasswordRequest struct {
	Channel     string `json:"channel" validate:"required"`
	Target      string `json:"target" validate:"required"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ResetPassword sets a new password after a password_reset code sent through
// /api/auth/otp/send has been presented.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := accounts.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	ctx := c.UserContext()
	rec, err := h.otp.Verify(ctx, otp.VerifyRequest{
		Channel: req.Channel,
		Target:  req.Target,
		Purpose: string(models.OTPPurposePasswordReset),
		Code:    req.Code,
	})
	if err != nil {
		return err
	}

	user, err := h.store.FindUserByContact(ctx, rec.Channel, rec.Target)
	if err != nil {
		if apperr.HasKind(err, apperr.KindNotFound) {
			return apperr.NotFound("no account is registered for this contact")
		}
		return err
	}
	if err := h.setPassword(c, user.ID, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "password updated"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := accounts.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	user, err := h.store.FindUser(c.UserContext(), middleware.CurrentActor(c).ID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return apperr.Unauthorized("current password is incorrect")
	}
	if err := h.setPassword(c, user.ID, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "password updated"})
}

func (h *AuthHandler) setPassword(c *fiber.Ctx, userID uuid.UUID, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := h.store.UpdatePassword(c.UserContext(), userID, hash); err != nil {
		return err
	}
	h.log.Info("password updated", zap.String("user_id", userID.String()))
	return nil
}
