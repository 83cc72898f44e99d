package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/domestyx/internal/accounts"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/cache"
	"github.com/example/domestyx/internal/config"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/utils"
)

// AccountStore is the account persistence the auth endpoints need.
type AccountStore interface {
	accounts.Store
	middleware.UserFinder
	FindUserByContact(ctx context.Context, channel models.OTPChannel, target string) (*models.User, error)
	MarkContactVerified(ctx context.Context, userID uuid.UUID, channel models.OTPChannel) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error
	DeactivateUser(ctx context.Context, userID uuid.UUID, at time.Time) error
	DeleteUsers(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// AuthHandler bundles dependencies for authentication and account endpoints.
type AuthHandler struct {
	cfg     *config.Config
	store   AccountStore
	otp     *otp.Engine
	revoked cache.RevocationList
	log     *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(cfg *config.Config, store AccountStore, engine *otp.Engine, revoked cache.RevocationList, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{cfg: cfg, store: store, otp: engine, revoked: revoked, log: log.Named("auth")}
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	Role            string `json:"role" validate:"required"`
	FirstName       string `json:"first_name" validate:"max=150"`
	LastName        string `json:"last_name" validate:"max=150"`
	Phone           string `json:"phone"`
	TermsAccepted   bool   `json:"terms_accepted"`
	PrivacyAccepted bool   `json:"privacy_accepted"`
	MarketingOptIn  bool   `json:"marketing_opt_in"`
	CompanyName     string `json:"company_name"`
	AgencyName      string `json:"agency_name"`
	AuthorityName   string `json:"authority_name"`
	BusinessName    string `json:"business_name"`
}

// Register creates an account once the email has been verified with a
// registration code.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	role := models.Role(req.Role)
	attrs := accounts.Attrs{
		Email:           req.Email,
		Password:        req.Password,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		TermsAccepted:   req.TermsAccepted,
		PrivacyAccepted: req.PrivacyAccepted,
		MarketingOptIn:  req.MarketingOptIn,
		CompanyName:     req.CompanyName,
		AgencyName:      req.AgencyName,
		AuthorityName:   req.AuthorityName,
		BusinessName:    req.BusinessName,
	}
	if err := accounts.Validate(role, attrs); err != nil {
		return err
	}

	email := accounts.NormalizeEmail(req.Email)
	taken, err := h.store.EmailTaken(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("email_taken", "an account with this email already exists")
	}

	if h.cfg.OTP.RequireForRegistration {
		if err := h.otp.RequireVerification(ctx, models.OTPChannelEmail, email, models.OTPPurposeRegistration); err != nil {
			return err
		}
		attrs.EmailVerified = true
	}

	// The code is only spent once the account exists, so losing the email
	// race leaves it usable.
	user, profile, err := accounts.CreateUser(ctx, h.store, role, attrs)
	if err != nil {
		return err
	}
	if h.cfg.OTP.RequireForRegistration {
		if err := h.otp.ConsumeVerification(ctx, models.OTPChannelEmail, email, models.OTPPurposeRegistration); err != nil {
			h.log.Warn("registration code already consumed", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	h.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))

	tokens, err := h.issueTokens(user)
	if err != nil {
		return err
	}
	tokens["user"] = user
	tokens["profile"] = profile
	return respondCreated(c, tokens)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges email and password for an access and refresh token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.store.FindUserByContact(c.UserContext(), models.OTPChannelEmail, accounts.NormalizeEmail(req.Email))
	if err != nil {
		if apperr.HasKind(err, apperr.KindNotFound) {
			return apperr.Unauthorized("invalid credentials")
		}
		return err
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return apperr.Unauthorized("invalid credentials")
	}
	return h.respondWithTokens(c, user)
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Refresh rotates a refresh token into a new token pair.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	claims, err := utils.ParseToken(h.cfg.JWTSecret, req.Refresh, utils.TokenTypeRefresh)
	if err != nil {
		return apperr.Unauthorized("invalid refresh token")
	}
	revoked, err := h.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return apperr.Unauthorized("refresh token has been revoked")
	}

	user, err := h.store.FindUser(ctx, claims.ParsedUserID())
	if err != nil {
		if apperr.HasKind(err, apperr.KindNotFound) {
			return apperr.Unauthorized("account not found")
		}
		return err
	}
	if err := h.revoked.Revoke(ctx, claims.ID, claims.ExpiresIn(time.Now())); err != nil {
		return err
	}
	return h.respondWithTokens(c, user)
}

type verifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// VerifyToken reports whether a token is valid and unrevoked.
func (h *AuthHandler) VerifyToken(c *fiber.Ctx) error {
	var req verifyTokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	claims, err := utils.ParseToken(h.cfg.JWTSecret, req.Token, utils.TokenTypeAccess)
	if err != nil {
		claims, err = utils.ParseToken(h.cfg.JWTSecret, req.Token, utils.TokenTypeRefresh)
	}
	if err != nil {
		return apperr.Unauthorized("token is invalid or expired")
	}
	revoked, err := h.revoked.IsRevoked(c.UserContext(), claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return apperr.Unauthorized("token has been revoked")
	}

	return respondOK(c, fiber.Map{
		"valid":      true,
		"token_type": claims.TokenType,
		"user_id":    claims.UserID,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt.Time,
	})
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// Logout revokes the current access token and, when given, the refresh token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req logoutRequest
	_ = c.BodyParser(&req)

	if err := h.revokeCurrent(c); err != nil {
		return err
	}
	if req.Refresh != "" {
		if claims, err := utils.ParseToken(h.cfg.JWTSecret, req.Refresh, utils.TokenTypeRefresh); err == nil {
			if err := h.revoked.Revoke(c.UserContext(), claims.ID, claims.ExpiresIn(time.Now())); err != nil {
				return err
			}
		}
	}
	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}

// Deactivate disables the caller's account and revokes the current token.
func (h *AuthHandler) Deactivate(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	if err := h.store.DeactivateUser(c.UserContext(), actor.ID, time.Now()); err != nil {
		return err
	}
	if err := h.revokeCurrent(c); err != nil {
		return err
	}
	h.log.Info("account deactivated", zap.String("user_id", actor.ID.String()))
	return c.JSON(fiber.Map{"success": true, "message": "account deactivated"})
}

// DeleteAccount permanently removes the caller and everything they own.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	if _, err := h.store.DeleteUsers(c.UserContext(), []uuid.UUID{actor.ID}); err != nil {
		return err
	}
	if err := h.revokeCurrent(c); err != nil {
		return err
	}
	h.log.Info("account deleted", zap.String("user_id", actor.ID.String()))
	return c.JSON(fiber.Map{"success": true, "message": "account deleted"})
}

func (h *AuthHandler) revokeCurrent(c *fiber.Ctx) error {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return h.revoked.Revoke(c.UserContext(), claims.ID, claims.ExpiresIn(time.Now()))
}

func (h *AuthHandler) issueTokens(user *models.User) (fiber.Map, error) {
	access, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.Role), utils.TokenTypeAccess, h.cfg.TokenExpires)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.Role), utils.TokenTypeRefresh, h.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"access":  access,
		"refresh": refresh,
		"role":    user.Role,
	}, nil
}

func (h *AuthHandler) respondWithTokens(c *fiber.Ctx, user *models.User) error {
	if !user.IsActive {
		return apperr.Unauthorized("account is deactivated")
	}
	tokens, err := h.issueTokens(user)
	if err != nil {
		return err
	}
	tokens["user"] = user
	return respondOK(c, tokens)
}
