package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/domestyx/internal/access"
	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/cache"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/utils"
)

const (
	actorContextKey  = "currentActor"
	claimsContextKey = "currentClaims"
)

// UserFinder loads the account behind a token.
type UserFinder interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware validates access tokens, rejects revoked tokens and inactive
// accounts, and stores the caller in the request context.
func AuthMiddleware(secret string, users UserFinder, revoked cache.RevocationList, log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		if err := authenticate(c, secret, users, revoked, log); err != nil {
			return err
		}
		return c.Next()
	}
}

// OptionalAuthMiddleware authenticates the caller when an Authorization header
// is present and lets anonymous requests through.
func OptionalAuthMiddleware(secret string, users UserFinder, revoked cache.RevocationList, log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		if err := authenticate(c, secret, users, revoked, log); err != nil {
			return err
		}
		return c.Next()
	}
}

func authenticate(c *fiber.Ctx, secret string, users UserFinder, revoked cache.RevocationList, log *zap.Logger) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperr.Unauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperr.Unauthorized("invalid authorization header")
	}

	claims, err := utils.ParseToken(secret, strings.TrimSpace(parts[1]), utils.TokenTypeAccess)
	if err != nil {
		return apperr.Unauthorized("invalid token")
	}

	isRevoked, err := revoked.IsRevoked(c.UserContext(), claims.ID)
	if err != nil {
		log.Error("revocation lookup failed", zap.Error(err))
		return apperr.Unavailable("auth_unavailable", "authentication is temporarily unavailable")
	}
	if isRevoked {
		return apperr.Unauthorized("token has been revoked")
	}

	user, err := users.FindUser(c.UserContext(), claims.ParsedUserID())
	if err != nil {
		if apperr.HasKind(err, apperr.KindNotFound) {
			return apperr.Unauthorized("account not found")
		}
		return err
	}
	if !user.IsActive {
		return apperr.Unauthorized("account is deactivated")
	}

	c.Locals(actorContextKey, access.Actor{ID: user.ID, Role: user.Role})
	c.Locals(claimsContextKey, claims)
	return nil
}

// RequireRoles rejects callers that hold none of roles.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := access.Allow(CurrentActor(c), roles...); err != nil {
			return err
		}
		return c.Next()
	}
}

// CurrentActor returns the authenticated caller, or the zero Actor.
func CurrentActor(c *fiber.Ctx) access.Actor {
	if actor, ok := c.Locals(actorContextKey).(access.Actor); ok {
		return actor
	}
	return access.Actor{}
}

// CurrentClaims returns the parsed access token of the request.
func CurrentClaims(c *fiber.Ctx) (*utils.Claims, bool) {
	claims, ok := c.Locals(claimsContextKey).(*utils.Claims)
	return claims, ok
}
