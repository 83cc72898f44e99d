// Package access centralizes role and ownership checks.
package access

import (
	"strings"

	"github.com/google/uuid"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/models"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// Allow returns nil when the actor holds one of roles, PermissionDenied otherwise.
// An empty role set allows any authenticated actor.
func Allow(actor Actor, roles ...models.Role) error {
	if actor.ID == uuid.Nil {
		return apperr.Unauthorized("authentication required")
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperr.Forbidden("this action requires role: " + strings.Join(names, " or "))
}

// AllowOwner returns nil when the actor holds one of roles and owns the resource.
func AllowOwner(actor Actor, ownerID uuid.UUID, roles ...models.Role) error {
	if err := Allow(actor, roles...); err != nil {
		return err
	}
	if actor.ID != ownerID {
		return apperr.Forbidden("you do not own this resource")
	}
	return nil
}
