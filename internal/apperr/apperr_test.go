package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesCode(t *testing.T) {
	sentinel := Validation("otp_expired", "code expired")
	wrapped := fmt.Errorf("verify: %w", Validation("otp_expired", "another message"))

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, Validation("otp_invalid", "bad code")))
}

func TestStatusMapping(t *testing.T) {
	cases := map[*Error]int{
		Validation("x", "x"):  fiber.StatusBadRequest,
		Unauthorized("x"):     fiber.StatusUnauthorized,
		Forbidden("x"):        fiber.StatusForbidden,
		NotFound("x"):         fiber.StatusNotFound,
		Conflict("x", "x"):    fiber.StatusConflict,
		RateLimited(10):       fiber.StatusTooManyRequests,
		Unavailable("x", "x"): fiber.StatusServiceUnavailable,
	}
	for err, status := range cases {
		assert.Equal(t, status, err.Status(), err.Code)
	}
}

func TestRateLimitedMessage(t *testing.T) {
	assert.Contains(t, RateLimited(42).Error(), "42 seconds")
	assert.Zero(t, RateLimited(0).RetryAfter)
}

func TestInvalidChoiceListsAllowed(t *testing.T) {
	err := InvalidChoice("status", "done", []string{"active", "filled"})
	assert.Equal(t, []string{"active", "filled"}, err.Allowed)
	assert.Contains(t, err.Error(), "active, filled")
	assert.True(t, HasKind(err, KindValidation))
}
