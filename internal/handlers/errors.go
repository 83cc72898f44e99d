package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/utils"
)

// ErrorHandler renders every returned error as the JSON error envelope.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		if appErr, ok := apperr.As(err); ok {
			body := fiber.Map{
				"success": false,
				"error":   appErr.Message,
				"code":    appErr.Code,
			}
			if appErr.RetryAfter > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(appErr.RetryAfter))
				body["retry_after"] = appErr.RetryAfter
			}
			if len(appErr.Allowed) > 0 {
				body["allowed"] = appErr.Allowed
			}
			return c.Status(appErr.Status()).JSON(body)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"success": false,
				"error":   fiberErr.Message,
			})
		}

		log.Error("unhandled request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal server error",
		})
	}
}

// parseBody decodes and validates the request body into req.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperr.Validation("invalid_body", "invalid request body")
	}
	return utils.Validate(req)
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid_"+name, "invalid "+name)
	}
	return id, nil
}

func optionalID(field string, value *string) (*uuid.UUID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil, apperr.Validation("invalid_"+field, "invalid "+field)
	}
	return &id, nil
}

func respondOK(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func respondCreated(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

func respondPage(c *fiber.Ctx, data any, pg utils.Pagination, total int64) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}
