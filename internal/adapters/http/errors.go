package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tripline/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int      `json:"status"`
	Code      string   `json:"code"`    // Error code: bad_request, not_found, generation_timeout, etc.
	Message   string   `json:"message"` // Human-readable message
	Fields    []string `json:"fields,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errFromDomain maps usecase errors to HTTP responses.
func errFromDomain(c *fiber.Ctx, err error) error {
	var (
		ve *domain.ValidationError
		ie *domain.IdentityError
		te *domain.GenerationTimeoutError
		xe *domain.TransportError
	)
	switch {
	case errors.As(err, &ve):
		reqID, _ := c.Locals("requestid").(string)
		return c.Status(400).JSON(APIError{
			Status:    400,
			Code:      "validation_failed",
			Message:   ve.Error(),
			Fields:    ve.Fields,
			RequestID: reqID,
		})
	case errors.As(err, &ie):
		return newError(c, 404, "segment_not_found", ie.Error())
	case errors.Is(err, domain.ErrTimelineNotLoaded),
		errors.Is(err, domain.ErrDayOutOfRange),
		errors.Is(err, domain.ErrRowOutOfRange):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrPollSuperseded):
		return newError(c, 409, "superseded", err.Error())
	case errors.As(err, &te):
		return newError(c, 504, "generation_timeout", "generated content is not visible yet, it may still appear after a refresh")
	case errors.As(err, &xe):
		LoggerFromCtx(c.UserContext()).Warn("upstream failure", "op", xe.Op, "error", xe.Err)
		return newError(c, 502, "upstream_error", xe.Error())
	default:
		LoggerFromCtx(c.UserContext()).Error("unhandled error", "error", err)
		return errInternal(c, err.Error())
	}
}
