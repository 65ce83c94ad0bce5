package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walletsvc/wallet_service/internal/batch"
	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/middleware"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error     string       `json:"error"`
	Fields    []fieldError `json:"fields,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// ErrorHandler renders errors returned by handlers. Domain sentinels win over
// a PipelineError wrapping them, so an unknown batch sender is a 404.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	body.RequestID = middleware.RequestIDFrom(c)
	return c.Status(status).JSON(body)
}

func classify(err error) (int, errorResponse) {
	var (
		ferr *fiber.Error
		verr *domain.ValidationError
		perr *batch.PipelineError
	)
	switch {
	case errors.As(err, &ferr):
		return ferr.Code, errorResponse{Error: ferr.Message}
	case errors.As(err, &verr):
		body := errorResponse{Error: "validation failed"}
		for _, fe := range verr.Errors {
			body.Fields = append(body.Fields, fieldError{Field: fe.Field, Message: fe.Message})
		}
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: "unauthorized"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "forbidden"}
	case errors.As(err, &perr):
		return http.StatusInternalServerError, errorResponse{Error: perr.Error()}
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, errorResponse{Error: "upstream failure"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}
