package errx

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// HTTPErrorResponse is the JSON body written for failed requests
type HTTPErrorResponse struct {
	Error           string                 `json:"error"`
	Code            string                 `json:"code"`
	Type            string                 `json:"type"`
	Status          int                    `json:"status"`
	Details         map[string]interface{} `json:"details,omitempty"`
	RequestID       string                 `json:"request_id,omitempty"`
	UnderlyingError string                 `json:"underlying_error,omitempty"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	return HTTPErrorResponse{
		Error:   e.Message,
		Code:    e.Code,
		Type:    string(e.Type),
		Status:  e.HTTPStatus,
		Details: e.Details,
	}
}

// FiberErrorHandler renders *Error and *fiber.Error values as JSON.
// When debug is set the underlying cause is included.
func FiberErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := c.Get(fiber.HeaderXRequestID)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(HTTPErrorResponse{
				Error:     fe.Message,
				Code:      "FIBER_ERROR",
				Type:      string(TypeValidation),
				Status:    fe.Code,
				RequestID: requestID,
			})
		}

		var e *Error
		if errors.As(err, &e) {
			resp := e.ToHTTPResponse()
			resp.RequestID = requestID
			if debug && e.Err != nil {
				resp.UnderlyingError = e.Err.Error()
			}
			return c.Status(e.HTTPStatus).JSON(resp)
		}

		return c.Status(fiber.StatusInternalServerError).JSON(HTTPErrorResponse{
			Error:     "An unexpected error occurred",
			Code:      "INTERNAL_ERROR",
			Type:      string(TypeInternal),
			Status:    fiber.StatusInternalServerError,
			RequestID: requestID,
		})
	}
}
