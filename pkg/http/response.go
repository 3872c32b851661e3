package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorBody is the outward error payload. Every failure carries the machine
// readable kind plus the request path it happened on; a raw error string is
// never the entire body.
type ErrorBody struct {
	Error  *AppError `json:"error"`
	Status string    `json:"status"`
	Path   string    `json:"path"`
	Method string    `json:"method"`
}

// SuccessResponse writes the payload as-is with 200 OK.
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// BadRequestResponse writes a 400 with validation details.
func BadRequestResponse(c echo.Context, details interface{}) error {
	return c.JSON(http.StatusBadRequest, APIResponse400Err{
		Status:  http.StatusBadRequest,
		Message: http.StatusText(http.StatusBadRequest),
		Data:    toValidationErrors(details),
	})
}

// AppErrorResponse maps an error to the structured error body. Unknown error
// types become 500 without leaking the internal message.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("internal server error")
	}
	return c.JSON(appErr.Status, ErrorBody{
		Error:  appErr,
		Status: "error",
		Path:   c.Request().URL.Path,
		Method: c.Request().Method,
	})
}

func toValidationErrors(details interface{}) []ValidationError {
	switch v := details.(type) {
	case []ValidationError:
		return v
	case ValidationError:
		return []ValidationError{v}
	default:
		return []ValidationError{{Code: "ERR_UNKNOWN"}}
	}
}
