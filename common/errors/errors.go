package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same class (HTTP code).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error classes, usable as errors.Is targets.
var (
	ErrBadRequest         = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden          = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound           = New(http.StatusNotFound, "Not found", nil)
	ErrConflict           = New(http.StatusConflict, "Conflict", nil)
	ErrInternalServer     = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrBadGateway         = New(http.StatusBadGateway, "Payment gateway error", nil)
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "Service unavailable", nil)
)

// NotFound reports an absent booking, payment or class.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

// Forbidden reports a caller acting on a resource it does not own.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message, nil)
}

// Conflict reports a duplicate completed payment or an illegal state transition.
func Conflict(message string) *Error {
	return New(http.StatusConflict, message, nil)
}

// Gateway wraps a failed payment processor call; the remote text is kept in the message.
func Gateway(err error) *Error {
	msg := "Payment gateway error"
	if err != nil {
		msg = err.Error()
	}
	return New(http.StatusBadGateway, msg, err)
}

// Validation reports malformed input.
func Validation(message string, err error) *Error {
	return New(http.StatusBadRequest, message, err)
}

// Internal reports an unexpected failure. The cause is logged, never shown.
func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, message, err)
}

// From converts any error into an *Error, defaulting to a 500 that hides the cause.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(ErrInternalServer.Message, err)
}

// Respond writes err as {"error": message} on a gin context.
func Respond(c *gin.Context, err error) {
	appErr := From(err)
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
		}
	}
}
