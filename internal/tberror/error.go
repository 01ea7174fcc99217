package tberror

import "net/http"

// Tags used by rendered errors.
const (
	TagInvalidParameters = "invalid-parameters"
	TagInvalidAuth       = "invalid-auth"
	TagForbidden         = "forbidden"
	TagNotFound          = "not-found"
	TagNotConfigured     = "not-configured"
	TagStorage           = "storage-error"
)

type (
	// An Error represents the error format rendered by the server.
	Error struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(e error) int {
	if tberr, ok := e.(*Error); ok {
		return tberr.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new Error with the given message.
func New(message string) *Error {
	return &Error{HTTPCode: http.StatusBadRequest, FieldError: err{Message: message}}
}

// NewWithTagCode returns a new Error with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *Error {
	return &Error{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// Invalid returns a validation error.
func Invalid(message string) *Error {
	return NewWithTagCode(http.StatusUnprocessableEntity, TagInvalidParameters, message)
}

// Unauthorized returns an authentication error.
func Unauthorized(message string) *Error {
	return NewWithTagCode(http.StatusUnauthorized, TagInvalidAuth, message)
}

// Forbidden returns an authorization error.
func Forbidden(message string) *Error {
	return NewWithTagCode(http.StatusForbidden, TagForbidden, message)
}

// NotFound returns a not found error.
func NotFound(message string) *Error {
	return NewWithTagCode(http.StatusNotFound, TagNotFound, message)
}

// Tag returns the tag of the error.
func (e *Error) Tag() string {
	return e.FieldError.Tag
}

// Error implements error interface.
func (e *Error) Error() string {
	return e.FieldError.Message
}
