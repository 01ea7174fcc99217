package msgraph

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
	"golang.org/x/oauth2"
)

// An Error is an error returned by Microsoft Graph or the identity platform.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("msgraph: %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("msgraph: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound returns true if err is a Graph not found error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// parseError decodes both Graph errors ({"error":{"code","message"}})
// and identity platform errors ({"error","error_description"}).
func parseError(status int, payload []byte) error {
	e := &Error{
		StatusCode: status,
		Code:       http.StatusText(status),
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(payload)
	if err != nil {
		if len(payload) > 0 {
			e.Message = string(payload)
		}
		return e
	}

	field := v.Get("error")
	switch {
	case field == nil:
	case field.Type() == fastjson.TypeObject:
		e.Code = string(field.GetStringBytes("code"))
		e.Message = string(field.GetStringBytes("message"))
	case field.Type() == fastjson.TypeString:
		e.Code = string(field.GetStringBytes())
		e.Message = string(v.GetStringBytes("error_description"))
	}
	return e
}

func wrapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return errors.Wrap(parseError(re.Response.StatusCode, re.Body), "could not get access token")
	}
	return errors.Wrap(err, "could not reach Microsoft Graph")
}
