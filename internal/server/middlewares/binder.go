package middlewares

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type binder struct {
	echo.DefaultBinder
	methodsWithBody map[string]bool
}

// NewBinder returns a JSON only wrapper of the default binder.
func NewBinder() echo.Binder {
	return &binder{
		methodsWithBody: map[string]bool{
			http.MethodPost:  true,
			http.MethodPatch: true,
			http.MethodPut:   true,
		},
	}
}

// Bind implements the echo.Bind interface.
// Path and query parameters are bound first, then the JSON body when present.
func (b *binder) Bind(i any, c echo.Context) error {
	req := c.Request()
	if req.ContentLength == 0 {
		if b.methodsWithBody[req.Method] {
			return echo.NewHTTPError(http.StatusBadRequest, "Request body can't be empty")
		}
		return b.DefaultBinder.Bind(i, c)
	}

	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Request body must be JSON")
	}
	return b.DefaultBinder.Bind(i, c)
}
