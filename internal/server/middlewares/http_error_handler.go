package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

// HTTPErrorHandler returns a handler that formats rendered errors.
func HTTPErrorHandler(logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var tberr *tberror.Error
		var herr *echo.HTTPError

		switch {
		case errors.As(err, &tberr):
			status := tberror.StatusCode(tberr)
			if status >= 500 {
				logger.WithError(err).WithFields(logrus.Fields{
					"tag":  tberr.Tag(),
					"path": c.Request().URL.Path,
				}).Error("request failed")
			}
			_ = c.JSON(status, tberr)
		case errors.As(err, &herr):
			if herr.Internal != nil {
				logger.WithError(herr.Internal).Debug("echo error")
			}
			_ = c.JSON(herr.Code, echo.Map{
				"error": echo.Map{
					"message": herr.Message,
				},
			})
		default:
			internal(logger, err, c)
		}
	}
}

func internal(logger logrus.FieldLogger, err error, c echo.Context) {
	id := uuid.Must(uuid.NewV4()).String()
	logger.WithError(err).WithFields(logrus.Fields{
		"id":     id,
		"method": c.Request().Method,
		"path":   c.Request().URL.Path,
	}).Error("unexpected error")

	_ = c.JSON(http.StatusInternalServerError, echo.Map{
		"error": echo.Map{
			"message": fmt.Sprintf("Unexpected error (id: %s)", id),
		},
	})
}
