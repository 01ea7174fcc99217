package middlewares

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

// CurrentBoardContextKey is the key to retrieve the current_board from echo.Context.
const CurrentBoardContextKey = "current_board"

// BoardAccess loads the board named by the `board` path parameter.
// Only admins and members of the board go through.
func BoardAccess(db database.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			board, err := db.FindBoard(c.Param("board"))
			if err != nil {
				if db.IsNotFound(err) {
					return tberror.NotFound("Board not found.")
				}
				return errors.Wrap(err, "could not get board")
			}

			user := CurrentUser(c)
			if !user.Admin {
				member, err := db.IsMember(board.ID, user.ID)
				if err != nil {
					return errors.Wrap(err, "could not check board membership")
				}
				if !member {
					return tberror.Forbidden("You do not have access to this board.")
				}
			}

			c.Set(CurrentBoardContextKey, board)
			return next(c)
		}
	}
}

// Admin rejects non-admin users.
func Admin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !CurrentUser(c).Admin {
				return tberror.Forbidden("Only administrators can do this.")
			}
			return next(c)
		}
	}
}

// CurrentBoard returns the board loaded by BoardAccess.
func CurrentBoard(c echo.Context) *model.Board {
	return c.Get(CurrentBoardContextKey).(*model.Board)
}
