package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/server/serializer"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

type board struct {
	boards   *service.BoardService
	comments *service.CommentService
}

// List lists the boards of the current user.
func (h *board) List(c echo.Context) error {
	summaries, err := h.boards.List(currentUser(c))
	if err != nil {
		return err
	}

	boards := make([]map[string]any, len(summaries))
	for i, s := range summaries {
		boards[i] = serializer.Board(s.Board)
		boards[i]["items_count"] = s.Items
	}
	return c.JSON(http.StatusOK, boards)
}

// Create creates a board.
func (h *board) Create(c echo.Context) error {
	var params service.CreateBoardParams
	if err := c.Bind(&params); err != nil {
		return tberror.Invalid("Could not get board's params.")
	}

	board, err := h.boards.Create(currentUser(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, serializer.Board(board))
}

// Show renders the kanban view of the board.
func (h *board) Show(c echo.Context) error {
	board := currentBoard(c)

	filter, err := h.boards.Filter(currentUser(c), board, filterParams(c))
	if err != nil {
		return err
	}

	content, err := h.boards.Content(board, filter)
	if err != nil {
		return err
	}

	users, err := h.boards.MentionableUsers(board, "")
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"board":   serializer.Board(content.Board),
		"groups":  serializer.Groups(content.Groups),
		"columns": serializer.Columns(content.Columns),
		"items":   serializer.Items(content.Items),
		"users":   users,
		"filters": serializer.Filter(content.Filter),
	})
}

// Table renders the table view of the board.
func (h *board) Table(c echo.Context) error {
	board := currentBoard(c)

	var params service.TableParams
	err := echo.QueryParamsBinder(c).
		String("q", &params.Query).
		String("sort", &params.Sort).
		String("direction", &params.Direction).
		Int("page", &params.Page).
		BindError()
	if err != nil {
		return tberror.Invalid("Invalid table parameters.")
	}

	filter, err := h.boards.Filter(currentUser(c), board, filterParams(c))
	if err != nil {
		return err
	}

	page, err := h.boards.Table(board, filter, params)
	if err != nil {
		return err
	}

	groups := make(map[string]any, len(page.Groups))
	for id, g := range page.Groups {
		groups[id] = serializer.Group(g)
	}
	users := make(map[string]any, len(page.Users))
	for id, u := range page.Users {
		users[id] = serializer.User(u)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"board":     serializer.Board(board),
		"items":     serializer.Items(page.Items),
		"groups":    groups,
		"users":     users,
		"sort":      page.Sort,
		"direction": page.Direction,
		"total":     page.Total,
		"page":      page.Page,
		"last_page": page.LastPage,
		"per_page":  service.PerPage,
		"paginated": page.Paginated,
		"filters":   serializer.Filter(filter),
	})
}

// SaveFilter stores the kanban filter of the current user.
func (h *board) SaveFilter(c echo.Context) error {
	var params service.FilterParams
	if err := c.Bind(&params); err != nil {
		return tberror.Invalid("Could not get filter's params.")
	}

	filter, err := h.boards.SaveFilter(currentUser(c), currentBoard(c), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, serializer.Filter(filter))
}

// Delete deletes the board.
func (h *board) Delete(c echo.Context) error {
	if err := h.boards.Delete(currentUser(c), currentBoard(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Export streams the items of the board as CSV.
func (h *board) Export(c echo.Context) error {
	board := currentBoard(c)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/csv; charset=UTF-8")
	w.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+service.ExportFilename(board, time.Now())+`"`)
	w.WriteHeader(http.StatusOK)

	return h.boards.Export(w, board)
}

// MentionableUsers renders the mention autocomplete of the board.
func (h *board) MentionableUsers(c echo.Context) error {
	users, err := h.boards.MentionableUsers(currentBoard(c), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// filterParams returns the filter overrides found in the query.
func filterParams(c echo.Context) service.FilterParams {
	var params service.FilterParams

	query := c.QueryParams()
	if query.Has("assignee") {
		v := query.Get("assignee")
		params.Assignee = &v
	}
	if query.Has("type") {
		v := query.Get("type")
		if v != model.ItemTask && v != model.ItemBug {
			v = ""
		}
		params.Type = &v
	}
	return params
}
