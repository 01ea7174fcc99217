package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/ticketboard/ticketboard/internal/attachment"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/notification"
	"github.com/ticketboard/ticketboard/internal/server/middlewares"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/internal/server/session"
	"github.com/ticketboard/ticketboard/internal/sso"
)

// AttachmentBodyLimit caps upload requests, leaving room for the multipart envelope around
// the largest accepted image.
const AttachmentBodyLimit = "11M"

type (
	// A PhotoFinder returns the profile photo of a directory user, nil when the user has none.
	PhotoFinder interface {
		Photo(ctx context.Context, id string) (content []byte, contentType string, err error)
	}

	// An IOC is an Iversion Of Control pattern used to init the server package.
	IOC struct {
		Version  string
		Database database.Client
		// Session params
		SessionSecret []byte
		SessionTTL    time.Duration
		// Notifier sends mention and assignment emails, nil disables them.
		Notifier *notification.Dispatcher
		// Store holds item attachments, nil disables uploads.
		Store *attachment.Store
		// SSO is the Microsoft sign in, nil when not configured.
		SSO sso.Provider
		// Photos resolves profile photos, nil when not configured.
		Photos PhotoFinder
		Logger logrus.FieldLogger
	}
)

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl IOC) *echo.Echo {
	if ctrl.Logger == nil {
		ctrl.Logger = logrus.StandardLogger()
	}

	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler(ctrl.Logger)

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	////////////
	// Router //
	////////////

	sessions := session.NewManager(ctrl.Database, ctrl.SessionSecret, ctrl.SessionTTL)

	router := engine.Group("")
	restricted := router.Group("")
	restricted.Use(middlewares.Session(sessions))
	admin := restricted.Group("")
	admin.Use(middlewares.Admin())
	boards := restricted.Group("/boards/:board")
	boards.Use(middlewares.BoardAccess(ctrl.Database))
	api := restricted.Group("/api")

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	//
	// auth handlers
	//
	auth := &auth{
		db:       ctrl.Database,
		users:    service.NewUser(ctrl.Database, sessions),
		provider: ctrl.SSO,
		logger:   ctrl.Logger,
	}
	router.POST("/auth/sign_in", auth.Login)
	router.GET("/auth/microsoft", auth.Microsoft)
	router.GET("/auth/microsoft/callback", auth.MicrosoftCallback)
	restricted.POST("/auth/sign_out", auth.SignOut)

	//
	// session handlers
	//
	session := &sess{
		db: ctrl.Database,
	}
	restricted.GET("/sessions", session.List)
	restricted.DELETE("/sessions/:id", session.Delete)
	restricted.DELETE("/sessions", session.DeleteAll)

	//
	// board handlers
	//
	board := &board{
		boards:   service.NewBoard(ctrl.Database, ctrl.Store, ctrl.Logger),
		comments: service.NewComment(ctrl.Database, ctrl.Notifier),
	}
	restricted.GET("/boards", board.List)
	admin.POST("/boards", board.Create)
	boards.GET("", board.Show)
	boards.DELETE("", board.Delete, middlewares.Admin())
	boards.GET("/items", board.Table)
	boards.POST("/filters", board.SaveFilter)
	boards.GET("/export-csv", board.Export)
	api.GET("/boards/:board/mentionable-users", board.MentionableUsers, middlewares.BoardAccess(ctrl.Database))

	//
	// item handlers
	//
	item := &item{
		items:    service.NewItem(ctrl.Database, ctrl.Notifier, ctrl.Store, ctrl.Logger),
		comments: board.comments,
	}
	boards.GET("/ticket/:number", item.Show)
	boards.POST("/items", item.Create)
	boards.PUT("/items/:number", item.Update)
	boards.POST("/items/:number/move", item.Move)
	boards.DELETE("/items/:number", item.Delete)
	boards.POST("/items/:number/comments", item.CreateComment)
	boards.DELETE("/items/:number/comments/:comment", item.DeleteComment)
	boards.POST("/items/:number/attachments", item.AddAttachment, middleware.BodyLimit(AttachmentBodyLimit))
	boards.GET("/items/:number/attachments/:name", item.Attachment)
	boards.DELETE("/items/:number/attachments", item.RemoveAttachment)

	//
	// user handlers
	//
	user := &user{
		db:         ctrl.Database,
		boards:     board.boards,
		photos:     ctrl.Photos,
		photoCache: expirable.NewLRU[string, photo](1024, nil, PhotoTTL),
		logger:     ctrl.Logger,
	}
	admin.GET("/user-management", user.Management)
	admin.PUT("/user-management/boards/:board", user.SetMembers, middlewares.BoardAccess(ctrl.Database))
	api.GET("/users/:user/photo", user.Photo)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}

func currentUser(c echo.Context) *model.User {
	user, ok := c.Get(middlewares.CurrentUserContextKey).(*model.User)
	if ok {
		return user
	}
	return nil
}

func currentSession(c echo.Context) *model.Session {
	session, ok := c.Get(middlewares.CurrentSessionContextKey).(*model.Session)
	if ok {
		return session
	}
	return nil
}

func currentBoard(c echo.Context) *model.Board {
	board, ok := c.Get(middlewares.CurrentBoardContextKey).(*model.Board)
	if ok {
		return board
	}
	return nil
}
