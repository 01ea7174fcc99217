package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/ticketboard/ticketboard/internal/attachment"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/notification"
	"github.com/ticketboard/ticketboard/internal/server/service"
)

type sent struct {
	To      string
	Subject string
	HTML    string
}

type mailer struct {
	sync.Mutex
	sent []sent
	fail map[string]bool
}

func (m *mailer) SendMail(_ context.Context, to, subject, html string) error {
	m.Lock()
	defer m.Unlock()

	if m.fail[to] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, sent{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *mailer) Sent() []sent {
	m.Lock()
	defer m.Unlock()
	return append([]sent{}, m.sent...)
}

type env struct {
	db       database.Client
	fs       afero.Fs
	mailer   *mailer
	notifier *notification.Dispatcher
	logs     *test.Hook

	items    *service.ItemService
	boards   *service.BoardService
	comments *service.CommentService

	admin *model.User
	alice *model.User
	bob   *model.User
	carol *model.User
	board *model.Board
}

func setup(t *testing.T) *env {
	path := filepath.Join(t.TempDir(), "ticketboard.db")
	require.NoError(t, database.StormInit(path, ""))
	db, err := database.StormOpen(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	e := &env{
		db:     db,
		fs:     afero.NewMemMapFs(),
		mailer: &mailer{fail: map[string]bool{}},
		logs:   hook,
	}
	e.notifier = notification.New(notification.Config{
		Mailer:  e.mailer,
		Users:   db,
		BaseURL: "https://tickets.example.com",
		Logger:  logger,
	})
	t.Cleanup(e.notifier.Wait)

	store := attachment.New(e.fs)
	e.items = service.NewItem(db, e.notifier, store, logger)
	e.boards = service.NewBoard(db, store, logger)
	e.comments = service.NewComment(db, e.notifier)

	e.admin = &model.User{Name: "Admin User", Email: "admin@example.com", Admin: true}
	e.alice = &model.User{Name: "Alice Liddell", Email: "alice@example.com"}
	e.bob = &model.User{Name: "Bob Martin", Email: "bob@example.com"}
	e.carol = &model.User{Name: "Carol Danvers", Email: "carol@example.com"}
	for _, u := range []*model.User{e.admin, e.alice, e.bob, e.carol} {
		require.NoError(t, db.Save(u))
	}

	e.board, err = e.boards.Create(e.admin, service.CreateBoardParams{Name: "Sprint"})
	require.NoError(t, err)
	require.NoError(t, e.boards.SetMembers(e.admin, e.board, []string{e.alice.ID, e.bob.ID}))

	return e
}

func (e *env) groups(t *testing.T) []*model.Group {
	groups, err := e.db.FindGroupsByBoardID(e.board.ID)
	require.NoError(t, err)
	return groups
}

func (e *env) activities(t *testing.T, item *model.Item) []*model.ItemActivity {
	activities, err := e.db.FindActivitiesByItemID(item.ID)
	require.NoError(t, err)
	return activities
}

func (e *env) create(t *testing.T, actor *model.User, name string) *model.Item {
	item, err := e.items.Create(actor, e.board, service.CreateItemParams{Name: name})
	require.NoError(t, err)
	return item
}
