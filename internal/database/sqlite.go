package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/ticketboard/ticketboard/internal/model"
	_ "modernc.org/sqlite" // database/sql driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type sqlite struct {
	db *sql.DB
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// execer is implemented by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteOpen returns a new SQLite database connection with an up to date schema.
func SQLiteOpen(database string) (Client, error) {
	db, err := sqliteConnect(database)
	if err != nil {
		return nil, err
	}

	if err = migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqlite{
		db: db,
	}, nil
}

// SQLiteMigrate runs the pending migrations on the given SQLite database.
func SQLiteMigrate(database string) error {
	db, err := sqliteConnect(database)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrate(context.Background(), db)
}

func sqliteConnect(database string) (*sql.DB, error) {
	if database == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(database); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "could not create database directory")
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", database)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}
	// SQLite allows only one writer.
	db.SetMaxOpenConns(1)

	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "could not set goose dialect")
	}
	return errors.Wrap(goose.UpContext(ctx, db, "migrations"), "could not run migrations")
}

// Save inserts or updates the entry in database with the given model.
func (c *sqlite) Save(m model.Model) error {
	model.Stamp(m, time.Now())
	return upsert(context.Background(), c.db, m)
}

// Delete deletes the entry in database with the given model.
func (c *sqlite) Delete(m model.Model) error {
	table, err := tableOf(m)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(context.Background(), "DELETE FROM "+table+" WHERE id = ?", m.GetID())
	return errors.Wrap(err, "could not delete the model")
}

// Close the database.
func (c *sqlite) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *sqlite) IsNotFound(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// IsAlreadyExists returns true if err is a unique constraint error.
func (c *sqlite) IsAlreadyExists(err error) bool {
	return err != nil && strings.Contains(errors.Cause(err).Error(), "UNIQUE constraint failed")
}

func (c *sqlite) transaction(fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx := context.Background()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // nolint: errcheck

	if err = fn(ctx, tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "could not commit transaction")
}

//
// Records mapping
//

const (
	userColumns     = "id, created_at, updated_at, name, email, password, admin"
	sessionColumns  = "id, created_at, updated_at, user_id, user_agent, expire_at"
	boardColumns    = "id, created_at, updated_at, name, description, view_type, created_by, item_sequence"
	groupColumns    = "id, created_at, updated_at, board_id, name, position"
	columnColumns   = "id, created_at, updated_at, board_id, name, type, position, settings"
	memberColumns   = "id, created_at, updated_at, board_id, user_id"
	filterColumns   = "id, created_at, updated_at, user_id, board_id, assignee_id, filter_unassigned, item_type"
	itemColumns     = "id, created_at, updated_at, board_id, number, name, item_type, description, repro_steps, group_id, assignee_id, position, attachments, created_by, updated_by"
	activityColumns = "id, created_at, updated_at, item_id, user_id, type, field, old_value, new_value"
	commentColumns  = "id, created_at, updated_at, item_id, user_id, body"
)

func tableOf(m model.Model) (string, error) {
	switch m.(type) {
	case *model.User:
		return "users", nil
	case *model.Session:
		return "sessions", nil
	case *model.Board:
		return "boards", nil
	case *model.Group:
		return "board_groups", nil
	case *model.Column:
		return "board_columns", nil
	case *model.Membership:
		return "memberships", nil
	case *model.BoardFilter:
		return "board_filters", nil
	case *model.Item:
		return "items", nil
	case *model.ItemActivity:
		return "item_activities", nil
	case *model.ItemComment:
		return "item_comments", nil
	default:
		return "", errors.Errorf("unsupported model %T", m)
	}
}

// values returns the column list and the values of the given model.
func values(m model.Model) (string, []any, error) {
	base := []any{m.GetID(), unixNano(m.GetCreatedAt()), unixNano(m.GetUpdatedAt())}

	switch r := m.(type) {
	case *model.User:
		return userColumns, append(base, r.Name, r.Email, r.Password, r.Admin), nil
	case *model.Session:
		return sessionColumns, append(base, r.UserID, r.UserAgent, r.ExpireAt.UnixNano()), nil
	case *model.Board:
		return boardColumns, append(base, r.Name, r.Description, r.ViewType, r.CreatedBy, r.ItemSequence), nil
	case *model.Group:
		return groupColumns, append(base, r.BoardID, r.Name, r.Position), nil
	case *model.Column:
		settings, err := json.Marshal(r.Settings)
		if err != nil {
			return "", nil, errors.Wrap(err, "could not encode column settings")
		}
		return columnColumns, append(base, r.BoardID, r.Name, r.Type, r.Position, string(settings)), nil
	case *model.Membership:
		return memberColumns, append(base, r.BoardID, r.UserID), nil
	case *model.BoardFilter:
		return filterColumns, append(base, r.UserID, r.BoardID, r.AssigneeID, r.FilterUnassigned, r.ItemType), nil
	case *model.Item:
		attachments := r.Attachments
		if attachments == nil {
			attachments = []string{}
		}
		payload, err := json.Marshal(attachments)
		if err != nil {
			return "", nil, errors.Wrap(err, "could not encode attachments")
		}
		return itemColumns, append(base, r.BoardID, r.Number, r.Name, r.ItemType, r.Description, r.ReproSteps,
			r.GroupID, r.AssigneeID, r.Position, string(payload), r.CreatedBy, r.UpdatedBy), nil
	case *model.ItemActivity:
		return activityColumns, append(base, r.ItemID, r.UserID, r.Type, r.Field, r.OldValue, r.NewValue), nil
	case *model.ItemComment:
		return commentColumns, append(base, r.ItemID, r.UserID, r.Body), nil
	default:
		return "", nil, errors.Errorf("unsupported model %T", m)
	}
}

func upsert(ctx context.Context, db execer, m model.Model) error {
	table, err := tableOf(m)
	if err != nil {
		return err
	}
	columns, args, err := values(m)
	if err != nil {
		return err
	}

	names := strings.Split(columns, ", ")
	updates := make([]string, 0, len(names))
	for _, name := range names[1:] {
		if name == "created_at" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", name, name))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		table, columns, placeholders(len(names)), strings.Join(updates, ", "))

	_, err = db.ExecContext(ctx, query, args...)
	return errors.Wrapf(err, "could not save %T", m)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func inArgs(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return placeholders(len(ids)), args
}

func unixNano(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) *time.Time {
	t := time.Unix(0, n).UTC()
	return &t
}

func scanInto(row rowScanner, b *model.Base, dest ...any) error {
	var created, updated int64
	if err := row.Scan(append([]any{&b.ID, &created, &updated}, dest...)...); err != nil {
		return err
	}
	b.CreatedAt = fromUnixNano(created)
	b.UpdatedAt = fromUnixNano(updated)
	return nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var m model.User
	err := scanInto(row, &m.Base, &m.Name, &m.Email, &m.Password, &m.Admin)
	return &m, err
}

func scanSession(row rowScanner) (*model.Session, error) {
	var m model.Session
	var expire int64
	if err := scanInto(row, &m.Base, &m.UserID, &m.UserAgent, &expire); err != nil {
		return nil, err
	}
	m.ExpireAt = time.Unix(0, expire).UTC()
	return &m, nil
}

func scanBoard(row rowScanner) (*model.Board, error) {
	var m model.Board
	err := scanInto(row, &m.Base, &m.Name, &m.Description, &m.ViewType, &m.CreatedBy, &m.ItemSequence)
	return &m, err
}

func scanGroup(row rowScanner) (*model.Group, error) {
	var m model.Group
	err := scanInto(row, &m.Base, &m.BoardID, &m.Name, &m.Position)
	return &m, err
}

func scanColumn(row rowScanner) (*model.Column, error) {
	var m model.Column
	var settings string
	if err := scanInto(row, &m.Base, &m.BoardID, &m.Name, &m.Type, &m.Position, &settings); err != nil {
		return nil, err
	}
	return &m, errors.Wrap(json.Unmarshal([]byte(settings), &m.Settings), "could not decode column settings")
}

func scanFilter(row rowScanner) (*model.BoardFilter, error) {
	var m model.BoardFilter
	err := scanInto(row, &m.Base, &m.UserID, &m.BoardID, &m.AssigneeID, &m.FilterUnassigned, &m.ItemType)
	return &m, err
}

func scanItem(row rowScanner) (*model.Item, error) {
	var m model.Item
	var attachments string
	err := scanInto(row, &m.Base, &m.BoardID, &m.Number, &m.Name, &m.ItemType, &m.Description, &m.ReproSteps,
		&m.GroupID, &m.AssigneeID, &m.Position, &attachments, &m.CreatedBy, &m.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &m, errors.Wrap(json.Unmarshal([]byte(attachments), &m.Attachments), "could not decode attachments")
}

func scanActivity(row rowScanner) (*model.ItemActivity, error) {
	var m model.ItemActivity
	err := scanInto(row, &m.Base, &m.ItemID, &m.UserID, &m.Type, &m.Field, &m.OldValue, &m.NewValue)
	return &m, err
}

func scanComment(row rowScanner) (*model.ItemComment, error) {
	var m model.ItemComment
	err := scanInto(row, &m.Base, &m.ItemID, &m.UserID, &m.Body)
	return &m, err
}

func queryOne[T any](ctx context.Context, db execer, scan func(rowScanner) (*T, error), query string, args ...any) (*T, error) {
	record, err := scan(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return record, nil
}

func queryAll[T any](ctx context.Context, db execer, scan func(rowScanner) (*T, error), query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*T, 0)
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

//
// Users
//

// FindUser returns the user for the given id (UUID).
func (c *sqlite) FindUser(id string) (*model.User, error) {
	user, err := queryOne(context.Background(), c.db, scanUser, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return user, errors.Wrap(err, "find user by id")
}

// FindUserByMail returns the user for the given email.
func (c *sqlite) FindUserByMail(email string) (*model.User, error) {
	user, err := queryOne(context.Background(), c.db, scanUser, "SELECT "+userColumns+" FROM users WHERE email = ?", model.NormalizeEmail(email))
	return user, errors.Wrap(err, "find user by mail")
}

// FindUsers returns all users ordered by name.
func (c *sqlite) FindUsers() ([]*model.User, error) {
	users, err := queryAll(context.Background(), c.db, scanUser, "SELECT "+userColumns+" FROM users")
	if err != nil {
		return nil, errors.Wrap(err, "could not find users")
	}
	sortUsers(users)
	return users, nil
}

// FindUsersByIDs returns the users matching the given ids ordered by name.
func (c *sqlite) FindUsersByIDs(ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return make([]*model.User, 0), nil
	}

	marks, args := inArgs(ids)
	users, err := queryAll(context.Background(), c.db, scanUser, "SELECT "+userColumns+" FROM users WHERE id IN ("+marks+")", args...)
	if err != nil {
		return nil, errors.Wrap(err, "could not find users by ids")
	}
	sortUsers(users)
	return users, nil
}

// FindMentionableUsers returns the members of the given board and all admins.
func (c *sqlite) FindMentionableUsers(boardID string) ([]*model.User, error) {
	users, err := queryAll(context.Background(), c.db, scanUser,
		"SELECT "+userColumns+" FROM users WHERE admin = 1 OR id IN (SELECT user_id FROM memberships WHERE board_id = ?)", boardID)
	if err != nil {
		return nil, errors.Wrap(err, "could not find mentionable users")
	}
	sortUsers(users)
	return users, nil
}

// RemoveUser deletes the user, its sessions, memberships and filters and unassigns its items.
func (c *sqlite) RemoveUser(id string) error {
	return c.transaction(func(ctx context.Context, tx *sql.Tx) error {
		if _, err := queryOne(ctx, tx, scanUser, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
			return errors.Wrap(err, "find user by id")
		}

		if _, err := tx.ExecContext(ctx, "UPDATE items SET assignee_id = '' WHERE assignee_id = ?", id); err != nil {
			return errors.Wrap(err, "could not unassign items")
		}

		// Sessions, memberships and filters are removed by cascade.
		_, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
		return errors.Wrap(err, "could not delete user")
	})
}

//
// Sessions
//

// FindSession returns the session for the given id (UUID).
func (c *sqlite) FindSession(id string) (*model.Session, error) {
	session, err := queryOne(context.Background(), c.db, scanSession, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	return session, errors.Wrap(err, "find session by id")
}

// FindSessionByUserID returns the session for the given id and user id.
func (c *sqlite) FindSessionByUserID(id, userID string) (*model.Session, error) {
	session, err := queryOne(context.Background(), c.db, scanSession,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ? AND user_id = ?", id, userID)
	return session, errors.Wrap(err, "find session by id and user id")
}

// FindSessionsByUserID returns all the sessions for the given user id.
func (c *sqlite) FindSessionsByUserID(userID string) ([]*model.Session, error) {
	sessions, err := queryAll(context.Background(), c.db, scanSession,
		"SELECT "+sessionColumns+" FROM sessions WHERE user_id = ? ORDER BY created_at", userID)
	return sessions, errors.Wrap(err, "could not find sessions by user id")
}

// FindActiveSessionsByUserID returns all active sessions for the given user id.
func (c *sqlite) FindActiveSessionsByUserID(userID string) ([]*model.Session, error) {
	sessions, err := queryAll(context.Background(), c.db, scanSession,
		"SELECT "+sessionColumns+" FROM sessions WHERE user_id = ? AND expire_at > ? ORDER BY created_at", userID, time.Now().UnixNano())
	return sessions, errors.Wrap(err, "could not find sessions by user id")
}

//
// Boards
//

// FindBoard returns the board for the given id (UUID).
func (c *sqlite) FindBoard(id string) (*model.Board, error) {
	board, err := queryOne(context.Background(), c.db, scanBoard, "SELECT "+boardColumns+" FROM boards WHERE id = ?", id)
	return board, errors.Wrap(err, "find board by id")
}

// FindBoards returns all boards ordered by name.
func (c *sqlite) FindBoards() ([]*model.Board, error) {
	boards, err := queryAll(context.Background(), c.db, scanBoard, "SELECT "+boardColumns+" FROM boards")
	if err != nil {
		return nil, errors.Wrap(err, "could not find boards")
	}
	sortBoards(boards)
	return boards, nil
}

// FindBoardsByUserID returns the boards the given user is member of, ordered by name.
func (c *sqlite) FindBoardsByUserID(userID string) ([]*model.Board, error) {
	boards, err := queryAll(context.Background(), c.db, scanBoard,
		"SELECT "+boardColumns+" FROM boards WHERE id IN (SELECT board_id FROM memberships WHERE user_id = ?)", userID)
	if err != nil {
		return nil, errors.Wrap(err, "could not find boards by user id")
	}
	sortBoards(boards)
	return boards, nil
}

// CreateBoard inserts the board with its groups and columns in one unit of work.
func (c *sqlite) CreateBoard(board *model.Board, groups []*model.Group, columns []*model.Column) error {
	return c.transaction(func(ctx context.Context, tx *sql.Tx) error {
		now := time.Now()
		model.Stamp(board, now)
		if err := upsert(ctx, tx, board); err != nil {
			return err
		}

		for _, g := range groups {
			g.BoardID = board.ID
			model.Stamp(g, now)
			if err := upsert(ctx, tx, g); err != nil {
				return err
			}
		}

		for _, col := range columns {
			col.BoardID = board.ID
			model.Stamp(col, now)
			if err := upsert(ctx, tx, col); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteBoard deletes the board and everything referencing it.
func (c *sqlite) DeleteBoard(id string) error {
	return c.transaction(func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM boards WHERE id = ?", id)
		if err != nil {
			return errors.Wrap(err, "could not delete board")
		}
		return affected(result, "find board by id")
	})
}

// FindGroup returns the group for the given id (UUID).
func (c *sqlite) FindGroup(id string) (*model.Group, error) {
	group, err := queryOne(context.Background(), c.db, scanGroup, "SELECT "+groupColumns+" FROM board_groups WHERE id = ?", id)
	return group, errors.Wrap(err, "find group by id")
}

// FindGroupsByBoardID returns the groups of the given board ordered by position.
func (c *sqlite) FindGroupsByBoardID(boardID string) ([]*model.Group, error) {
	groups, err := queryAll(context.Background(), c.db, scanGroup,
		"SELECT "+groupColumns+" FROM board_groups WHERE board_id = ? ORDER BY position, created_at", boardID)
	return groups, errors.Wrap(err, "could not find groups")
}

// FindColumnsByBoardID returns the columns of the given board ordered by position.
func (c *sqlite) FindColumnsByBoardID(boardID string) ([]*model.Column, error) {
	columns, err := queryAll(context.Background(), c.db, scanColumn,
		"SELECT "+columnColumns+" FROM board_columns WHERE board_id = ? ORDER BY position, created_at", boardID)
	return columns, errors.Wrap(err, "could not find columns")
}

// FindMembers returns the user ids of the given board's members.
func (c *sqlite) FindMembers(boardID string) ([]string, error) {
	rows, err := c.db.QueryContext(context.Background(), "SELECT user_id FROM memberships WHERE board_id = ?", boardID)
	if err != nil {
		return nil, errors.Wrap(err, "could not find members")
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "could not scan member")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "could not find members")
}

// IsMember returns true if the user is member of the given board.
func (c *sqlite) IsMember(boardID, userID string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM memberships WHERE board_id = ? AND user_id = ?", boardID, userID).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "could not find membership")
	}
	return n > 0, nil
}

// SetMembers replaces the members of the given board.
func (c *sqlite) SetMembers(boardID string, userIDs []string) error {
	return c.transaction(func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM memberships WHERE board_id = ?", boardID); err != nil {
			return errors.Wrap(err, "could not delete memberships")
		}

		now := time.Now()
		for _, id := range unique(userIDs) {
			m := &model.Membership{BoardID: boardID, UserID: id}
			model.Stamp(m, now)
			if err := upsert(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountItemsByBoardID returns the number of items of the given board.
func (c *sqlite) CountItemsByBoardID(boardID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM items WHERE board_id = ?", boardID).Scan(&n)
	return n, errors.Wrap(err, "could not count items")
}

// FindBoardFilter returns the saved filter of the user for the given board.
func (c *sqlite) FindBoardFilter(userID, boardID string) (*model.BoardFilter, error) {
	filter, err := queryOne(context.Background(), c.db, scanFilter,
		"SELECT "+filterColumns+" FROM board_filters WHERE user_id = ? AND board_id = ?", userID, boardID)
	return filter, errors.Wrap(err, "find board filter")
}

//
// Items
//

// FindItem returns the item for the given id (UUID).
func (c *sqlite) FindItem(id string) (*model.Item, error) {
	item, err := queryOne(context.Background(), c.db, scanItem, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	return item, errors.Wrap(err, "could not find item")
}

// FindItemByNumber returns the item of the board for the given number.
func (c *sqlite) FindItemByNumber(boardID string, number int) (*model.Item, error) {
	item, err := queryOne(context.Background(), c.db, scanItem,
		"SELECT "+itemColumns+" FROM items WHERE board_id = ? AND number = ?", boardID, number)
	return item, errors.Wrap(err, "could not find item by number")
}

// FindItemsByBoardID returns the items of the given board ordered by group then position.
func (c *sqlite) FindItemsByBoardID(boardID string) ([]*model.Item, error) {
	items, err := queryAll(context.Background(), c.db, scanItem,
		"SELECT "+itemColumns+" FROM items WHERE board_id = ? ORDER BY group_id, position, number", boardID)
	return items, errors.Wrap(err, "could not find items")
}

// CreateItem draws the next board number and inserts the item with its activity.
func (c *sqlite) CreateItem(item *model.Item, activity *model.ItemActivity) error {
	return c.transaction(func(ctx context.Context, tx *sql.Tx) error {
		var number int
		err := tx.QueryRowContext(ctx,
			"UPDATE boards SET item_sequence = item_sequence + 1 WHERE id = ? RETURNING item_sequence", item.BoardID).Scan(&number)
		if err != nil {
			return errors.Wrap(err, "find board by id")
		}

		var position int
		err = tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position), -1) + 1 FROM items WHERE board_id = ? AND group_id = ?", item.BoardID, item.GroupID).Scan(&position)
		if err != nil {
			return errors.Wrap(err, "could not compute item position")
		}

		item.Number = number
		item.Position = position

		now := time.Now()
		model.Stamp(item, now)
		if err = upsert(ctx, tx, item); err != nil {
			return err
		}

		activity.ItemID = item.ID
		model.Stamp(activity, now)
		return upsert(ctx, tx, activity)
	})
}

// UpdateItem saves the item and inserts the given activities in one unit of work.
func (c *sqlite) UpdateItem(item *model.Item, activities []*model.ItemActivity) error {
	return c.transaction(func(ctx context.Context, tx *sql.Tx) error {
		now := time.Now()
		model.Stamp(item, now)
		if err := upsert(ctx, tx, item); err != nil {
			return err
		}

		for i, a := range activities {
			a.ItemID = item.ID
			model.Stamp(a, sequenced(now, i))
			if err := upsert(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// MoveItem places the item at the given index of its group, shifts the other items of the group
// and inserts the given activities in one unit of work.
func (c *sqlite) MoveItem(item *model.Item, index int, activities []*model.ItemActivity) error {
	return c.transaction(func(ctx context.Context, tx *sql.Tx) error {
		group, err := queryAll(ctx, tx, scanItem,
			"SELECT "+itemColumns+" FROM items WHERE board_id = ? AND group_id = ?", item.BoardID, item.GroupID)
		if err != nil {
			return errors.Wrap(err, "could not find group items")
		}

		// Shifted items keep their updated_at.
		for _, it := range reposition(group, item, index) {
			if _, err = tx.ExecContext(ctx, "UPDATE items SET position = ? WHERE id = ?", it.Position, it.ID); err != nil {
				return errors.Wrap(err, "could not shift item")
			}
		}

		now := time.Now()
		model.Stamp(item, now)
		if err = upsert(ctx, tx, item); err != nil {
			return err
		}
		for i, a := range activities {
			a.ItemID = item.ID
			model.Stamp(a, sequenced(now, i))
			if err = upsert(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteItem deletes the item with its activities and comments.
func (c *sqlite) DeleteItem(id string) error {
	return c.transaction(func(ctx context.Context, tx *sql.Tx) error {
		// Activities and comments are removed by cascade.
		result, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
		if err != nil {
			return errors.Wrap(err, "could not delete item")
		}
		return affected(result, "could not find item")
	})
}

// FindActivitiesByItemID returns the item's activities, newest first.
func (c *sqlite) FindActivitiesByItemID(itemID string) ([]*model.ItemActivity, error) {
	activities, err := queryAll(context.Background(), c.db, scanActivity,
		"SELECT "+activityColumns+" FROM item_activities WHERE item_id = ?", itemID)
	if err != nil {
		return nil, errors.Wrap(err, "could not find activities")
	}
	sortActivities(activities)
	return activities, nil
}

//
// Comments
//

// FindComment returns the comment for the given id (UUID).
func (c *sqlite) FindComment(id string) (*model.ItemComment, error) {
	comment, err := queryOne(context.Background(), c.db, scanComment, "SELECT "+commentColumns+" FROM item_comments WHERE id = ?", id)
	return comment, errors.Wrap(err, "could not find comment")
}

// FindCommentsByItemID returns the item's comments, oldest first.
func (c *sqlite) FindCommentsByItemID(itemID string) ([]*model.ItemComment, error) {
	comments, err := queryAll(context.Background(), c.db, scanComment,
		"SELECT "+commentColumns+" FROM item_comments WHERE item_id = ? ORDER BY created_at, id", itemID)
	return comments, errors.Wrap(err, "could not find comments")
}

func affected(result sql.Result, message string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, message)
	}
	if n == 0 {
		return errors.Wrap(sql.ErrNoRows, message)
	}
	return nil
}
