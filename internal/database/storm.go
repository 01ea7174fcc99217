package database

import (
	"sort"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/pkg/stormcbor"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the default format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// stormModels lists the records handled by the storm backend.
var stormModels = []any{
	&model.User{},
	&model.Session{},
	&model.Board{},
	&model.Group{},
	&model.Column{},
	&model.Membership{},
	&model.BoardFilter{},
	&model.Item{},
	&model.ItemActivity{},
	&model.ItemComment{},
}

// StormCodecByName returns the storm codec for the given name (msgpack or cbor).
func StormCodecByName(name string) (func(*storm.Options) error, error) {
	switch name {
	case "", "msgpack":
		return StormCodec, nil
	case "cbor":
		return storm.Codec(stormcbor.Codec), nil
	default:
		return nil, errors.Errorf("unknown storm codec %q", name)
	}
}

// StormInit initializes Storm database.
func StormInit(database, codec string) error {
	c, err := StormCodecByName(codec)
	if err != nil {
		return err
	}

	db, err := storm.Open(database, c)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for _, m := range stormModels {
		if err := db.Init(m); err != nil {
			return errors.Wrapf(err, "could not init %T index", m)
		}
	}
	return nil
}

// StormReIndex reindex Storm database.
func StormReIndex(database, codec string) error {
	c, err := StormCodecByName(codec)
	if err != nil {
		return err
	}

	db, err := storm.Open(database, c)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for _, m := range stormModels {
		if err := db.ReIndex(m); err != nil {
			return errors.Wrapf(err, "could not ReIndex %T", m)
		}
	}
	return nil
}

// StormOpen returns a new Storm database connection.
func StormOpen(database, codec string) (Client, error) {
	c, err := StormCodecByName(codec)
	if err != nil {
		return nil, err
	}

	db, err := storm.Open(database, c)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *strm) Save(m model.Model) error {
	model.Stamp(m, time.Now())
	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is nil or a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// IsAlreadyExists returns true if err is a unique constraint error.
func (c *strm) IsAlreadyExists(err error) bool {
	return errors.Cause(err) == storm.ErrAlreadyExists
}

// transaction runs fn in a writable transaction.
func (c *strm) transaction(fn func(tx storm.Node) error) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // nolint: errcheck

	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "could not commit transaction")
}

func save(tx storm.Node, now time.Time, models ...model.Model) error {
	for _, m := range models {
		model.Stamp(m, now)
		if err := tx.Save(m); err != nil {
			return errors.Wrapf(err, "could not save %T", m)
		}
	}
	return nil
}

func (c *strm) ignoreNotFound(err error) error {
	if c.IsNotFound(err) {
		return nil
	}
	return err
}

//
// Users
//

// FindUser returns the user for the given id (UUID).
func (c *strm) FindUser(id string) (*model.User, error) {
	var user model.User
	if err := c.db.One("ID", id, &user); err != nil {
		return nil, errors.Wrap(err, "find user by id")
	}
	return &user, nil
}

// FindUserByMail returns the user for the given email.
func (c *strm) FindUserByMail(email string) (*model.User, error) {
	var user model.User
	if err := c.db.One("Email", model.NormalizeEmail(email), &user); err != nil {
		return nil, errors.Wrap(err, "find user by mail")
	}
	return &user, nil
}

// FindUsers returns all users ordered by name.
func (c *strm) FindUsers() ([]*model.User, error) {
	users := make([]*model.User, 0)
	if err := c.db.All(&users); c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find users")
	}
	sortUsers(users)
	return users, nil
}

// FindUsersByIDs returns the users matching the given ids ordered by name.
func (c *strm) FindUsersByIDs(ids []string) ([]*model.User, error) {
	users := make([]*model.User, 0)
	if len(ids) == 0 {
		return users, nil
	}

	err := c.db.Select(q.In("ID", ids)).Find(&users)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find users by ids")
	}
	sortUsers(users)
	return users, nil
}

// FindMentionableUsers returns the members of the given board and all admins.
func (c *strm) FindMentionableUsers(boardID string) ([]*model.User, error) {
	ids, err := c.FindMembers(boardID)
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0)
	err = c.db.Select(q.Or(q.In("ID", ids), q.Eq("Admin", true))).Find(&users)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find mentionable users")
	}
	sortUsers(users)
	return users, nil
}

// RemoveUser deletes the user, its sessions, memberships and filters and unassigns its items.
func (c *strm) RemoveUser(id string) error {
	return c.transaction(func(tx storm.Node) error {
		var user model.User
		if err := tx.One("ID", id, &user); err != nil {
			return errors.Wrap(err, "find user by id")
		}

		for _, kind := range []any{&model.Session{}, &model.Membership{}, &model.BoardFilter{}} {
			err := tx.Select(q.Eq("UserID", id)).Delete(kind)
			if c.ignoreNotFound(err) != nil {
				return errors.Wrapf(err, "could not delete %T", kind)
			}
		}

		items := make([]*model.Item, 0)
		err := tx.Select(q.Eq("AssigneeID", id)).Find(&items)
		if c.ignoreNotFound(err) != nil {
			return errors.Wrap(err, "could not find assigned items")
		}
		for _, item := range items {
			item.AssigneeID = ""
			if err = tx.Save(item); err != nil {
				return errors.Wrap(err, "could not unassign item")
			}
		}

		return errors.Wrap(tx.DeleteStruct(&user), "could not delete user")
	})
}

//
// Sessions
//

// FindSession returns the session for the given id (UUID).
func (c *strm) FindSession(id string) (*model.Session, error) {
	var session model.Session
	if err := c.db.One("ID", id, &session); err != nil {
		return nil, errors.Wrap(err, "find session by id")
	}
	return &session, nil
}

// FindSessionByUserID returns the session for the given id and user id.
func (c *strm) FindSessionByUserID(id, userID string) (*model.Session, error) {
	var session model.Session
	err := c.db.Select(q.Eq("ID", id), q.Eq("UserID", userID)).First(&session)
	if err != nil {
		return nil, errors.Wrap(err, "find session by id and user id")
	}
	return &session, nil
}

// FindSessionsByUserID returns all the sessions for the given user id.
func (c *strm) FindSessionsByUserID(userID string) ([]*model.Session, error) {
	sessions := make([]*model.Session, 0)
	err := c.db.Select(q.Eq("UserID", userID)).OrderBy("CreatedAt").Find(&sessions)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find sessions by user id")
	}
	return sessions, nil
}

// FindActiveSessionsByUserID returns all active sessions for the given user id.
func (c *strm) FindActiveSessionsByUserID(userID string) ([]*model.Session, error) {
	sessions := make([]*model.Session, 0)
	err := c.db.Select(q.Eq("UserID", userID), q.Gt("ExpireAt", time.Now())).OrderBy("CreatedAt").Find(&sessions)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find sessions by user id")
	}
	return sessions, nil
}

//
// Boards
//

// FindBoard returns the board for the given id (UUID).
func (c *strm) FindBoard(id string) (*model.Board, error) {
	var board model.Board
	if err := c.db.One("ID", id, &board); err != nil {
		return nil, errors.Wrap(err, "find board by id")
	}
	return &board, nil
}

// FindBoards returns all boards ordered by name.
func (c *strm) FindBoards() ([]*model.Board, error) {
	boards := make([]*model.Board, 0)
	if err := c.db.All(&boards); c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find boards")
	}
	sortBoards(boards)
	return boards, nil
}

// FindBoardsByUserID returns the boards the given user is member of, ordered by name.
func (c *strm) FindBoardsByUserID(userID string) ([]*model.Board, error) {
	memberships := make([]*model.Membership, 0)
	err := c.db.Find("UserID", userID, &memberships)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find memberships")
	}

	boards := make([]*model.Board, 0)
	if len(memberships) == 0 {
		return boards, nil
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.BoardID
	}

	err = c.db.Select(q.In("ID", ids)).Find(&boards)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find boards by user id")
	}
	sortBoards(boards)
	return boards, nil
}

// CreateBoard inserts the board with its groups and columns in one unit of work.
func (c *strm) CreateBoard(board *model.Board, groups []*model.Group, columns []*model.Column) error {
	return c.transaction(func(tx storm.Node) error {
		now := time.Now()
		if err := save(tx, now, board); err != nil {
			return err
		}

		for _, g := range groups {
			g.BoardID = board.ID
			if err := save(tx, now, g); err != nil {
				return err
			}
		}

		for _, col := range columns {
			col.BoardID = board.ID
			if err := save(tx, now, col); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteBoard deletes the board and everything referencing it.
func (c *strm) DeleteBoard(id string) error {
	return c.transaction(func(tx storm.Node) error {
		var board model.Board
		if err := tx.One("ID", id, &board); err != nil {
			return errors.Wrap(err, "find board by id")
		}

		items := make([]*model.Item, 0)
		err := tx.Find("BoardID", id, &items)
		if c.ignoreNotFound(err) != nil {
			return errors.Wrap(err, "could not find board items")
		}
		for _, item := range items {
			if err = c.deleteItem(tx, item); err != nil {
				return err
			}
		}

		for _, kind := range []any{&model.Group{}, &model.Column{}, &model.Membership{}, &model.BoardFilter{}} {
			err = tx.Select(q.Eq("BoardID", id)).Delete(kind)
			if c.ignoreNotFound(err) != nil {
				return errors.Wrapf(err, "could not delete %T", kind)
			}
		}

		return errors.Wrap(tx.DeleteStruct(&board), "could not delete board")
	})
}

// FindGroup returns the group for the given id (UUID).
func (c *strm) FindGroup(id string) (*model.Group, error) {
	var group model.Group
	if err := c.db.One("ID", id, &group); err != nil {
		return nil, errors.Wrap(err, "find group by id")
	}
	return &group, nil
}

// FindGroupsByBoardID returns the groups of the given board ordered by position.
func (c *strm) FindGroupsByBoardID(boardID string) ([]*model.Group, error) {
	groups := make([]*model.Group, 0)
	err := c.db.Find("BoardID", boardID, &groups)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find groups")
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Position < groups[j].Position
	})
	return groups, nil
}

// FindColumnsByBoardID returns the columns of the given board ordered by position.
func (c *strm) FindColumnsByBoardID(boardID string) ([]*model.Column, error) {
	columns := make([]*model.Column, 0)
	err := c.db.Find("BoardID", boardID, &columns)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find columns")
	}
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].Position < columns[j].Position
	})
	return columns, nil
}

// FindMembers returns the user ids of the given board's members.
func (c *strm) FindMembers(boardID string) ([]string, error) {
	memberships := make([]*model.Membership, 0)
	err := c.db.Find("BoardID", boardID, &memberships)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find members")
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
	}
	return ids, nil
}

// IsMember returns true if the user is member of the given board.
func (c *strm) IsMember(boardID, userID string) (bool, error) {
	var membership model.Membership
	err := c.db.Select(q.Eq("BoardID", boardID), q.Eq("UserID", userID)).First(&membership)
	if err != nil {
		if c.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "could not find membership")
	}
	return true, nil
}

// SetMembers replaces the members of the given board.
func (c *strm) SetMembers(boardID string, userIDs []string) error {
	return c.transaction(func(tx storm.Node) error {
		err := tx.Select(q.Eq("BoardID", boardID)).Delete(&model.Membership{})
		if c.ignoreNotFound(err) != nil {
			return errors.Wrap(err, "could not delete memberships")
		}

		now := time.Now()
		for _, id := range unique(userIDs) {
			if err = save(tx, now, &model.Membership{BoardID: boardID, UserID: id}); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountItemsByBoardID returns the number of items of the given board.
func (c *strm) CountItemsByBoardID(boardID string) (int, error) {
	n, err := c.db.Select(q.Eq("BoardID", boardID)).Count(&model.Item{})
	if c.ignoreNotFound(err) != nil {
		return 0, errors.Wrap(err, "could not count items")
	}
	return n, nil
}

// FindBoardFilter returns the saved filter of the user for the given board.
func (c *strm) FindBoardFilter(userID, boardID string) (*model.BoardFilter, error) {
	var filter model.BoardFilter
	err := c.db.Select(q.Eq("UserID", userID), q.Eq("BoardID", boardID)).First(&filter)
	if err != nil {
		return nil, errors.Wrap(err, "find board filter")
	}
	return &filter, nil
}

//
// Items
//

// FindItem returns the item for the given id (UUID).
func (c *strm) FindItem(id string) (*model.Item, error) {
	var item model.Item
	if err := c.db.One("ID", id, &item); err != nil {
		return nil, errors.Wrap(err, "could not find item")
	}
	return &item, nil
}

// FindItemByNumber returns the item of the board for the given number.
func (c *strm) FindItemByNumber(boardID string, number int) (*model.Item, error) {
	var item model.Item
	err := c.db.Select(q.Eq("BoardID", boardID), q.Eq("Number", number)).First(&item)
	if err != nil {
		return nil, errors.Wrap(err, "could not find item by number")
	}
	return &item, nil
}

// FindItemsByBoardID returns the items of the given board ordered by group then position.
func (c *strm) FindItemsByBoardID(boardID string) ([]*model.Item, error) {
	items := make([]*model.Item, 0)
	err := c.db.Find("BoardID", boardID, &items)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find items")
	}
	sortItems(items)
	return items, nil
}

// CreateItem draws the next board number and inserts the item with its activity.
func (c *strm) CreateItem(item *model.Item, activity *model.ItemActivity) error {
	return c.transaction(func(tx storm.Node) error {
		var board model.Board
		if err := tx.One("ID", item.BoardID, &board); err != nil {
			return errors.Wrap(err, "find board by id")
		}

		items := make([]*model.Item, 0)
		err := tx.Select(q.Eq("BoardID", item.BoardID), q.Eq("GroupID", item.GroupID)).Find(&items)
		if c.ignoreNotFound(err) != nil {
			return errors.Wrap(err, "could not find group items")
		}

		board.ItemSequence++
		item.Number = board.ItemSequence
		item.Position = nextPosition(items)

		now := time.Now()
		if err = save(tx, now, &board, item); err != nil {
			return err
		}

		activity.ItemID = item.ID
		return save(tx, now, activity)
	})
}

// UpdateItem saves the item and inserts the given activities in one unit of work.
func (c *strm) UpdateItem(item *model.Item, activities []*model.ItemActivity) error {
	return c.transaction(func(tx storm.Node) error {
		now := time.Now()
		if err := save(tx, now, item); err != nil {
			return err
		}

		for i, a := range activities {
			a.ItemID = item.ID
			if err := save(tx, sequenced(now, i), a); err != nil {
				return err
			}
		}
		return nil
	})
}

// MoveItem places the item at the given index of its group, shifts the other items of the group
// and inserts the given activities in one unit of work.
func (c *strm) MoveItem(item *model.Item, index int, activities []*model.ItemActivity) error {
	return c.transaction(func(tx storm.Node) error {
		group := make([]*model.Item, 0)
		err := tx.Select(q.Eq("BoardID", item.BoardID), q.Eq("GroupID", item.GroupID)).Find(&group)
		if c.ignoreNotFound(err) != nil {
			return errors.Wrap(err, "could not find group items")
		}

		// Shifted items keep their updated_at.
		for _, it := range reposition(group, item, index) {
			if err = tx.UpdateField(it, "Position", it.Position); err != nil {
				return errors.Wrap(err, "could not shift item")
			}
		}

		now := time.Now()
		if err = save(tx, now, item); err != nil {
			return err
		}
		for i, a := range activities {
			a.ItemID = item.ID
			if err = save(tx, sequenced(now, i), a); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteItem deletes the item with its activities and comments.
func (c *strm) DeleteItem(id string) error {
	return c.transaction(func(tx storm.Node) error {
		var item model.Item
		if err := tx.One("ID", id, &item); err != nil {
			return errors.Wrap(err, "could not find item")
		}
		return c.deleteItem(tx, &item)
	})
}

func (c *strm) deleteItem(tx storm.Node, item *model.Item) error {
	for _, kind := range []any{&model.ItemActivity{}, &model.ItemComment{}} {
		err := tx.Select(q.Eq("ItemID", item.ID)).Delete(kind)
		if c.ignoreNotFound(err) != nil {
			return errors.Wrapf(err, "could not delete %T", kind)
		}
	}
	return errors.Wrap(tx.DeleteStruct(item), "could not delete item")
}

// FindActivitiesByItemID returns the item's activities, newest first.
func (c *strm) FindActivitiesByItemID(itemID string) ([]*model.ItemActivity, error) {
	activities := make([]*model.ItemActivity, 0)
	err := c.db.Find("ItemID", itemID, &activities)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find activities")
	}
	sortActivities(activities)
	return activities, nil
}

//
// Comments
//

// FindComment returns the comment for the given id (UUID).
func (c *strm) FindComment(id string) (*model.ItemComment, error) {
	var comment model.ItemComment
	if err := c.db.One("ID", id, &comment); err != nil {
		return nil, errors.Wrap(err, "could not find comment")
	}
	return &comment, nil
}

// FindCommentsByItemID returns the item's comments, oldest first.
func (c *strm) FindCommentsByItemID(itemID string) ([]*model.ItemComment, error) {
	comments := make([]*model.ItemComment, 0)
	err := c.db.Find("ItemID", itemID, &comments)
	if c.ignoreNotFound(err) != nil {
		return nil, errors.Wrap(err, "could not find comments")
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return before(comments[i].CreatedAt, comments[j].CreatedAt)
	})
	return comments, nil
}
