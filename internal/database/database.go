package database

import (
	"github.com/ticketboard/ticketboard/internal/model"
)

// Supported drivers.
const (
	DriverStorm  = "storm"
	DriverSQLite = "sqlite"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// IsAlreadyExists returns true if err is a unique constraint error.
		IsAlreadyExists(err error) bool

		UserInteraction
		SessionInteraction
		BoardInteraction
		ItemInteraction
		CommentInteraction
	}

	// An UserInteraction defines all the methods used to interact with a user record.
	UserInteraction interface {
		// FindUser returns the user for the given id (UUID).
		FindUser(id string) (*model.User, error)
		// FindUserByMail returns the user for the given email.
		FindUserByMail(email string) (*model.User, error)
		// FindUsers returns all users ordered by name.
		FindUsers() ([]*model.User, error)
		// FindUsersByIDs returns the users matching the given ids ordered by name.
		// Unknown ids are ignored.
		FindUsersByIDs(ids []string) ([]*model.User, error)
		// FindMentionableUsers returns the members of the given board and all admins,
		// ordered by case-insensitive name then id.
		FindMentionableUsers(boardID string) ([]*model.User, error)
		// RemoveUser deletes the user, its sessions, memberships and filters and unassigns its items.
		RemoveUser(id string) error
	}

	// An SessionInteraction defines all the methods used to interact with a session record.
	SessionInteraction interface {
		// FindSession returns the session for the given id (UUID).
		FindSession(id string) (*model.Session, error)
		// FindSessionByUserID returns the session for the given id and user id.
		FindSessionByUserID(id, userID string) (*model.Session, error)
		// FindActiveSessionsByUserID returns all active sessions for the given user id.
		FindActiveSessionsByUserID(userID string) ([]*model.Session, error)
		// FindSessionsByUserID returns all sessions for the given user id.
		FindSessionsByUserID(userID string) ([]*model.Session, error)
	}

	// A BoardInteraction defines all the methods used to interact with boards and their structure.
	BoardInteraction interface {
		// FindBoard returns the board for the given id (UUID).
		FindBoard(id string) (*model.Board, error)
		// FindBoards returns all boards ordered by name.
		FindBoards() ([]*model.Board, error)
		// FindBoardsByUserID returns the boards the given user is member of, ordered by name.
		FindBoardsByUserID(userID string) ([]*model.Board, error)
		// CreateBoard inserts the board with its groups and columns in one unit of work.
		CreateBoard(board *model.Board, groups []*model.Group, columns []*model.Column) error
		// DeleteBoard deletes the board and everything referencing it.
		DeleteBoard(id string) error
		// FindGroup returns the group for the given id (UUID).
		FindGroup(id string) (*model.Group, error)
		// FindGroupsByBoardID returns the groups of the given board ordered by position.
		FindGroupsByBoardID(boardID string) ([]*model.Group, error)
		// FindColumnsByBoardID returns the columns of the given board ordered by position.
		FindColumnsByBoardID(boardID string) ([]*model.Column, error)
		// FindMembers returns the user ids of the given board's members.
		FindMembers(boardID string) ([]string, error)
		// IsMember returns true if the user is member of the given board.
		IsMember(boardID, userID string) (bool, error)
		// SetMembers replaces the members of the given board.
		SetMembers(boardID string, userIDs []string) error
		// CountItemsByBoardID returns the number of items of the given board.
		CountItemsByBoardID(boardID string) (int, error)
		// FindBoardFilter returns the saved filter of the user for the given board.
		FindBoardFilter(userID, boardID string) (*model.BoardFilter, error)
	}

	// An ItemInteraction defines all the methods used to interact with item record(s).
	ItemInteraction interface {
		// FindItem returns the item for the given id (UUID).
		FindItem(id string) (*model.Item, error)
		// FindItemByNumber returns the item of the board for the given number.
		FindItemByNumber(boardID string, number int) (*model.Item, error)
		// FindItemsByBoardID returns the items of the given board ordered by group then position.
		FindItemsByBoardID(boardID string) ([]*model.Item, error)
		// CreateItem draws the next board number, inserts the item at the end of its group
		// and records the given activity in one unit of work.
		CreateItem(item *model.Item, activity *model.ItemActivity) error
		// UpdateItem saves the item and inserts the given activities in one unit of work.
		UpdateItem(item *model.Item, activities []*model.ItemActivity) error
		// MoveItem places the item at the given index of its group, shifts the other items of the group
		// and inserts the given activities in one unit of work.
		MoveItem(item *model.Item, index int, activities []*model.ItemActivity) error
		// DeleteItem deletes the item with its activities and comments.
		DeleteItem(id string) error
		// FindActivitiesByItemID returns the item's activities, newest first.
		FindActivitiesByItemID(itemID string) ([]*model.ItemActivity, error)
	}

	// A CommentInteraction defines all the methods used to interact with comment record(s).
	CommentInteraction interface {
		// FindComment returns the comment for the given id (UUID).
		FindComment(id string) (*model.ItemComment, error)
		// FindCommentsByItemID returns the item's comments, oldest first.
		FindCommentsByItemID(itemID string) ([]*model.ItemComment, error)
	}
)

// Open opens the database for the given driver.
func Open(driver, path, codec string) (Client, error) {
	switch driver {
	case DriverSQLite:
		return SQLiteOpen(path)
	case DriverStorm, "":
		return StormOpen(path, codec)
	default:
		return nil, ErrUnknownDriver(driver)
	}
}
