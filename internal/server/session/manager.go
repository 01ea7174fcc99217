package session

import (
	"net/http"
	"time"

	"github.com/o1egl/paseto/v2"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

const (
	// Issuer is the issuer of the session tokens.
	Issuer = "ticketboard"
	// TypeAccessToken is the audience of access tokens.
	TypeAccessToken = "access_token"
)

type (
	// A Manager manages sessions.
	Manager interface {
		// SessionSecret returns the key used to encrypt tokens.
		SessionSecret() []byte
		// Generate creates a new unsaved session for the given user.
		Generate(user *model.User, userAgent string) *model.Session
		// Create generates and saves a new session and returns its token.
		Create(user *model.User, userAgent string) (*model.Session, string, error)
		// Token returns the access token of the given session.
		Token(session *model.Session) (string, error)
		// Parse decrypts and checks the claims of the given token.
		Parse(token string) (*paseto.JSONToken, error)
		// Validate returns the active session for the given user and session ids.
		Validate(userID, sessionID string) (*model.Session, error)
		// Authenticate returns the session and the user of the given token.
		Authenticate(token string) (*model.Session, *model.User, error)
	}

	manager struct {
		db            database.Client
		sessionSecret []byte
		ttl           time.Duration
		v2            *paseto.V2
	}
)

// NewManager returns a new manager.
func NewManager(db database.Client, sessionSecret []byte, ttl time.Duration) Manager {
	return &manager{
		db:            db,
		sessionSecret: sessionSecret,
		ttl:           ttl,
		v2:            paseto.NewV2(),
	}
}

func (m *manager) SessionSecret() []byte {
	return m.sessionSecret
}

func (m *manager) Generate(user *model.User, userAgent string) *model.Session {
	return &model.Session{
		ExpireAt:  time.Now().Add(m.ttl).UTC(),
		UserID:    user.ID,
		UserAgent: userAgent,
	}
}

func (m *manager) Create(user *model.User, userAgent string) (*model.Session, string, error) {
	session := m.Generate(user, userAgent)
	if err := m.db.Save(session); err != nil {
		return nil, "", errors.Wrap(err, "could not persist session")
	}

	token, err := m.Token(session)
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

func (m *manager) Token(session *model.Session) (string, error) {
	now := time.Now()

	claims := paseto.JSONToken{
		Issuer:     Issuer,
		Audience:   TypeAccessToken,
		Subject:    session.UserID,
		Jti:        session.ID,
		IssuedAt:   now,
		NotBefore:  now,
		Expiration: session.ExpireAt,
	}

	token, err := m.v2.Encrypt(m.sessionSecret, claims, nil)
	return token, errors.Wrap(err, "could not generate access token")
}

func (m *manager) Parse(token string) (*paseto.JSONToken, error) {
	var claims paseto.JSONToken
	if err := m.v2.Decrypt(token, m.sessionSecret, &claims, nil); err != nil {
		return nil, invalidAuth()
	}

	err := claims.Validate(
		paseto.IssuedBy(Issuer),
		paseto.ForAudience(TypeAccessToken),
		paseto.ValidAt(time.Now()),
	)
	if err != nil {
		return nil, invalidAuth()
	}

	return &claims, nil
}

func (m *manager) Validate(userID, sessionID string) (*model.Session, error) {
	session, err := m.db.FindSessionByUserID(sessionID, userID)
	if err != nil {
		if m.db.IsNotFound(err) {
			return nil, invalidAuth()
		}
		return nil, errors.Wrap(err, "could not get access to database")
	}

	if session.ExpireAt.Before(time.Now()) {
		return nil, tberror.NewWithTagCode(http.StatusUnauthorized, tberror.TagInvalidAuth, "The session has expired.")
	}

	return session, nil
}

func (m *manager) Authenticate(token string) (*model.Session, *model.User, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return nil, nil, err
	}

	session, err := m.Validate(claims.Subject, claims.Jti)
	if err != nil {
		return nil, nil, err
	}

	// Get current_user.
	user, err := m.db.FindUser(session.UserID)
	if err != nil {
		if m.db.IsNotFound(err) {
			return nil, nil, invalidAuth()
		}
		return nil, nil, errors.Wrap(err, "could not get access to database")
	}

	return session, user, nil
}

func invalidAuth() error {
	return tberror.Unauthorized("Invalid login credentials.")
}
