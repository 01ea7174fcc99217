package service

import (
	argon2 "github.com/mdouchement/simple-argon2"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/model"
	"github.com/ticketboard/ticketboard/internal/server/serializer"
	"github.com/ticketboard/ticketboard/internal/server/session"
	"github.com/ticketboard/ticketboard/internal/sso"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

type (
	// A UserService signs users in.
	UserService struct {
		db       database.Client
		sessions session.Manager
	}

	// LoginParams are used to login a user with a password.
	LoginParams struct {
		Params
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// CreateUserParams are used to create a local user.
	CreateUserParams struct {
		Name     string
		Email    string
		Password string
		Admin    bool
	}
)

// NewUser returns a new UserService.
func NewUser(db database.Client, sessions session.Manager) *UserService {
	return &UserService{
		db:       db,
		sessions: sessions,
	}
}

// Create creates a user allowed to sign in with a password.
func (s *UserService) Create(params CreateUserParams) (*model.User, error) {
	if err := validateName(params.Name); err != nil {
		return nil, err
	}

	email := model.NormalizeEmail(params.Email)
	if email == "" {
		return nil, tberror.Invalid("The email field is required.")
	}
	if params.Password == "" {
		return nil, tberror.Invalid("The password field is required.")
	}

	// Check if the email is free to use.
	u, err := s.db.FindUserByMail(email)
	if err != nil && !s.db.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not get access to database")
	}
	if u != nil {
		return nil, tberror.Invalid("This email is already registered.")
	}

	user := &model.User{
		Name:  params.Name,
		Email: email,
		Admin: params.Admin,
	}

	// Crypt password
	user.Password, err = argon2.GenerateFromPasswordString(params.Password, argon2.Default)
	if err != nil {
		return nil, errors.Wrap(err, "could not store user password safe")
	}

	// Persist the model
	if err := s.db.Save(user); err != nil {
		return nil, errors.Wrap(err, "could not persist user")
	}
	return user, nil
}

// Login authenticates a user with a password and opens a session.
func (s *UserService) Login(params LoginParams) (Render, error) {
	// Retrieve user
	user, err := s.db.FindUserByMail(model.NormalizeEmail(params.Email))
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, tberror.Unauthorized("Invalid email or password.")
		}
		return nil, errors.Wrap(err, "could not get user")
	}

	// SSO-only accounts have no password.
	if user.Password == "" {
		return nil, tberror.Unauthorized("Invalid email or password.")
	}

	// Verify password
	if err = argon2.CompareHashAndPasswordString(user.Password, params.Password); err != nil {
		if err == argon2.ErrMismatchedHashAndPassword {
			return nil, tberror.Unauthorized("Invalid email or password.")
		}
		return nil, errors.Wrap(err, "could not validate password")
	}

	return s.SuccessfulAuthentication(user, params.Params)
}

// SignIn creates or updates the user of an SSO profile and opens a session.
func (s *UserService) SignIn(profile *sso.Profile, params Params) (Render, error) {
	user, err := s.db.FindUserByMail(profile.Email)
	if err != nil {
		if !s.db.IsNotFound(err) {
			return nil, errors.Wrap(err, "could not get user")
		}
		user = &model.User{Email: profile.Email}
	}

	user.Name = profile.Name
	user.Admin = profile.Admin

	if err = s.db.Save(user); err != nil {
		return nil, errors.Wrap(err, "could not persist user")
	}

	return s.SuccessfulAuthentication(user, params)
}

// SuccessfulAuthentication opens a session for the user.
func (s *UserService) SuccessfulAuthentication(user *model.User, params Params) (Render, error) {
	session, token, err := s.sessions.Create(user, params.UserAgent)
	if err != nil {
		return nil, err
	}

	return M{
		"user":  serializer.User(user),
		"token": token,
		"session": M{
			"id":         session.ID,
			"expire_at":  session.ExpireAt.UTC(),
			"user_agent": session.UserAgent,
		},
	}, nil
}
