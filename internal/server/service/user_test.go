package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketboard/ticketboard/internal/server/service"
	"github.com/ticketboard/ticketboard/internal/server/session"
	"github.com/ticketboard/ticketboard/internal/sso"
	"github.com/ticketboard/ticketboard/internal/tberror"
)

func TestUserService(t *testing.T) {
	e := setup(t)
	sessions := session.NewManager(e.db, []byte("4e8a4ac6d7a7d4d8c0f1e3c7a2b5f9d0"), time.Hour)
	users := service.NewUser(e.db, sessions)

	u, err := users.Create(service.CreateUserParams{Name: "Dave", Email: " Dave@Example.com ", Password: "password42"})
	require.NoError(t, err)
	assert.Equal(t, "dave@example.com", u.Email)
	assert.NotEqual(t, "password42", u.Password)

	_, err = users.Create(service.CreateUserParams{Name: "Dave", Email: "dave@example.com", Password: "password42"})
	assert.Equal(t, 422, tberror.StatusCode(err))
	_, err = users.Create(service.CreateUserParams{Name: "Dave", Email: "", Password: "password42"})
	assert.Equal(t, 422, tberror.StatusCode(err))

	render, err := users.Login(service.LoginParams{
		Params:   service.Params{UserAgent: "test-agent"},
		Email:    "DAVE@example.com",
		Password: "password42",
	})
	require.NoError(t, err)
	m := render.(service.M)
	token := m["token"].(string)
	assert.NotEmpty(t, token)
	assert.Equal(t, "test-agent", m["session"].(service.M)["user_agent"])

	s, user, err := sessions.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	assert.Equal(t, "test-agent", s.UserAgent)

	_, err = users.Login(service.LoginParams{Email: "dave@example.com", Password: "wrong"})
	assert.Equal(t, 401, tberror.StatusCode(err))
	_, err = users.Login(service.LoginParams{Email: "nobody@example.com", Password: "password42"})
	assert.Equal(t, 401, tberror.StatusCode(err))
	// SSO-only account
	_, err = users.Login(service.LoginParams{Email: "alice@example.com", Password: ""})
	assert.Equal(t, 401, tberror.StatusCode(err))
}

func TestUserService_SignIn(t *testing.T) {
	e := setup(t)
	sessions := session.NewManager(e.db, []byte("4e8a4ac6d7a7d4d8c0f1e3c7a2b5f9d0"), time.Hour)
	users := service.NewUser(e.db, sessions)

	_, err := users.SignIn(&sso.Profile{ID: "oid", Name: "Alice L.", Email: "alice@example.com", Admin: true}, service.Params{})
	require.NoError(t, err)

	alice, err := e.db.FindUser(e.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", alice.Name)
	assert.True(t, alice.Admin)

	render, err := users.SignIn(&sso.Profile{Name: "Erin", Email: "erin@example.com"}, service.Params{})
	require.NoError(t, err)
	assert.NotEmpty(t, render.(service.M)["token"])

	erin, err := e.db.FindUserByMail("erin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Erin", erin.Name)
	assert.False(t, erin.Admin)
}
