package server_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/appleboy/gofight/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketboard/ticketboard/internal/server"
	"github.com/ticketboard/ticketboard/internal/sso"
	"github.com/valyala/fastjson"
)

func TestRequestSignIn(t *testing.T) {
	e := setup(t)

	gofight.New().POST("/auth/sign_in").SetJSON(gofight.D{"password": "password42"}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-auth", "message":"No email provided."}}`, r.Body.String())
	})

	gofight.New().POST("/auth/sign_in").SetJSON(gofight.D{"email": "alice@example.com"}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-auth", "message":"No password provided."}}`, r.Body.String())
	})

	params := gofight.D{"email": "alice@example.com", "password": "password43"}
	gofight.New().POST("/auth/sign_in").SetJSON(params).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-auth", "message":"Invalid email or password."}}`, r.Body.String())
	})

	var token string
	params["password"] = "password42"
	gofight.New().POST("/auth/sign_in").SetJSON(params).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)

		token = string(v.GetStringBytes("token"))
		assert.Regexp(t, `^v2\.local\.`, token)
		assert.Equal(t, e.alice.ID, string(v.GetStringBytes("user", "id")))
		assert.Equal(t, "Alice Liddell", string(v.GetStringBytes("user", "name")))
		assert.False(t, v.GetBool("user", "is_admin"))
		assert.Equal(t, "Gofight-client/1.0", string(v.GetStringBytes("session", "user_agent")))
	})

	gofight.New().GET("/boards").SetHeader(gofight.H{"Authorization": "Bearer " + token}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})
}

func TestRequestSignOut(t *testing.T) {
	e := setup(t)
	header := e.auth(t, e.alice)

	gofight.New().POST("/auth/sign_out").SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})

	gofight.New().GET("/boards").SetHeader(header).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})
}

func TestRequestMicrosoft_NotConfigured(t *testing.T) {
	e := setup(t)

	gofight.New().GET("/auth/microsoft").Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusServiceUnavailable, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"not-configured", "message":"Microsoft sign in is not configured."}}`, r.Body.String())
	})
}

func TestRequestMicrosoft(t *testing.T) {
	p := &provider{profile: &sso.Profile{ID: "oid-1", Name: "Carol Danvers", Email: "carol@example.com", Admin: true}}
	e := setupWith(t, func(ctrl *server.IOC) {
		ctrl.SSO = p
	})

	var state string
	gofight.New().GET("/auth/microsoft").Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusFound, r.Code)

		rec := (*httptest.ResponseRecorder)(r)
		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "login.example.com", location.Host)
		state = location.Query().Get("state")
		assert.NotEmpty(t, state)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, server.StateCookie, cookies[0].Name)
		assert.Equal(t, state, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	callback := "/auth/microsoft/callback?code=good-code&state=" + state

	gofight.New().GET(callback).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-auth", "message":"Invalid sign in state."}}`, r.Body.String())
	})

	gofight.New().GET(callback).SetCookie(gofight.H{server.StateCookie: "forged"}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})

	bad := "/auth/microsoft/callback?code=bad-code&state=" + state
	gofight.New().GET(bad).SetCookie(gofight.H{server.StateCookie: state}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-auth", "message":"Microsoft sign in failed."}}`, r.Body.String())
	})

	gofight.New().GET(callback).SetCookie(gofight.H{server.StateCookie: state}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.NotEmpty(t, v.GetStringBytes("token"))
		assert.Equal(t, "carol@example.com", string(v.GetStringBytes("user", "email")))
		assert.True(t, v.GetBool("user", "is_admin"))
	})

	carol, err := e.db.FindUserByMail("carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Carol Danvers", carol.Name)
	assert.True(t, carol.Admin)

	// The admin flag follows the directory on each sign in.
	p.profile = &sso.Profile{ID: "oid-1", Name: "Carol D.", Email: "carol@example.com"}
	gofight.New().GET(callback).SetCookie(gofight.H{server.StateCookie: state}).Run(e.engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})

	carol, err = e.db.FindUserByMail("carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Carol D.", carol.Name)
	assert.False(t, carol.Admin)
}
