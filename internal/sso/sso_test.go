package sso_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketboard/ticketboard/internal/sso"
	"github.com/ticketboard/ticketboard/pkg/msgraph"
	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	c := sso.Config{ClientID: "id", ClientSecret: "secret"}
	assert.False(t, c.Configured())

	c.RedirectURL = "https://tickets.example.com/auth/microsoft/callback"
	assert.True(t, c.Configured())
}

func TestAuthCodeURL(t *testing.T) {
	provider := sso.NewMicrosoft(sso.Config{
		ClientID:    "client",
		RedirectURL: "https://tickets.example.com/auth/microsoft/callback",
	})

	u, err := url.Parse(provider.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "login.microsoftonline.com", u.Host)
	assert.Equal(t, "/common/oauth2/v2.0/authorize", u.Path)
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Equal(t, "openid profile email User.Read", u.Query().Get("scope"))
}

func TestNewState(t *testing.T) {
	assert.NotEqual(t, sso.NewState(), sso.NewState())
}

func TestAuthenticate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"user-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1.0/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]string{
			"id":                "42",
			"displayName":       "Alice Liddell",
			"mail":              "Alice@Example.com",
			"userPrincipalName": "alice@contoso.onmicrosoft.com",
			"employeeType":      "Admin",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	provider := sso.NewMicrosoft(sso.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://tickets.example.com/auth/microsoft/callback",
		Endpoint: &oauth2.Endpoint{
			AuthURL:  server.URL + "/authorize",
			TokenURL: server.URL + "/token",
		},
		GraphURL:   server.URL + "/v1.0",
		HTTPClient: server.Client(),
	})

	profile, err := provider.Authenticate(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, &sso.Profile{
		ID:    "42",
		Name:  "Alice Liddell",
		Email: "alice@example.com",
		Admin: true,
	}, profile)

	_, err = provider.Authenticate(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestProfileOf(t *testing.T) {
	profile, err := sso.ProfileOf(&msgraph.User{
		ID:                "7",
		UserPrincipalName: "Bob@Contoso.com",
		EmployeeType:      "Employee",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@contoso.com", profile.Email)
	assert.Equal(t, "bob@contoso.com", profile.Name)
	assert.False(t, profile.Admin)

	_, err = sso.ProfileOf(&msgraph.User{ID: "8", DisplayName: "Nobody"})
	assert.Error(t, err)
}
