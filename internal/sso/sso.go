// Package sso implements the Microsoft single sign-on.
package sso

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/pkg/msgraph"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// Scopes requested at sign in.
var Scopes = []string{"openid", "profile", "email", "User.Read"}

type (
	// A Provider authenticates users against an identity provider.
	Provider interface {
		AuthCodeURL(state string) string
		Authenticate(ctx context.Context, code string) (*Profile, error)
	}

	// A Profile is an authenticated user as reported by the identity provider.
	Profile struct {
		ID    string
		Name  string
		Email string
		Admin bool
	}

	// Config holds the Microsoft application settings.
	Config struct {
		ClientID     string
		ClientSecret string
		Tenant       string
		RedirectURL  string
		// Endpoint and GraphURL override the Microsoft endpoints.
		Endpoint   *oauth2.Endpoint
		GraphURL   string
		HTTPClient *http.Client
	}

	// Microsoft is the Microsoft Entra ID Provider.
	Microsoft struct {
		oauth    *oauth2.Config
		graphURL string
		http     *http.Client
	}
)

// Configured returns true if the SSO settings are complete.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// NewMicrosoft returns a new Microsoft Provider.
func NewMicrosoft(c Config) *Microsoft {
	tenant := c.Tenant
	if tenant == "" {
		tenant = "common"
	}

	endpoint := microsoft.AzureADEndpoint(tenant)
	if c.Endpoint != nil {
		endpoint = *c.Endpoint
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Microsoft{
		oauth: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		graphURL: c.GraphURL,
		http:     hc,
	}
}

// NewState returns a random value for the state parameter.
func NewState() string {
	return uuid.Must(uuid.NewV4()).String()
}

// AuthCodeURL returns the URL of the Microsoft consent page.
func (p *Microsoft) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Authenticate exchanges the authorization code and fetches the signed-in user.
func (p *Microsoft) Authenticate(ctx context.Context, code string) (*Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "could not exchange authorization code")
	}

	me, err := msgraph.NewWithHTTPClient(p.oauth.Client(ctx, token), p.graphURL).Me(ctx)
	if err != nil {
		return nil, err
	}

	return ProfileOf(me)
}

// ProfileOf converts a Graph user to a Profile.
func ProfileOf(me *msgraph.User) (*Profile, error) {
	email := me.Mail
	if email == "" {
		email = me.UserPrincipalName
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("microsoft account has no email")
	}

	name := strings.TrimSpace(me.DisplayName)
	if name == "" {
		name = email
	}

	return &Profile{
		ID:    me.ID,
		Name:  name,
		Email: email,
		Admin: strings.ToLower(strings.TrimSpace(me.EmployeeType)) == "admin",
	}, nil
}
