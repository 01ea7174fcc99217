// Package msgraph is a minimal Microsoft Graph client: mail sending, user lookup, profile photos and signed-in profile.
package msgraph

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultGraphURL is the Microsoft Graph v1.0 endpoint.
	DefaultGraphURL = "https://graph.microsoft.com/v1.0"
	// DefaultLoginURL is the Microsoft identity platform endpoint.
	DefaultLoginURL = "https://login.microsoftonline.com"
	// DefaultScope is the scope of application tokens.
	DefaultScope = "https://graph.microsoft.com/.default"
	// DefaultTimeout is the timeout of one Graph call.
	DefaultTimeout = 30 * time.Second
	// MaxPhotoSize is the largest profile photo read.
	MaxPhotoSize = 4 << 20
)

type (
	// Config holds the application (client credentials) settings.
	Config struct {
		ClientID     string
		ClientSecret string
		Tenant       string
		// Sender is the mailbox used to send emails.
		Sender     string
		SenderName string
		// InsecureSkipVerify disables TLS certificate verification.
		InsecureSkipVerify bool
		Timeout            time.Duration
		// GraphURL and LoginURL override the Microsoft endpoints.
		GraphURL string
		LoginURL string
	}

	// A Client calls Microsoft Graph.
	Client struct {
		http       *http.Client
		graphURL   string
		sender     string
		senderName string
		token      oauth2.TokenSource

		mu       sync.Mutex
		senderID string
	}

	// A User is a Graph user.
	User struct {
		ID                string `json:"id"`
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		EmployeeType      string `json:"employeeType"`
	}
)

// Configured returns true if the application credentials are set.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TokenTenant returns the tenant used for application tokens.
// The multi-tenant "common" endpoint does not issue client credentials tokens.
func (c Config) TokenTenant() string {
	if c.Tenant == "" || c.Tenant == "common" {
		return "organizations"
	}
	return c.Tenant
}

// HTTPClient returns the base HTTP client honoring the timeout and TLS settings.
func (c Config) HTTPClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // nolint: gosec
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// New returns a Client authenticated with the application credentials.
func New(c Config) *Client {
	loginURL := strings.TrimSuffix(c.LoginURL, "/")
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}

	cc := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", loginURL, c.TokenTenant()),
		Scopes:       []string{DefaultScope},
	}

	base := c.HTTPClient()
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	ts := cc.TokenSource(ctx) // tokens are cached until expiry

	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = base.Timeout

	client := NewWithHTTPClient(hc, c.GraphURL)
	client.token = ts
	client.sender = c.Sender
	client.senderName = c.SenderName
	return client
}

// NewWithHTTPClient returns a Client sending its requests with hc.
// hc is expected to carry the authorization (e.g. an oauth2 client for a signed-in user).
func NewWithHTTPClient(hc *http.Client, graphURL string) *Client {
	graphURL = strings.TrimSuffix(graphURL, "/")
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}

	return &Client{
		http:     hc,
		graphURL: graphURL,
	}
}

// Token returns a valid application token.
func (c *Client) Token() (*oauth2.Token, error) {
	if c.token == nil {
		return nil, errors.New("msgraph: client has no application credentials")
	}

	token, err := c.token.Token()
	if err != nil {
		return nil, wrapTokenError(err)
	}
	return token, nil
}

// Sender returns the configured sender mailbox.
func (c *Client) Sender() string {
	return c.sender
}

// User returns the user for the given id or user principal name.
func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &user)
	if err != nil {
		return nil, errors.Wrapf(err, "could not get user %s", id)
	}
	return &user, nil
}

// Me returns the profile of the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/me?$select=id,displayName,mail,userPrincipalName,employeeType", nil, &user)
	if err != nil {
		return nil, errors.Wrap(err, "could not get signed-in user")
	}
	return &user, nil
}

// SenderID returns the Graph id of the sender mailbox.
// It is looked up once and cached.
func (c *Client) SenderID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.senderID != "" {
		return c.senderID, nil
	}
	if c.sender == "" {
		return "", errors.New("msgraph: no sender configured")
	}

	user, err := c.User(ctx, c.sender)
	if err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", errors.Errorf("msgraph: no id for sender %s", c.sender)
	}

	c.senderID = user.ID
	return c.senderID, nil
}

// SendMail sends an HTML email from the sender mailbox.
func (c *Client) SendMail(ctx context.Context, to, subject, html string) error {
	id, err := c.SenderID(ctx)
	if err != nil {
		return err
	}

	from := recipient{}
	from.EmailAddress.Address = c.sender
	from.EmailAddress.Name = c.senderName

	var rcpt recipient
	rcpt.EmailAddress.Address = to

	payload := sendMail{}
	payload.Message.Subject = subject
	payload.Message.Body.ContentType = "HTML"
	payload.Message.Body.Content = html
	payload.Message.From = &from
	payload.Message.ToRecipients = []recipient{rcpt}

	err = c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/sendMail", payload, nil)
	return errors.Wrapf(err, "could not send mail to %s", to)
}

// Photo returns the profile photo of the user and its content type.
// The content is nil when the user has no photo.
func (c *Client) Photo(ctx context.Context, id string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+"/users/"+url.PathEscape(id)+"/photo/$value", nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "could not build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", wrapTokenError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, MaxPhotoSize))
	if err != nil {
		return nil, "", errors.Wrap(err, "could not read photo")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = parseError(resp.StatusCode, payload)
		if IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", errors.Wrap(err, "could not get user photo")
	}
	if len(payload) == 0 {
		return nil, "", nil
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", errors.Errorf("msgraph: unexpected photo content type %q", contentType)
	}
	return payload, contentType, nil
}

type (
	recipient struct {
		EmailAddress struct {
			Address string `json:"address"`
			Name    string `json:"name,omitempty"`
		} `json:"emailAddress"`
	}

	sendMail struct {
		Message struct {
			Subject string `json:"subject"`
			Body    struct {
				ContentType string `json:"contentType"`
				Content     string `json:"content"`
			} `json:"body"`
			From         *recipient  `json:"from,omitempty"`
			ToRecipients []recipient `json:"toRecipients"`
		} `json:"message"`
	}
)

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "could not encode request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.graphURL+path, body)
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTokenError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "could not read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, payload)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(payload, out), "could not decode response")
}
