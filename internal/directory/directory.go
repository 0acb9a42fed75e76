// Package directory looks up people and their presence in Microsoft Graph
// using an app-only OAuth2 client credentials grant.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zulandar/crewradar/internal/presence"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// GraphScope is the app-only scope for Microsoft Graph.
const GraphScope = "https://graph.microsoft.com/.default"

// ErrNotFound is returned when a lookup matches nobody.
var ErrNotFound = errors.New("directory: not found")

// User is a directory identity.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Opts holds parameters for creating a Client.
type Opts struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	GraphURL     string
	HTTPClient   *http.Client
}

// Client calls Microsoft Graph with an automatically refreshed token.
type Client struct {
	graphURL string
	http     *http.Client
	tokens   oauth2.TokenSource
}

// New creates a Client. No token is requested until the first call.
func New(opts Opts) (*Client, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("directory: client id and secret are required")
	}
	if opts.TokenURL == "" {
		return nil, fmt.Errorf("directory: token URL is required")
	}
	if opts.GraphURL == "" {
		return nil, fmt.Errorf("directory: graph URL is required")
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		Scopes:       []string{GraphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	tokens := cc.TokenSource(ctx)

	return &Client{
		graphURL: strings.TrimRight(opts.GraphURL, "/"),
		http:     oauth2.NewClient(ctx, tokens),
		tokens:   tokens,
	}, nil
}

// Check acquires a token, verifying the tenant, client id and secret.
func (c *Client) Check(ctx context.Context) error {
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("directory: acquire token: %w", err)
	}
	if !tok.Valid() {
		return fmt.Errorf("directory: acquired token is not valid")
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, header http.Header, out interface{}) error {
	u := c.graphURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("directory: build GET %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("directory: GET %s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("directory: GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decode GET %s: %w", path, err)
	}
	return nil
}

// UserIDByEmail returns the id of the user whose mail equals email.
func (c *Client) UserIDByEmail(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("directory: email is required")
	}
	q := url.Values{
		"$select": {"id,mail,userPrincipalName"},
		"$filter": {fmt.Sprintf("mail eq '%s'", strings.ReplaceAll(email, "'", "''"))},
	}
	var resp struct {
		Value []User `json:"value"`
	}
	if err := c.get(ctx, "/users", q, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Value) == 0 || resp.Value[0].ID == "" {
		return "", fmt.Errorf("directory: user with mail %s: %w", email, ErrNotFound)
	}
	return resp.Value[0].ID, nil
}

// UsersByDisplayName searches users by display name. Several people may
// share a name, so every match is returned.
func (c *Client) UsersByDisplayName(ctx context.Context, name string) ([]User, error) {
	if name == "" {
		return nil, fmt.Errorf("directory: display name is required")
	}
	q := url.Values{"$search": {fmt.Sprintf(`"displayName:%s"`, strings.ReplaceAll(name, `"`, ""))}}
	h := http.Header{"ConsistencyLevel": {"eventual"}}
	var resp struct {
		Value []User `json:"value"`
	}
	if err := c.get(ctx, "/users", q, h, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Presence fetches a user's current presence.
func (c *Client) Presence(ctx context.Context, userID string) (presence.Signal, error) {
	if userID == "" {
		return presence.Signal{}, fmt.Errorf("directory: user id is required")
	}
	var resp struct {
		Availability        string          `json:"availability"`
		Activity            string          `json:"activity"`
		SequenceNumber      string          `json:"sequenceNumber"`
		WorkLocation        json.RawMessage `json:"workLocation"`
		OutOfOfficeSettings *struct {
			IsOutOfOffice bool `json:"isOutOfOffice"`
		} `json:"outOfOfficeSettings"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/presence", nil, nil, &resp); err != nil {
		return presence.Signal{}, err
	}
	sig := presence.Signal{
		Availability: resp.Availability,
		Activity:     resp.Activity,
		Sequence:     resp.SequenceNumber,
		WorkLocation: workLocation(resp.WorkLocation),
	}
	if resp.OutOfOfficeSettings != nil {
		sig.OutOfOffice = resp.OutOfOfficeSettings.IsOutOfOffice
	}
	return sig, nil
}

// workLocation accepts either a plain string or Graph's
// {"workLocationType": "..."} object.
func workLocation(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		WorkLocationType string `json:"workLocationType"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.WorkLocationType
	}
	return ""
}
