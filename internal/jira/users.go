package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// groupPageSize is the page size used when listing group members.
const groupPageSize = 50

// User is a Jira account.
type User struct {
	AccountID   string
	DisplayName string
	Email       string
}

// Member is one member of a Jira group.
type Member struct {
	AccountID   string
	DisplayName string
	AvatarURL   string
}

type apiUser struct {
	AccountID    string            `json:"accountId"`
	DisplayName  string            `json:"displayName"`
	EmailAddress string            `json:"emailAddress"`
	AvatarURLs   map[string]string `json:"avatarUrls"`
}

func (u apiUser) avatar() string {
	if v := u.AvatarURLs["48x48"]; v != "" {
		return v
	}
	return u.AvatarURLs["32x32"]
}

// User fetches an account by id. Email is empty when the site hides it.
func (c *Client) User(ctx context.Context, accountID string) (*User, error) {
	if accountID == "" {
		return nil, fmt.Errorf("jira: accountID is required")
	}
	var u apiUser
	if err := c.do(ctx, "GET", "/rest/api/3/user", url.Values{"accountId": {accountID}}, nil, &u); err != nil {
		return nil, err
	}
	return &User{AccountID: u.AccountID, DisplayName: u.DisplayName, Email: u.EmailAddress}, nil
}

// GroupMembers lists every member of a group, paging until a short page.
// A failure after the first page returns the members collected so far
// together with the error.
func (c *Client) GroupMembers(ctx context.Context, group string) ([]Member, error) {
	if group == "" {
		return nil, fmt.Errorf("jira: group is required")
	}
	var members []Member
	for startAt := 0; ; startAt += groupPageSize {
		var page struct {
			Values []apiUser `json:"values"`
		}
		q := url.Values{
			"groupname":  {group},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(groupPageSize)},
		}
		if err := c.do(ctx, "GET", "/rest/api/3/group/member", q, nil, &page); err != nil {
			return members, fmt.Errorf("jira: members of %s at %d: %w", group, startAt, err)
		}
		for _, v := range page.Values {
			members = append(members, Member{AccountID: v.AccountID, DisplayName: v.DisplayName, AvatarURL: v.avatar()})
		}
		if len(page.Values) < groupPageSize {
			return members, nil
		}
	}
}

// Groups lists group names visible to the app.
func (c *Client) Groups(ctx context.Context) ([]string, error) {
	var resp struct {
		Values []struct {
			Name string `json:"name"`
		} `json:"values"`
	}
	if err := c.do(ctx, "GET", "/rest/api/3/group/bulk", url.Values{"maxResults": {"1000"}}, nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Values))
	for _, v := range resp.Values {
		names = append(names, v.Name)
	}
	return names, nil
}

// AgentGroup returns the first group whose name starts with prefix.
func (c *Client) AgentGroup(ctx context.Context, prefix string) (string, error) {
	names, err := c.Groups(ctx)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if n != "" && strings.HasPrefix(n, prefix) {
			return n, nil
		}
	}
	return "", fmt.Errorf("jira: no group with prefix %q: %w", prefix, ErrNotFound)
}
