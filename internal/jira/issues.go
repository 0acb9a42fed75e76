package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Issue is the subset of an issue the assignment engine reads.
type Issue struct {
	Key         string
	ProjectID   string
	ProjectKey  string
	Summary     string
	Description json.RawMessage
	Fields      map[string]json.RawMessage
	Names       map[string]string
}

// RequestTypeID reads the customer request type id from field. It returns
// "" when the field is unknown to the site or carries no request type.
func (i *Issue) RequestTypeID(field string) string {
	if i.Names != nil {
		if _, ok := i.Names[field]; !ok {
			return ""
		}
	}
	raw, ok := i.Fields[field]
	if !ok || len(raw) == 0 {
		return ""
	}
	var v struct {
		RequestType struct {
			ID json.RawMessage `json:"id"`
		} `json:"requestType"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return rawID(v.RequestType.ID)
}

// rawID renders a JSON id that may be a string or a number.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Issue fetches an issue by key with field names expanded.
func (c *Client) Issue(ctx context.Context, key string) (*Issue, error) {
	if key == "" {
		return nil, fmt.Errorf("jira: issue key is required")
	}
	var resp struct {
		Key    string                     `json:"key"`
		Names  map[string]string          `json:"names"`
		Fields map[string]json.RawMessage `json:"fields"`
	}
	path := "/rest/api/3/issue/" + url.PathEscape(key)
	if err := c.do(ctx, "GET", path, url.Values{"expand": {"names"}}, nil, &resp); err != nil {
		return nil, err
	}

	issue := &Issue{Key: resp.Key, Fields: resp.Fields, Names: resp.Names}
	if issue.Key == "" {
		issue.Key = key
	}
	var project struct {
		ID  json.RawMessage `json:"id"`
		Key string          `json:"key"`
	}
	if raw, ok := resp.Fields["project"]; ok {
		if err := json.Unmarshal(raw, &project); err == nil {
			issue.ProjectID = rawID(project.ID)
			issue.ProjectKey = project.Key
		}
	}
	if raw, ok := resp.Fields["summary"]; ok {
		_ = json.Unmarshal(raw, &issue.Summary)
	}
	issue.Description = resp.Fields["description"]
	return issue, nil
}

// Assign sets the issue's assignee.
func (c *Client) Assign(ctx context.Context, key, accountID string) error {
	if key == "" {
		return fmt.Errorf("jira: issue key is required")
	}
	if accountID == "" {
		return fmt.Errorf("jira: accountID is required")
	}
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "/assignee"
	return c.do(ctx, "PUT", path, nil, map[string]string{"accountId": accountID}, nil)
}

// ApproximateCount returns the approximate number of issues matching jql.
func (c *Client) ApproximateCount(ctx context.Context, jql string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, "POST", "/rest/api/3/search/approximate-count", nil, map[string]string{"jql": jql}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

type searchResponse struct {
	Issues []struct {
		Key string `json:"key"`
	} `json:"issues"`
}

// SearchPost counts issues matching jql on the first page of a POST search.
func (c *Client) SearchPost(ctx context.Context, jql string, maxResults int) (int, error) {
	body := map[string]interface{}{
		"jql":          jql,
		"maxResults":   maxResults,
		"fields":       []string{"key"},
		"fieldsByKeys": false,
	}
	var resp searchResponse
	if err := c.do(ctx, "POST", "/rest/api/3/search/jql", nil, body, &resp); err != nil {
		return 0, err
	}
	return len(resp.Issues), nil
}

// SearchGet counts issues matching jql on the first page of a GET search.
func (c *Client) SearchGet(ctx context.Context, jql string, maxResults int) (int, error) {
	q := url.Values{
		"jql":        {jql},
		"maxResults": {strconv.Itoa(maxResults)},
		"fields":     {"key"},
	}
	var resp searchResponse
	if err := c.do(ctx, "GET", "/rest/api/3/search/jql", q, nil, &resp); err != nil {
		return 0, err
	}
	return len(resp.Issues), nil
}
