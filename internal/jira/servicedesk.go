package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
)

// RequestType is a service desk request type.
type RequestType struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IssueTypeID   string `json:"issueTypeId"`
	ServiceDeskID string `json:"serviceDeskId"`
}

// RequestTypes lists request types of every service desk whose issue type is
// used by projectID. Service desks whose request types cannot be read are
// skipped.
func (c *Client) RequestTypes(ctx context.Context, projectID string) ([]RequestType, error) {
	if projectID == "" {
		return nil, fmt.Errorf("jira: projectID is required")
	}

	var desks struct {
		Values []struct {
			ID json.RawMessage `json:"id"`
		} `json:"values"`
	}
	if err := c.do(ctx, "GET", "/rest/servicedeskapi/servicedesk", url.Values{"limit": {"1000"}}, nil, &desks); err != nil {
		return nil, err
	}

	var all []RequestType
	for _, d := range desks.Values {
		deskID := rawID(d.ID)
		var rts struct {
			Values []struct {
				ID          json.RawMessage `json:"id"`
				Name        string          `json:"name"`
				IssueTypeID json.RawMessage `json:"issueTypeId"`
			} `json:"values"`
		}
		path := "/rest/servicedeskapi/servicedesk/" + url.PathEscape(deskID) + "/requesttype"
		if err := c.do(ctx, "GET", path, url.Values{"limit": {"1000"}}, nil, &rts); err != nil {
			log.Printf("jira: request types of service desk %s: %v", deskID, err)
			continue
		}
		for _, rt := range rts.Values {
			all = append(all, RequestType{
				ID:            rawID(rt.ID),
				Name:          rt.Name,
				IssueTypeID:   rawID(rt.IssueTypeID),
				ServiceDeskID: deskID,
			})
		}
	}

	var project struct {
		IssueTypes []struct {
			ID json.RawMessage `json:"id"`
		} `json:"issueTypes"`
	}
	if err := c.do(ctx, "GET", "/rest/api/3/project/"+url.PathEscape(projectID), nil, nil, &project); err != nil {
		return nil, err
	}
	used := make(map[string]bool, len(project.IssueTypes))
	for _, it := range project.IssueTypes {
		used[rawID(it.ID)] = true
	}

	filtered := make([]RequestType, 0, len(all))
	for _, rt := range all {
		if rt.IssueTypeID != "" && used[rt.IssueTypeID] {
			filtered = append(filtered, rt)
		}
	}
	return filtered, nil
}
