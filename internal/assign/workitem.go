package assign

import (
	"encoding/json"
	"strings"

	"github.com/zulandar/crewradar/internal/jira"
)

// WorkItem is a newly created service-desk item awaiting an assignee.
type WorkItem struct {
	Key           string
	ProjectID     string
	ProjectKey    string
	RequestTypeID string
	Summary       string
	// Description is either a JSON string or an Atlassian Document Format
	// document.
	Description json.RawMessage
}

// WorkItemFromIssue builds a WorkItem, reading the request type from field.
func WorkItemFromIssue(issue *jira.Issue, field string) WorkItem {
	return WorkItem{
		Key:           issue.Key,
		ProjectID:     issue.ProjectID,
		ProjectKey:    issue.ProjectKey,
		RequestTypeID: issue.RequestTypeID(field),
		Summary:       issue.Summary,
		Description:   issue.Description,
	}
}

// Text returns the summary and flattened description as one searchable string.
func (w WorkItem) Text() string {
	desc := FlattenDescription(w.Description)
	if desc == "" {
		return w.Summary
	}
	return w.Summary + "\n" + desc
}

// FlattenDescription renders a description to plain text. Plain strings are
// returned as is; ADF documents contribute their text nodes and the visible
// text of mentions, emoji and links. Anything else yields "".
func FlattenDescription(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var parts []string
	doc.collect(&parts)
	return strings.Join(parts, " ")
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
	Attrs   struct {
		Text      string `json:"text"`
		ShortName string `json:"shortName"`
		URL       string `json:"url"`
	} `json:"attrs"`
}

func (n adfNode) collect(parts *[]string) {
	switch {
	case n.Text != "":
		*parts = append(*parts, n.Text)
	case n.Type == "mention" && n.Attrs.Text != "":
		*parts = append(*parts, n.Attrs.Text)
	case n.Type == "emoji" && n.Attrs.ShortName != "":
		*parts = append(*parts, n.Attrs.ShortName)
	case n.Type == "inlineCard" && n.Attrs.URL != "":
		*parts = append(*parts, n.Attrs.URL)
	}
	for _, c := range n.Content {
		c.collect(parts)
	}
}
