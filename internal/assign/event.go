package assign

import (
	"encoding/json"
	"fmt"
)

// EventType classifies inbound ticketing events.
type EventType string

const (
	EventCreated EventType = "created"
	EventViewed  EventType = "viewed"
	EventUpdated EventType = "updated"
	EventOther   EventType = "other"
)

// Event is an inbound ticketing event reduced to what the engine acts on.
type Event struct {
	Type EventType
	// Name is the event name as delivered.
	Name     string
	IssueKey string
	// ActorID is the user who created, viewed or updated the issue.
	ActorID string
}

var eventTypes = map[string]EventType{
	"avi:jira:created:issue": EventCreated,
	"jira:issue_created":     EventCreated,
	"avi:jira:viewed:issue":  EventViewed,
	"avi:jira:updated:issue": EventUpdated,
	"jira:issue_updated":     EventUpdated,
}

type accountRef struct {
	AccountID string `json:"accountId"`
}

// ParseEvent decodes an app event or a webhook payload.
func ParseEvent(data []byte) (Event, error) {
	var p struct {
		EventType       string       `json:"eventType"`
		WebhookEvent    string       `json:"webhookEvent"`
		AtlassianID     string       `json:"atlassianId"`
		User            *accountRef  `json:"user"`
		AssociatedUsers []accountRef `json:"associatedUsers"`
		Issue           *struct {
			Key string `json:"key"`
		} `json:"issue"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, fmt.Errorf("assign: decode event: %w", err)
	}

	ev := Event{Name: p.EventType}
	if ev.Name == "" {
		ev.Name = p.WebhookEvent
	}
	if ev.Name == "" {
		return Event{}, fmt.Errorf("assign: event type is required")
	}
	ev.Type = eventTypes[ev.Name]
	if ev.Type == "" {
		ev.Type = EventOther
	}
	if p.Issue != nil {
		ev.IssueKey = p.Issue.Key
	}
	switch {
	case p.User != nil && p.User.AccountID != "":
		ev.ActorID = p.User.AccountID
	case p.AtlassianID != "":
		ev.ActorID = p.AtlassianID
	case len(p.AssociatedUsers) > 0:
		ev.ActorID = p.AssociatedUsers[0].AccountID
	}
	if ev.Type == EventCreated && ev.IssueKey == "" {
		return Event{}, fmt.Errorf("assign: %s event has no issue key", ev.Name)
	}
	return ev, nil
}
