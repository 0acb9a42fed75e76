// Package notify announces committed assignments to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// Notice describes one committed assignment.
type Notice struct {
	IssueKey  string
	Summary   string
	AccountID string
	// DisplayName is empty when the agent's name was not looked up.
	DisplayName string
	RuleID      string
	// Source is "rule" or "exception".
	Source string
	// IssueURL links to the item when the ticketing base URL is known.
	IssueURL string
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []Notifier

// Notify delivers n to each notifier in order.
func (m Multi) Notify(ctx context.Context, n Notice) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Text renders the notice as a single chat line.
func Text(n Notice) string {
	who := n.DisplayName
	if who == "" {
		who = n.AccountID
	}
	key := n.IssueKey
	if n.IssueURL != "" {
		key = fmt.Sprintf("%s (%s)", n.IssueKey, n.IssueURL)
	}
	msg := fmt.Sprintf("%s assigned to %s", key, who)
	if n.Summary != "" {
		msg += ": " + n.Summary
	}
	if n.Source == "exception" {
		msg += " [exception]"
	}
	return msg
}
