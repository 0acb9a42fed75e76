// Package presence holds the agent status vocabulary, the mapping from
// directory presence signals into it, and the per-agent presence records.
package presence

import "strings"

// Status is an agent's presence as seen by the assignment engine.
type Status string

// Status values are stored verbatim, so they match the labels agents pick.
const (
	Available    Status = "Available"
	Busy         Status = "Busy"
	InAMeeting   Status = "In a meeting"
	DoNotDisturb Status = "Do not disturb"
	Away         Status = "Away"
	BeRightBack  Status = "Be right back"
	OffWork      Status = "Off Work (out of office)"
)

// All lists every status in display order.
var All = []Status{Available, Busy, InAMeeting, DoNotDisturb, Away, BeRightBack, OffWork}

// ParseStatus accepts a stored label or a compact name such as "InAMeeting"
// or "offwork", case-insensitively.
func ParseStatus(s string) (Status, bool) {
	key := compact(s)
	if key == "" {
		return "", false
	}
	for _, st := range All {
		if compact(string(st)) == key {
			return st, true
		}
	}
	switch key {
	case "inameeting", "meeting":
		return InAMeeting, true
	case "dnd":
		return DoNotDisturb, true
	case "brb":
		return BeRightBack, true
	case "offwork", "offline":
		return OffWork, true
	}
	return "", false
}

// OrDefault returns s when it is a known status and Available otherwise.
func (s Status) OrDefault() Status {
	if st, ok := ParseStatus(string(s)); ok {
		return st
	}
	return Available
}

// compact lower-cases s and drops everything but letters, so
// "Off Work (out of office)" becomes "offworkoutofoffice".
func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
