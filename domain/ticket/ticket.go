// Package ticket models the issue tickets the pipeline turns into SQL.
package ticket

import (
	"fmt"
	"strings"
	"time"
)

// NoDescription replaces a blank ticket description in the rendered text.
const NoDescription = "No description"

// Ticket is a unit of work taken from an external tracker.
type Ticket struct {
	key         string
	summary     string
	description string
}

// New creates a Ticket.
func New(key, summary, description string) Ticket {
	return Ticket{
		key:         strings.TrimSpace(key),
		summary:     strings.TrimSpace(summary),
		description: description,
	}
}

// Key returns the tracker key, e.g. DATA-42.
func (t Ticket) Key() string { return t.key }

// Summary returns the one-line summary.
func (t Ticket) Summary() string { return t.summary }

// Description returns the free-text description.
func (t Ticket) Description() string { return t.description }

// Text renders the ticket as the pipeline input:
//
//	KEY: summary
//	Description: description
func (t Ticket) Text() string {
	desc := strings.TrimSpace(t.description)
	if desc == "" {
		desc = NoDescription
	}
	head := t.summary
	if t.key != "" {
		head = t.key + ": " + t.summary
	}
	return fmt.Sprintf("%s\nDescription: %s", head, desc)
}

// Comment is one entry of a ticket's discussion.
type Comment struct {
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Created time.Time `json:"created,omitzero"`
}

// History is the ordered discussion used as revision feedback.
type History []Comment

// NewHistory builds a History from plain feedback messages.
func NewHistory(messages ...string) History {
	h := make(History, 0, len(messages))
	for _, m := range messages {
		h = append(h, Comment{Body: m})
	}
	return h
}

// Render formats the history one comment per line. Comments without an
// author are rendered with the "user" role.
func (h History) Render() string {
	lines := make([]string, 0, len(h))
	for _, c := range h {
		body := strings.TrimSpace(c.Body)
		if body == "" {
			continue
		}
		author := strings.TrimSpace(c.Author)
		if author == "" {
			author = "user"
		}
		lines = append(lines, author+": "+body)
	}
	return strings.Join(lines, "\n")
}
