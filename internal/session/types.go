// Package session holds per-session conversational state in process memory.
package session

import (
	"time"

	"github.com/raphaelgruber/jarvis/internal/intent"
)

// Role identifies who produced a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role       Role         `json:"role"`
	Content    string       `json:"content"`
	Timestamp  time.Time    `json:"timestamp"`
	Intent     *intent.Type `json:"intent,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
}

// PendingConfirmation is an action awaiting an explicit yes or no.
type PendingConfirmation struct {
	Action    string            `json:"action"`
	Params    map[string]string `json:"params,omitempty"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Expired reports whether the confirmation is past its expiry.
// A zero expiry never expires.
func (p *PendingConfirmation) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Context is the state of one session.
type Context struct {
	SessionID           string               `json:"sessionId"`
	History             []Message            `json:"history"`
	PendingConfirmation *PendingConfirmation `json:"pendingConfirmation,omitempty"`
}

// LastActivity returns the timestamp of the most recent message,
// or the zero time for an empty history.
func (c *Context) LastActivity() time.Time {
	if len(c.History) == 0 {
		return time.Time{}
	}
	return c.History[len(c.History)-1].Timestamp
}

// clone returns a deep copy safe to hand out of the store.
func (c *Context) clone() Context {
	out := Context{SessionID: c.SessionID}
	if len(c.History) > 0 {
		out.History = make([]Message, len(c.History))
		copy(out.History, c.History)
	}
	if c.PendingConfirmation != nil {
		p := *c.PendingConfirmation
		if c.PendingConfirmation.Params != nil {
			p.Params = make(map[string]string, len(c.PendingConfirmation.Params))
			for k, v := range c.PendingConfirmation.Params {
				p.Params[k] = v
			}
		}
		out.PendingConfirmation = &p
	}
	return out
}
