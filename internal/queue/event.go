// Package queue defines the security events exchanged over the message
// broker and the consumer that records them.
package queue

import "time"

// AccountEventType names what happened to an account's credentials.
type AccountEventType string

const (
	EventPasswordChanged AccountEventType = "password_changed"
	EventWithdrawn       AccountEventType = "withdrawn"
	EventLoggedOut       AccountEventType = "logged_out"
)

// AccountEventsQueue is the durable queue the events are routed to.
const AccountEventsQueue = "account.security"

// AccountEvent is published after a credential change has been committed.
// Every event implies the account's stored refresh token was cleared.
type AccountEvent struct {
	Type       AccountEventType `json:"type"`
	AccountID  string           `json:"account_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}
