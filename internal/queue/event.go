// Package queue defines the auth audit events exchanged over RabbitMQ and the
// publisher/consumer pair that moves them.
package queue

import "time"

// Event types.
const (
	EventUserRegistered = "user.registered"
	EventSessionCreated = "session.created"
	EventSessionReused  = "session.reused"
	EventSessionRotated = "session.rotated"
	EventSessionEnded   = "session.ended"
	EventRoleGranted    = "role.granted"
)

// AuthEvent is published on every registration and session transition.  It
// never carries token values or password material.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(typ, userID string) AuthEvent {
	return AuthEvent{Type: typ, UserID: userID, OccurredAt: time.Now().UTC()}
}
