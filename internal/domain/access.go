// Package domain contains core domain types for the deskbridge application.
package domain

import (
	"time"
)

// AccessRequest is one inbound request for an access code. Pure data
// capture: the approval and email flow happens outside this service.
type AccessRequest struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	UseCase   string    `json:"use_case"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessCode records a code issued against an approved request. Codes are
// opaque bearer tokens; the relay never validates them, the record exists
// for the operator's bookkeeping.
type AccessCode struct {
	Code      string     `json:"code"`
	Email     string     `json:"email"`
	IssuedAt  time.Time  `json:"issued_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the code has not been revoked.
func (c *AccessCode) Active() bool {
	return c.RevokedAt == nil
}
