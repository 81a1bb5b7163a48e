// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/vkotlar/deskbridge/internal/domain"
)

// Repository defines the interface for persisting access requests and
// issued access codes.
type Repository interface {
	// SaveAccessRequest persists one inbound access request.
	SaveAccessRequest(ctx context.Context, req *domain.AccessRequest) error

	// ListAccessRequests returns the most recent access requests,
	// newest first, up to limit.
	ListAccessRequests(ctx context.Context, limit int) ([]*domain.AccessRequest, error)

	// IssueAccessCode records a code issued for an email address.
	IssueAccessCode(ctx context.Context, code *domain.AccessCode) error

	// RevokeAccessCode marks a code as revoked. Revoking an unknown code
	// is an error.
	RevokeAccessCode(ctx context.Context, code string) error

	// GetAccessCode retrieves an issued code record, or nil if unknown.
	GetAccessCode(ctx context.Context, code string) (*domain.AccessCode, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
