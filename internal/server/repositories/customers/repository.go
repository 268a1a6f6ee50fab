// Package customers stores the link between billing-provider customer ids
// and local users.
package customers

import "context"

type Repository interface {
	// Link records that customerID belongs to userID. Re-linking the same
	// pair is a no-op; a customer id is never moved to another user.
	// An unknown userID is common.ErrorNotFound.
	Link(ctx context.Context, customerID string, userID int64) error

	// FindUserID returns common.ErrorNotFound for an unknown customer.
	FindUserID(ctx context.Context, customerID string) (int64, error)
}
