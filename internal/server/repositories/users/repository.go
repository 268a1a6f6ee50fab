// Package users is the credential store: account lookup by login or id,
// account creation, and the tier column the billing reconciler writes.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin matches identifier against username or email, case-insensitively.
	GetUserByLogin(ctx context.Context, identifier string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// SetTier writes tier in a single conditional statement. It reports false
	// when the user is missing or a newer event has already been applied.
	SetTier(ctx context.Context, id int64, tier models.Tier, eventAt time.Time) (bool, error)
}
