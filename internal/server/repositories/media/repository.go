// Package media reads the private media records needed for listing and
// ownership checks. Uploading and thumbnailing live elsewhere.
package media

import (
	"context"

	"github.com/dmitrijs2005/fittrack/internal/server/models"
)

type Repository interface {
	ListByUser(ctx context.Context, userID int64) ([]*models.Media, error)
	GetByID(ctx context.Context, id int64) (*models.Media, error)
}
