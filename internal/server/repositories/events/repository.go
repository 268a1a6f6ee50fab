// Package events records processed billing webhook deliveries for
// duplicate suppression.
package events

import "context"

type Repository interface {
	// MarkProcessed inserts eventID and reports whether it was new. A false
	// result means the event was handled before.
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}
