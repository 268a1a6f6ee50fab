package models

import "time"

// BillingCustomer links the billing provider's customer id to a local user.
type BillingCustomer struct {
	CustomerID string
	UserID     int64
	CreatedAt  time.Time
}

// BillingEvent records a webhook delivery that has been handled, so that
// redeliveries of the same event id are recognised.
type BillingEvent struct {
	EventID     string
	EventType   string
	ProcessedAt time.Time
}
