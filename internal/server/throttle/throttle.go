// Package throttle implements the per-identifier fixed-window login throttle.
//
// The first attempt for an identifier opens a window and is allowed. Each
// further attempt inside the window increments the counter and is allowed
// while the counter is at most MaxAttempts. When the window elapses the next
// attempt opens a new one. Clear drops the entry after a successful login.
//
// MemoryThrottle bounds attempts per process only. Deployments running more
// than one instance must use RedisThrottle so the bound is global.
package throttle

import (
	"context"
	"strings"
	"time"
)

// Throttle is consulted before any credential lookup.
type Throttle interface {
	// Allow records an attempt for identifier and reports whether it may proceed.
	Allow(ctx context.Context, identifier string) (bool, error)
	// Clear forgets identifier; the next attempt opens a fresh window.
	Clear(ctx context.Context, identifier string) error
}

// Policy is the throttle configuration shared by the implementations.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultPolicy allows 5 attempts per 15 minutes.
var DefaultPolicy = Policy{MaxAttempts: 5, Window: 15 * time.Minute}

// Normalize maps a submitted login identifier to its throttle key.
func Normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
