// Package common contains shared constants and sentinel errors used across
// fittrack server components.
package common

const (
	// AuthorizationHeaderName carries the session token on HTTP requests and
	// in gRPC metadata, as "Bearer <token>".
	AuthorizationHeaderName = "authorization"

	// BearerPrefix precedes the session token in AuthorizationHeaderName.
	BearerPrefix = "Bearer "

	// MediaTokenQueryParam is the query parameter holding a media access token.
	// It is a query parameter because media URLs are embedded in plain <img> tags.
	MediaTokenQueryParam = "token"

	// BillingSignatureHeaderName is the header the billing provider signs webhooks with.
	BillingSignatureHeaderName = "Stripe-Signature"
)
