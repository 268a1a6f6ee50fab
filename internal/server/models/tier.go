package models

import "fmt"

// Tier is the membership level controlling feature access.
type Tier string

const (
	TierFree        Tier = "free"
	TierAdFree      Tier = "ad_free"
	TierPremium     Tier = "premium"
	TierPremiumBeta Tier = "premium_beta"
)

// BaseTier is what a user falls back to when no paid subscription is active.
const BaseTier = TierFree

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierAdFree, TierPremium, TierPremiumBeta:
		return true
	}
	return false
}

// Paid reports whether t requires an active subscription.
func (t Tier) Paid() bool {
	return t.Valid() && t != BaseTier
}

// ParseTier converts a stored or configured value into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}
