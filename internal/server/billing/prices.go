package billing

import (
	"fmt"

	"github.com/dmitrijs2005/fittrack/internal/server/models"
)

// PriceTable is the static mapping from billing price ids to tiers.
type PriceTable map[string]models.Tier

// NewPriceTable validates a configured price → tier mapping.
func NewPriceTable(raw map[string]string) (PriceTable, error) {
	t := make(PriceTable, len(raw))
	for price, name := range raw {
		if price == "" {
			return nil, fmt.Errorf("price table: empty price id")
		}
		tier, err := models.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("price table: price %q: %w", price, err)
		}
		t[price] = tier
	}
	return t, nil
}

// Lookup returns the tier for priceID and whether it is known.
func (t PriceTable) Lookup(priceID string) (models.Tier, bool) {
	tier, ok := t[priceID]
	return tier, ok
}
