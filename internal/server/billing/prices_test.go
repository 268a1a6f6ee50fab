package billing

import (
	"testing"

	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPriceTable(t *testing.T) {
	table, err := NewPriceTable(map[string]string{
		"price_adfree":  "ad_free",
		"price_premium": "premium",
		"price_beta":    "premium_beta",
	})
	require.NoError(t, err)

	tier, ok := table.Lookup("price_premium")
	assert.True(t, ok)
	assert.Equal(t, models.TierPremium, tier)

	_, ok = table.Lookup("price_unknown")
	assert.False(t, ok)
}

func TestNewPriceTable_Rejects(t *testing.T) {
	_, err := NewPriceTable(map[string]string{"price_x": "gold"})
	assert.ErrorContains(t, err, `price "price_x"`)

	_, err = NewPriceTable(map[string]string{"": "premium"})
	assert.ErrorContains(t, err, "empty price id")
}
