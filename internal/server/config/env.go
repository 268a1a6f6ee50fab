package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays FITTRACK_* variables onto config. Unset variables leave
// the current value alone. PriceTiers uses the "price_a:premium,price_b:ad_free"
// format.
func parseEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	return nil
}
