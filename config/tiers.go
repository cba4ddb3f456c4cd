package config

import (
	"fmt"

	"teleassist-clustering/models"
)

const (
	SchemeCanonical = "canonical"
	SchemeSwapped   = "swapped"
)

// TierPolicy builds the growth classification policy selected by TIER_SCHEME.
func (c *Config) TierPolicy() (models.TierPolicy, error) {
	var p models.TierPolicy
	switch c.TierScheme {
	case SchemeCanonical:
		p = models.CanonicalTierPolicy(c.TierLowMax, c.TierMediumMax)
	case SchemeSwapped:
		p = models.SwappedTierPolicy(c.TierLowMax, c.TierMediumMax)
	default:
		return p, fmt.Errorf("unknown TIER_SCHEME %q (want %q or %q)", c.TierScheme, SchemeCanonical, SchemeSwapped)
	}
	if c.TierLowMax < 0 {
		return p, fmt.Errorf("TIER_LOW_MAX must not be negative, got %v", c.TierLowMax)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
