package models

import (
	"fmt"
	"math"
)

// TierBand assigns Tier to every percentage below Upper, or equal to it when
// IncludeUpper is set.
type TierBand struct {
	Tier         Tier
	Upper        float64
	IncludeUpper bool
}

func (b TierBand) contains(pct float64) bool {
	return pct < b.Upper || (b.IncludeUpper && pct == b.Upper)
}

// TierPolicy partitions the real line plus +Inf into growth tiers. Bands are
// checked in order, so their upper bounds must be strictly increasing and the
// last band must close at +Inf inclusive.
type TierPolicy struct {
	Name  string
	Bands []TierBand
}

// Classify returns the tier of the first band containing pct.
func (p TierPolicy) Classify(pct float64) Tier {
	for _, b := range p.Bands {
		if b.contains(pct) {
			return b.Tier
		}
	}
	// NaN matches no band; only reachable with a hand-built policy or NaN input.
	return p.Bands[len(p.Bands)-1].Tier
}

// Validate checks that the bands form a total, non-overlapping partition.
func (p TierPolicy) Validate() error {
	if len(p.Bands) == 0 {
		return fmt.Errorf("tier policy %q has no bands", p.Name)
	}
	for i := 1; i < len(p.Bands); i++ {
		if !(p.Bands[i].Upper > p.Bands[i-1].Upper) {
			return fmt.Errorf("tier policy %q: band %d upper bound %v is not above %v",
				p.Name, i, p.Bands[i].Upper, p.Bands[i-1].Upper)
		}
	}
	last := p.Bands[len(p.Bands)-1]
	if !math.IsInf(last.Upper, 1) || !last.IncludeUpper {
		return fmt.Errorf("tier policy %q: last band must include +Inf", p.Name)
	}
	return nil
}

// CanonicalTierPolicy: < 0 costante, [0, low] bassa, (low, medium] media,
// above medium (and +Inf) alta.
func CanonicalTierPolicy(low, medium float64) TierPolicy {
	return TierPolicy{
		Name: "canonical",
		Bands: []TierBand{
			{Tier: TierCostante, Upper: 0},
			{Tier: TierBassa, Upper: low, IncludeUpper: true},
			{Tier: TierMedia, Upper: medium, IncludeUpper: true},
			{Tier: TierAlta, Upper: math.Inf(1), IncludeUpper: true},
		},
	}
}

// SwappedTierPolicy is the variant where negative growth is bassa and
// low-positive growth is costante.
func SwappedTierPolicy(low, medium float64) TierPolicy {
	return TierPolicy{
		Name: "swapped",
		Bands: []TierBand{
			{Tier: TierBassa, Upper: 0},
			{Tier: TierCostante, Upper: low, IncludeUpper: true},
			{Tier: TierMedia, Upper: medium, IncludeUpper: true},
			{Tier: TierAlta, Upper: math.Inf(1), IncludeUpper: true},
		},
	}
}
