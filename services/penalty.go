package services

import (
	"sort"

	"poker-league-system/models"
)

// PenaltyTier mirrors one row of the dynamic penalty table.
type PenaltyTier struct {
	FromRecaves float64
	Points      int
}

// PenaltyRules is the season's penalty configuration resolved into a single
// variant: Dynamic wins when non-empty, otherwise the three legacy tiers
// apply in ascending bands above FreeRebuys.
type PenaltyRules struct {
	FreeRebuys int
	Dynamic    []PenaltyTier
	Tier1      int
	Tier2      int
	Tier3      int
}

// ResolvePenaltyRules builds PenaltyRules from a loaded season. Resolved once
// per season load so the resolver itself stays a pure function of
// (count, rules).
func ResolvePenaltyRules(season *models.Season) PenaltyRules {
	rules := PenaltyRules{
		FreeRebuys: season.FreeRebuysCount,
		Tier1:      season.RebuyPenaltyTier1,
		Tier2:      season.RebuyPenaltyTier2,
		Tier3:      season.RebuyPenaltyTier3,
	}
	for _, tier := range season.PenaltyTiers {
		rules.Dynamic = append(rules.Dynamic, PenaltyTier{
			FromRecaves: tier.FromRecaves,
			Points:      tier.Points,
		})
	}
	sort.Slice(rules.Dynamic, func(i, j int) bool {
		return rules.Dynamic[i].FromRecaves < rules.Dynamic[j].FromRecaves
	})
	return rules
}

// EffectiveRebuyCount is the penalty basis: full rebuys plus half a unit for
// a used light rebuy.
func EffectiveRebuyCount(rebuys int, lightRebuyUsed bool) float64 {
	count := float64(rebuys)
	if lightRebuyUsed {
		count += 0.5
	}
	return count
}

// PenaltyFor returns the non-positive penalty for an effective rebuy count.
func PenaltyFor(rules PenaltyRules, count float64) int {
	if count <= float64(rules.FreeRebuys) {
		return 0
	}

	if len(rules.Dynamic) > 0 {
		penalty := 0
		for _, tier := range rules.Dynamic {
			if tier.FromRecaves <= count {
				penalty = tier.Points
			}
		}
		return penalty
	}

	// Legacy bands: two counts per tier above the free allowance, tier3 open.
	free := float64(rules.FreeRebuys)
	switch {
	case count <= free+2:
		return rules.Tier1
	case count <= free+4:
		return rules.Tier2
	default:
		return rules.Tier3
	}
}
