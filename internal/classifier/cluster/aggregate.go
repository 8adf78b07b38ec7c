// Package cluster combines the classifications of items that were grouped
// into one story elsewhere into a single summary classification.
package cluster

import "threatwatch/internal/domain/entity"

// Member is one clustered item's classification plus the optional authority
// tier of its source. Tier 0 means unranked; ranked tiers start at 1 (most
// authoritative).
type Member struct {
	Threat entity.ThreatClassification
	Tier   int
}

// maxWeightedTier caps the tier used for weighting; tier 5 and beyond all
// weigh 1.
const maxWeightedTier = 5

// Aggregate derives a summary classification for a set of members.
//
// The summary level is the highest-priority member level, the category is the
// most frequent member category (ties broken by first occurrence in input
// order), and the confidence is a tier-weighted mean where tier 1 sources
// weigh 5x and unranked sources weigh 1. The result is a derived summary, so
// its origin is always reported as keyword.
func Aggregate(members []Member) entity.ThreatClassification {
	if len(members) == 0 {
		return entity.DefaultClassification()
	}

	level := entity.LevelInfo
	counts := make(map[entity.ThreatCategory]int, len(members))
	var order []entity.ThreatCategory

	var weightSum, confidenceSum float64

	for _, m := range members {
		if m.Threat.Level.Priority() > level.Priority() {
			level = m.Threat.Level
		}

		if counts[m.Threat.Category] == 0 {
			order = append(order, m.Threat.Category)
		}
		counts[m.Threat.Category]++

		w := memberWeight(m)
		weightSum += w
		confidenceSum += m.Threat.Confidence * w
	}

	category := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[category] {
			category = c
		}
	}

	confidence := 0.5
	if weightSum > 0 {
		confidence = confidenceSum / weightSum
	}

	return entity.ThreatClassification{
		Level:      level,
		Category:   category,
		Confidence: confidence,
		Origin:     entity.OriginKeyword,
	}
}

// memberWeight returns 6 - min(tier, 5) for ranked members and 1 for
// unranked ones, so tier 1 weighs 5 and tier 5+ weighs 1.
func memberWeight(m Member) float64 {
	if m.Tier <= 0 {
		return 1
	}
	tier := m.Tier
	if tier > maxWeightedTier {
		tier = maxWeightedTier
	}
	return float64(6 - tier)
}
