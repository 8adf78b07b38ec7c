package keyword

import "threatwatch/internal/domain/entity"

// phrase binds one keyword phrase to the category it implies.
type phrase struct {
	text     string
	category entity.ThreatCategory
}

// tierTable is one ordered phrase table in the cascade. Within a tier the
// first phrase (in table order) whose text matches the title wins.
type tierTable struct {
	name       string
	level      entity.ThreatLevel
	confidence float64
	variant    Variant // zero value: consulted for every variant
	phrases    []phrase
}

// exclusionPhrases short-circuit classification: lifestyle and entertainment
// headlines routinely reuse alarming vocabulary ("war of words", "chart
// invasion") and must never page anyone.
var exclusionPhrases = []string{
	"celebrity",
	"royal wedding",
	"box office",
	"red carpet",
	"film review",
	"movie premiere",
	"music video",
	"album release",
	"fashion week",
	"recipe",
	"horoscope",
	"lottery",
	"gossip",
	"tv series",
	"talent show",
	"football transfer",
	"championship",
	"olympic",
	"grammy",
	"oscars",
}

// boundaryTokens are short or ambiguous tokens that require word-boundary
// matching. Everything else matches by plain substring; applying boundary
// matching uniformly would change outcomes for compound phrases, so the
// allowlist is deliberate, not an oversight.
var boundaryTokens = map[string]struct{}{
	"war":  {},
	"ban":  {},
	"gdp":  {},
	"coup": {},
	"riot": {},
	"icbm": {},
	"spy":  {},
	"oil":  {},
	"chip": {},
}

// defaultTiers is the global cascade, checked strictly in order. Variant
// tiers are additive and sit between the global tiers they escalate.
var defaultTiers = []tierTable{
	{
		name:       "critical",
		level:      entity.LevelCritical,
		confidence: 0.9,
		phrases: []phrase{
			{"nuclear attack", entity.CategoryMilitary},
			{"nuclear strike", entity.CategoryMilitary},
			{"nuclear war", entity.CategoryConflict},
			{"martial law", entity.CategoryMilitary},
			{"declaration of war", entity.CategoryConflict},
			{"world war", entity.CategoryConflict},
			{"missile strike", entity.CategoryMilitary},
			{"chemical weapons", entity.CategoryMilitary},
			{"biological weapon", entity.CategoryMilitary},
			{"dirty bomb", entity.CategoryTerrorism},
			{"terrorist attack", entity.CategoryTerrorism},
			{"suicide bombing", entity.CategoryTerrorism},
			{"mass casualties", entity.CategoryConflict},
			{"reactor meltdown", entity.CategoryInfrastructure},
			{"icbm", entity.CategoryMilitary},
			{"state of emergency", entity.CategoryInfrastructure},
		},
	},
	{
		name:       "high",
		level:      entity.LevelHigh,
		confidence: 0.8,
		phrases: []phrase{
			{"war", entity.CategoryConflict},
			{"coup", entity.CategoryMilitary},
			{"invasion", entity.CategoryConflict},
			{"airstrike", entity.CategoryMilitary},
			{"artillery", entity.CategoryMilitary},
			{"mobilization", entity.CategoryMilitary},
			{"insurgent", entity.CategoryConflict},
			{"cyberattack", entity.CategoryCyber},
			{"ransomware", entity.CategoryCyber},
			{"data breach", entity.CategoryCyber},
			{"assassination", entity.CategoryCrime},
			{"hostage", entity.CategoryTerrorism},
			{"bombing", entity.CategoryTerrorism},
			{"mass shooting", entity.CategoryCrime},
			{"uprising", entity.CategoryProtest},
			{"riot", entity.CategoryProtest},
			{"market crash", entity.CategoryEconomic},
			{"earthquake", entity.CategoryEnvironmental},
			{"tsunami", entity.CategoryEnvironmental},
			{"outbreak", entity.CategoryHealth},
			{"epidemic", entity.CategoryHealth},
			{"grid failure", entity.CategoryInfrastructure},
			{"blackout", entity.CategoryInfrastructure},
		},
	},
	{
		name:       "tech-high",
		level:      entity.LevelHigh,
		confidence: 0.75,
		variant:    VariantTech,
		phrases: []phrase{
			{"zero-day", entity.CategoryCyber},
			{"supply chain attack", entity.CategoryCyber},
			{"chip ban", entity.CategoryTech},
			{"export controls", entity.CategoryTech},
			{"mass layoffs", entity.CategoryTech},
			{"cloud outage", entity.CategoryTech},
		},
	},
	{
		name:       "medium",
		level:      entity.LevelMedium,
		confidence: 0.7,
		phrases: []phrase{
			{"protest", entity.CategoryProtest},
			{"border clash", entity.CategoryConflict},
			{"troop", entity.CategoryMilitary},
			{"sanctions", entity.CategoryEconomic},
			{"inflation", entity.CategoryEconomic},
			{"recession", entity.CategoryEconomic},
			{"malware", entity.CategoryCyber},
			{"phishing", entity.CategoryCyber},
			{"espionage", entity.CategoryDiplomatic},
			{"spy", entity.CategoryDiplomatic},
			{"quarantine", entity.CategoryHealth},
			{"virus", entity.CategoryHealth},
			{"wildfire", entity.CategoryEnvironmental},
			{"drought", entity.CategoryEnvironmental},
			{"flooding", entity.CategoryEnvironmental},
			{"derailment", entity.CategoryInfrastructure},
			{"pipeline leak", entity.CategoryInfrastructure},
			{"smuggling", entity.CategoryCrime},
		},
	},
	{
		name:       "tech-medium",
		level:      entity.LevelMedium,
		confidence: 0.65,
		variant:    VariantTech,
		phrases: []phrase{
			{"antitrust", entity.CategoryTech},
			{"semiconductor", entity.CategoryTech},
			{"data center", entity.CategoryTech},
			{"ai regulation", entity.CategoryTech},
			{"privacy fine", entity.CategoryTech},
		},
	},
	{
		name:       "low",
		level:      entity.LevelLow,
		confidence: 0.6,
		phrases: []phrase{
			{"election", entity.CategoryDiplomatic},
			{"summit", entity.CategoryDiplomatic},
			{"negotiations", entity.CategoryDiplomatic},
			{"ceasefire", entity.CategoryDiplomatic},
			{"ban", entity.CategoryDiplomatic},
			{"gdp", entity.CategoryEconomic},
			{"tariff", entity.CategoryEconomic},
			{"layoffs", entity.CategoryEconomic},
			{"oil", entity.CategoryEconomic},
			{"heatwave", entity.CategoryEnvironmental},
			{"corruption", entity.CategoryCrime},
			{"vaccination", entity.CategoryHealth},
		},
	},
	{
		name:       "tech-low",
		level:      entity.LevelLow,
		confidence: 0.55,
		variant:    VariantTech,
		phrases: []phrase{
			{"chip", entity.CategoryTech},
			{"open source", entity.CategoryTech},
			{"patent dispute", entity.CategoryTech},
			{"ipo filing", entity.CategoryTech},
		},
	},
}
