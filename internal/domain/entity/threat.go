package entity

import (
	"fmt"
	"strings"
)

// ThreatLevel represents the severity assigned to a news item.
// Levels form a total order: critical > high > medium > low > info.
type ThreatLevel string

// Known threat levels.
const (
	LevelCritical ThreatLevel = "critical"
	LevelHigh     ThreatLevel = "high"
	LevelMedium   ThreatLevel = "medium"
	LevelLow      ThreatLevel = "low"
	LevelInfo     ThreatLevel = "info"
)

// levelPriority maps each level to its numeric severity priority.
// Higher means more severe.
var levelPriority = map[ThreatLevel]int{
	LevelCritical: 4,
	LevelHigh:     3,
	LevelMedium:   2,
	LevelLow:      1,
	LevelInfo:     0,
}

// Priority returns the numeric severity priority of the level.
// Unknown levels rank below info.
func (l ThreatLevel) Priority() int {
	if p, ok := levelPriority[l]; ok {
		return p
	}
	return -1
}

// Valid reports whether the level is one of the five known levels.
func (l ThreatLevel) Valid() bool {
	_, ok := levelPriority[l]
	return ok
}

// levelAliases maps raw severity strings seen in remote classifier responses
// to the canonical levels. Remote models are not consistent about wording, so
// a handful of synonyms per level are accepted.
var levelAliases = map[string]ThreatLevel{
	"critical": LevelCritical,
	"severe":   LevelCritical,
	"extreme":  LevelCritical,
	"high":     LevelHigh,
	"elevated": LevelHigh,
	"major":    LevelHigh,
	"medium":   LevelMedium,
	"moderate": LevelMedium,
	"low":      LevelLow,
	"guarded":  LevelLow,
	"minor":    LevelLow,
	"info":     LevelInfo,
	"minimal":  LevelInfo,
	"none":     LevelInfo,
}

// ParseThreatLevel maps a raw severity string onto one of the five known
// levels. It returns ErrUnknownLevel when the string cannot be mapped; callers
// must treat that as "no classification available" rather than a failure.
func ParseThreatLevel(raw string) (ThreatLevel, error) {
	if l, ok := levelAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, raw)
}

// ThreatCategory is the closed domain the classification belongs to.
type ThreatCategory string

// Known threat categories.
const (
	CategoryConflict       ThreatCategory = "conflict"
	CategoryMilitary       ThreatCategory = "military"
	CategoryCyber          ThreatCategory = "cyber"
	CategoryEconomic       ThreatCategory = "economic"
	CategoryHealth         ThreatCategory = "health"
	CategoryInfrastructure ThreatCategory = "infrastructure"
	CategoryTech           ThreatCategory = "tech"
	CategoryProtest        ThreatCategory = "protest"
	CategoryDiplomatic     ThreatCategory = "diplomatic"
	CategoryEnvironmental  ThreatCategory = "environmental"
	CategoryCrime          ThreatCategory = "crime"
	CategoryTerrorism      ThreatCategory = "terrorism"
	CategoryGeneral        ThreatCategory = "general"
)

var knownCategories = map[ThreatCategory]struct{}{
	CategoryConflict: {}, CategoryMilitary: {}, CategoryCyber: {},
	CategoryEconomic: {}, CategoryHealth: {}, CategoryInfrastructure: {},
	CategoryTech: {}, CategoryProtest: {}, CategoryDiplomatic: {},
	CategoryEnvironmental: {}, CategoryCrime: {}, CategoryTerrorism: {},
	CategoryGeneral: {},
}

// ParseThreatCategory normalizes a raw category string. Strings outside the
// closed category set collapse to general.
func ParseThreatCategory(raw string) ThreatCategory {
	c := ThreatCategory(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownCategories[c]; ok {
		return c
	}
	return CategoryGeneral
}

// ClassificationOrigin identifies which classifier produced a classification.
type ClassificationOrigin string

// Known classification origins.
const (
	OriginKeyword ClassificationOrigin = "keyword"
	OriginML      ClassificationOrigin = "ml"
	OriginLLM     ClassificationOrigin = "llm"
)

// ThreatClassification is the severity/category judgment attached to a news
// item. It is a value type: consumers replace it wholesale, never merge.
type ThreatClassification struct {
	Level      ThreatLevel          `json:"level"`
	Category   ThreatCategory       `json:"category"`
	Confidence float64              `json:"confidence"`
	Origin     ClassificationOrigin `json:"origin"`
}

// DefaultClassification returns the neutral classification used when nothing
// matches, when input is excluded, or when an aggregate has no members.
func DefaultClassification() ThreatClassification {
	return ThreatClassification{
		Level:      LevelInfo,
		Category:   CategoryGeneral,
		Confidence: 0.3,
		Origin:     OriginKeyword,
	}
}

// IsAlerting reports whether the classification's level should raise the
// item's alert flag.
func (c ThreatClassification) IsAlerting() bool {
	return c.Level == LevelCritical || c.Level == LevelHigh
}

// String returns a compact human-readable form, useful in logs.
func (c ThreatClassification) String() string {
	return fmt.Sprintf("%s/%s %.2f (%s)", c.Level, c.Category, c.Confidence, c.Origin)
}
