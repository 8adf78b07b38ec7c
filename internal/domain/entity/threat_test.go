package entity_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatwatch/internal/domain/entity"
)

func TestThreatLevelPriorityOrder(t *testing.T) {
	ordered := []entity.ThreatLevel{
		entity.LevelInfo,
		entity.LevelLow,
		entity.LevelMedium,
		entity.LevelHigh,
		entity.LevelCritical,
	}

	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Priority(), ordered[i-1].Priority(),
			"%s must outrank %s", ordered[i], ordered[i-1])
	}

	assert.Equal(t, -1, entity.ThreatLevel("bogus").Priority())
	assert.False(t, entity.ThreatLevel("bogus").Valid())
}

func TestParseThreatLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want entity.ThreatLevel
	}{
		{"critical", entity.LevelCritical},
		{"SEVERE", entity.LevelCritical},
		{" Elevated ", entity.LevelHigh},
		{"moderate", entity.LevelMedium},
		{"guarded", entity.LevelLow},
		{"minimal", entity.LevelInfo},
	}

	for _, tt := range tests {
		got, err := entity.ParseThreatLevel(tt.raw)
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
	}

	_, err := entity.ParseThreatLevel("defcon 9000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUnknownLevel))
}

func TestParseThreatCategoryClosedSet(t *testing.T) {
	assert.Equal(t, entity.CategoryCyber, entity.ParseThreatCategory(" Cyber "))
	assert.Equal(t, entity.CategoryGeneral, entity.ParseThreatCategory("celebrity gossip"))
}

func TestApplyThreatGuard(t *testing.T) {
	item := &entity.NewsItem{
		Title: "Pipeline operator reports outage",
		Threat: entity.ThreatClassification{
			Level:      entity.LevelMedium,
			Category:   entity.CategoryInfrastructure,
			Confidence: 0.7,
			Origin:     entity.OriginKeyword,
		},
	}

	// Equal confidence must not replace.
	applied := item.ApplyThreat(entity.ThreatClassification{
		Level: entity.LevelHigh, Category: entity.CategoryCyber,
		Confidence: 0.7, Origin: entity.OriginLLM,
	})
	assert.False(t, applied)
	assert.Equal(t, entity.OriginKeyword, item.Threat.Origin)

	// Strictly greater confidence replaces and refreshes the alert flag.
	applied = item.ApplyThreat(entity.ThreatClassification{
		Level: entity.LevelHigh, Category: entity.CategoryCyber,
		Confidence: 0.85, Origin: entity.OriginLLM,
	})
	assert.True(t, applied)
	assert.Equal(t, entity.OriginLLM, item.Threat.Origin)
	assert.True(t, item.IsAlert)
}

func TestFeedDescriptorResolveURL(t *testing.T) {
	single := entity.FeedDescriptor{Name: "wire", URL: "https://wire.example/rss"}
	assert.Equal(t, "https://wire.example/rss", single.ResolveURL("de"))

	mapped := entity.FeedDescriptor{
		Name: "multilang",
		URLs: map[string]string{
			"en": "https://m.example/en.xml",
			"de": "https://m.example/de.xml",
		},
	}
	assert.Equal(t, "https://m.example/de.xml", mapped.ResolveURL("de"))
	// Unknown language falls back to the default-language entry.
	assert.Equal(t, "https://m.example/en.xml", mapped.ResolveURL("fr"))

	noDefault := entity.FeedDescriptor{Name: "odd", URLs: map[string]string{"ja": "https://o.example/ja.xml"}}
	assert.Equal(t, "", noDefault.ResolveURL("fr"))
}

func TestFeedDescriptorItemLang(t *testing.T) {
	tagged := entity.FeedDescriptor{Name: "dw", URL: "https://dw.example/rss", Lang: "de"}
	assert.Equal(t, "de", tagged.ItemLang("en"))

	plain := entity.FeedDescriptor{Name: "ap", URL: "https://ap.example/rss"}
	assert.Equal(t, "en", plain.ItemLang("en"))
}

func TestFeedDescriptorValidate(t *testing.T) {
	assert.Error(t, entity.FeedDescriptor{URL: "https://x.example"}.Validate())
	assert.Error(t, entity.FeedDescriptor{Name: "x"}.Validate())
	assert.NoError(t, entity.FeedDescriptor{Name: "x", URL: "https://x.example"}.Validate())
}
