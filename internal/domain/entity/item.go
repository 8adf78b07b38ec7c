// Package entity defines the core domain entities for the pipeline.
// It contains the fundamental business objects such as NewsItem,
// ThreatClassification, and FeedDescriptor, along with their validation
// rules and domain-specific errors.
package entity

import "time"

// NewsItem represents a single normalized entry from a syndicated feed.
//
// Items are created by the feed normalizer and are immutable afterwards with
// one exception: Threat may be replaced by the AI dispatcher when a remote
// classification arrives with strictly greater confidence.
type NewsItem struct {
	Source       string               `json:"source"`
	Title        string               `json:"title"`
	Link         string               `json:"link"`
	PubDate      time.Time            `json:"pubDate"`
	IsAlert      bool                 `json:"isAlert"`
	Threat       ThreatClassification `json:"threat"`
	Lat          *float64             `json:"lat,omitempty"`
	Lon          *float64             `json:"lon,omitempty"`
	LocationName string               `json:"locationName,omitempty"`
	Lang         string               `json:"lang,omitempty"`
}

// ApplyThreat replaces the item's classification when the candidate carries
// strictly greater confidence. It returns true when the replacement happened.
//
// The strict inequality keeps a keyword hit with equal confidence in place,
// so a remote answer can only ever raise certainty, never churn it.
func (n *NewsItem) ApplyThreat(candidate ThreatClassification) bool {
	if candidate.Confidence <= n.Threat.Confidence {
		return false
	}
	n.Threat = candidate
	n.IsAlert = candidate.IsAlerting()
	return true
}

// FeedDescriptor describes one configured news source. It is immutable and
// supplied by external configuration.
//
// A source exposes either a single URL or a language-to-URL mapping; Lang,
// when set, tags every item produced from the source.
type FeedDescriptor struct {
	Name string            `yaml:"name" json:"name"`
	URL  string            `yaml:"url,omitempty" json:"url,omitempty"`
	URLs map[string]string `yaml:"urls,omitempty" json:"urls,omitempty"`
	Lang string            `yaml:"lang,omitempty" json:"lang,omitempty"`
}

// DefaultLang is the language assumed when a descriptor or scope carries none.
const DefaultLang = "en"

// ResolveURL returns the feed URL for the requested language. Language-mapped
// sources fall back to their default-language entry; sources with a single
// URL ignore the language entirely. An empty string means the source has no
// URL for any language and must be skipped.
func (d FeedDescriptor) ResolveURL(lang string) string {
	if len(d.URLs) > 0 {
		if u, ok := d.URLs[lang]; ok && u != "" {
			return u
		}
		if u, ok := d.URLs[DefaultLang]; ok && u != "" {
			return u
		}
		return ""
	}
	return d.URL
}

// ItemLang returns the language tag to stamp on items from this source:
// the descriptor's required tag when present, otherwise the active language.
func (d FeedDescriptor) ItemLang(active string) string {
	if d.Lang != "" {
		return d.Lang
	}
	return active
}

// Validate checks that the descriptor names a source and carries at least one
// usable URL.
func (d FeedDescriptor) Validate() error {
	if d.Name == "" {
		return &ValidationError{Field: "name", Message: "source name cannot be empty"}
	}
	if d.URL == "" && len(d.URLs) == 0 {
		return &ValidationError{Field: "url", Message: "source must declare a url or a language url map"}
	}
	return nil
}
