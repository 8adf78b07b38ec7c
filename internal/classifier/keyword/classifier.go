// Package keyword implements the deterministic keyword threat classifier.
//
// Classification is a pure function of the title: an exclusion scan followed
// by a fixed-order cascade of phrase tiers (critical, high, medium, low, with
// additive variant tiers interleaved). Phrase scanning uses an Aho-Corasick
// automaton per tier so a title is walked once per tier regardless of table
// size.
package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"threatwatch/internal/domain/entity"
)

// Variant selects which additive escalation tiers are consulted.
type Variant string

// Known product variants.
const (
	VariantDefault Variant = "default"
	VariantTech    Variant = "tech"
)

// ParseVariant normalizes a raw variant string, defaulting to VariantDefault.
func ParseVariant(raw string) Variant {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case VariantTech:
		return VariantTech
	default:
		return VariantDefault
	}
}

// compiledTier pairs a tier table with its compiled matcher.
type compiledTier struct {
	table   tierTable
	matcher *ahocorasick.Matcher
}

// Classifier classifies titles into threat classifications. It is immutable
// after construction and safe for concurrent use.
type Classifier struct {
	variant    Variant
	exclusions *ahocorasick.Matcher
	tiers      []compiledTier
}

// New builds a classifier for the given product variant. Variant tiers that
// do not belong to the variant are dropped at construction, so the cascade
// walked at classify time contains only live tiers.
func New(variant Variant) *Classifier {
	c := &Classifier{
		variant:    variant,
		exclusions: ahocorasick.NewStringMatcher(exclusionPhrases),
	}

	for _, table := range defaultTiers {
		if table.variant != "" && table.variant != variant {
			continue
		}
		patterns := make([]string, len(table.phrases))
		for i, p := range table.phrases {
			patterns[i] = p.text
		}
		c.tiers = append(c.tiers, compiledTier{
			table:   table,
			matcher: ahocorasick.NewStringMatcher(patterns),
		})
	}

	return c
}

// Classify returns the threat classification for a title. It never fails:
// excluded or unmatched titles yield the default info/general classification.
func (c *Classifier) Classify(title string) entity.ThreatClassification {
	lower := strings.ToLower(title)

	// Exclusions dominate everything else.
	if len(c.exclusions.Match([]byte(lower))) > 0 {
		return entity.DefaultClassification()
	}

	for _, tier := range c.tiers {
		if p, ok := firstHit(tier, lower); ok {
			return entity.ThreatClassification{
				Level:      tier.table.level,
				Category:   p.category,
				Confidence: tier.table.confidence,
				Origin:     entity.OriginKeyword,
			}
		}
	}

	return entity.DefaultClassification()
}

// firstHit returns the first phrase in table order that matches the title.
// Boundary-listed tokens additionally require a whole-word occurrence.
func firstHit(tier compiledTier, lower string) (phrase, bool) {
	hits := tier.matcher.Match([]byte(lower))
	best := -1
	for _, idx := range hits {
		p := tier.table.phrases[idx]
		if _, short := boundaryTokens[p.text]; short && !containsWord(lower, p.text) {
			continue
		}
		if best == -1 || idx < best {
			best = idx
		}
	}
	if best == -1 {
		return phrase{}, false
	}
	return tier.table.phrases[best], true
}

// containsWord reports whether token occurs in text delimited by non-letter,
// non-digit runes on both sides.
func containsWord(text, token string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], token)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(token)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		leftOK := start == 0 || !isWordRune(before)
		rightOK := end == len(text) || !isWordRune(after)
		if leftOK && rightOK {
			return true
		}
		from = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
