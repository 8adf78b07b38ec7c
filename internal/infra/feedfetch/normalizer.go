package feedfetch

import (
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"threatwatch/internal/domain/entity"
	"threatwatch/internal/geo"
	"threatwatch/internal/observability/metrics"
	"threatwatch/pkg/clock"
)

// maxEntriesPerFetch caps how many raw entries one fetch yields. Feeds are
// newest-first, so the head of the document is the freshest slice.
const maxEntriesPerFetch = 5

// ClassifyFunc assigns a threat classification to a title.
type ClassifyFunc func(title string) entity.ThreatClassification

// Normalizer turns raw RSS/Atom documents into normalized news items.
// gofeed handles the format split: RSS documents carry <item> elements, Atom
// documents carry <entry> elements with href links and published/updated
// dates, and both arrive here as one item model.
type Normalizer struct {
	classify ClassifyFunc
	locator  geo.Locator
	clock    clock.Clock
}

// NewNormalizer creates a Normalizer. locator may be nil to skip geo hints;
// clk defaults to the system clock.
func NewNormalizer(classify ClassifyFunc, locator geo.Locator, clk clock.Clock) *Normalizer {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	return &Normalizer{classify: classify, locator: locator, clock: clk}
}

// Normalize parses doc and returns at most the 5 most recent entries as
// classified news items. A document-level parse error is returned as-is so
// the caller's breaker counts it like a network failure; per-item defects
// (missing or unparsable dates) never fail an item.
func (n *Normalizer) Normalize(doc string, desc entity.FeedDescriptor, activeLang string) ([]*entity.NewsItem, error) {
	feed, err := gofeed.NewParser().ParseString(doc)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", desc.Name, err)
	}

	raw := feed.Items
	if len(raw) > maxEntriesPerFetch {
		raw = raw[:maxEntriesPerFetch]
	}

	lang := desc.ItemLang(activeLang)
	items := make([]*entity.NewsItem, 0, len(raw))
	for _, it := range raw {
		item := &entity.NewsItem{
			Source:  desc.Name,
			Title:   it.Title,
			Link:    it.Link,
			PubDate: n.publishTime(it),
			Lang:    lang,
		}

		item.Threat = n.classify(it.Title)
		item.IsAlert = item.Threat.IsAlerting()
		metrics.RecordClassification(string(item.Threat.Level), string(item.Threat.Origin))

		if n.locator != nil {
			if matches := n.locator.Lookup(it.Title); len(matches) > 0 {
				m := matches[0]
				lat, lon := m.Lat, m.Lon
				item.Lat, item.Lon = &lat, &lon
				item.LocationName = m.Name
			}
		}

		items = append(items, item)
	}

	metrics.RecordItemsNormalized(desc.Name, len(items))
	return items, nil
}

// publishTime extracts the entry's publish time: published, then updated for
// Atom entries that omit it, then the current time. A bad date never fails
// the item.
func (n *Normalizer) publishTime(it *gofeed.Item) time.Time {
	if it.PublishedParsed != nil {
		return *it.PublishedParsed
	}
	if it.UpdatedParsed != nil {
		return *it.UpdatedParsed
	}
	return n.clock.Now()
}
