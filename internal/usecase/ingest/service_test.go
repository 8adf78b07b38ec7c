package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatwatch/internal/classifier/keyword"
	"threatwatch/internal/domain/entity"
	"threatwatch/internal/infra/aiclassify"
	"threatwatch/internal/infra/feedfetch"
	"threatwatch/internal/resilience/feedcache"
)

func rssDoc(titles ...string) string {
	doc := `<?xml version="1.0"?><rss version="2.0"><channel><title>test</title>`
	for i, title := range titles {
		doc += fmt.Sprintf(
			`<item><title>%s</title><link>https://example.com/%d</link><pubDate>Mon, 02 Jun 2025 10:0%d:00 GMT</pubDate></item>`,
			title, i, i)
	}
	return doc + `</channel></rss>`
}

// countingServer serves a fixed RSS document and counts requests.
type countingServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits int
}

func newCountingServer(t *testing.T, doc string) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cs.mu.Lock()
		cs.hits++
		cs.mu.Unlock()
		fmt.Fprint(w, doc)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *countingServer) hitCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hits
}

// recordingEscalator captures requests and replays canned resolutions.
type recordingEscalator struct {
	mu       sync.Mutex
	requests []aiclassify.Request
	results  []*entity.ThreatClassification
}

func (e *recordingEscalator) Request(req aiclassify.Request) <-chan *entity.ThreatClassification {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan *entity.ThreatClassification, 1)
	i := len(e.requests)
	e.requests = append(e.requests, req)
	if i < len(e.results) {
		ch <- e.results[i]
	} else {
		ch <- nil
	}
	return ch
}

func (e *recordingEscalator) requestCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func newTestService(cfg Config, escalator Escalator) *Service {
	classifier := keyword.New(keyword.VariantDefault)
	guard := feedcache.New(nil, nil, nil, feedcache.DefaultConfig())
	fetcher := feedfetch.NewFetcher(nil)
	normalizer := feedfetch.NewNormalizer(classifier.Classify, nil, nil)
	return NewService(cfg, guard, fetcher, normalizer, escalator, nil, nil)
}

func TestFetchFeed_NormalizesAndCaches(t *testing.T) {
	server := newCountingServer(t, rssDoc("Earthquake hits region", "Quiet local news"))
	svc := newTestService(Config{}, nil)

	desc := entity.FeedDescriptor{Name: "wire", URL: server.URL}
	items := svc.FetchFeed(context.Background(), desc, entity.DefaultLang)

	require.Len(t, items, 2)
	assert.Equal(t, "wire", items[0].Source)
	assert.Equal(t, "Earthquake hits region", items[0].Title)
	assert.True(t, items[0].Threat.Level.Valid())

	// A second fetch inside the TTL is served from memory.
	again := svc.FetchFeed(context.Background(), desc, entity.DefaultLang)
	require.Len(t, again, 2)
	assert.Equal(t, 1, server.hitCount())
}

func TestFetchFeed_NoURLForLanguage(t *testing.T) {
	svc := newTestService(Config{}, nil)

	desc := entity.FeedDescriptor{Name: "wire", URLs: map[string]string{}}
	items := svc.FetchFeed(context.Background(), desc, "de")
	assert.Empty(t, items)
}

func TestFetchAll_CollectsInFeedOrder(t *testing.T) {
	serverA := newCountingServer(t, rssDoc("Feed A story"))
	serverB := newCountingServer(t, rssDoc("Feed B story"))
	serverC := newCountingServer(t, rssDoc("Feed C story"))

	svc := newTestService(Config{ChunkSize: 2}, nil)
	feeds := []entity.FeedDescriptor{
		{Name: "a", URL: serverA.URL},
		{Name: "b", URL: serverB.URL},
		{Name: "c", URL: serverC.URL},
	}

	items := svc.FetchAll(context.Background(), feeds, entity.DefaultLang, nil)

	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Source)
	assert.Equal(t, "b", items[1].Source)
	assert.Equal(t, "c", items[2].Source)
}

func TestFetchAll_EmitsPartialResultsPerChunk(t *testing.T) {
	serverA := newCountingServer(t, rssDoc("Feed A story"))
	serverB := newCountingServer(t, rssDoc("Feed B one", "Feed B two"))
	serverC := newCountingServer(t, rssDoc("Feed C story"))

	svc := newTestService(Config{ChunkSize: 2}, nil)
	feeds := []entity.FeedDescriptor{
		{Name: "a", URL: serverA.URL},
		{Name: "b", URL: serverB.URL},
		{Name: "c", URL: serverC.URL},
	}

	var chunks [][]*entity.NewsItem
	items := svc.FetchAll(context.Background(), feeds, entity.DefaultLang, func(chunk []*entity.NewsItem) {
		chunks = append(chunks, chunk)
	})

	// Two chunks: a+b complete together, then c.
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 1)
	assert.Equal(t, "c", chunks[1][0].Source)
	assert.Len(t, items, 4)
}

func TestFetchAll_SurvivesDeadFeed(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(dead.Close)
	live := newCountingServer(t, rssDoc("Live story"))

	svc := newTestService(Config{}, nil)
	feeds := []entity.FeedDescriptor{
		{Name: "dead", URL: dead.URL},
		{Name: "live", URL: live.URL},
	}

	items := svc.FetchAll(context.Background(), feeds, entity.DefaultLang, nil)

	require.Len(t, items, 1)
	assert.Equal(t, "live", items[0].Source)
}

func TestEscalation_UpgradesItem(t *testing.T) {
	server := newCountingServer(t, rssDoc("Protest turns violent downtown"))
	escalator := &recordingEscalator{results: []*entity.ThreatClassification{{
		Level:      entity.LevelCritical,
		Category:   entity.CategoryConflict,
		Confidence: 0.95,
		Origin:     entity.OriginLLM,
	}}}

	svc := newTestService(Config{EscalateCount: 2}, escalator)

	var reclassified []*entity.NewsItem
	var mu sync.Mutex
	svc.OnReclassified(func(item *entity.NewsItem) {
		mu.Lock()
		reclassified = append(reclassified, item)
		mu.Unlock()
	})

	desc := entity.FeedDescriptor{Name: "wire", URL: server.URL}
	items := svc.FetchFeed(context.Background(), desc, entity.DefaultLang)
	require.Len(t, items, 1)

	svc.Wait()

	assert.Equal(t, entity.LevelCritical, items[0].Threat.Level)
	assert.Equal(t, entity.OriginLLM, items[0].Threat.Origin)
	assert.True(t, items[0].IsAlert)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reclassified, 1)
	assert.Same(t, items[0], reclassified[0])
}

func TestEscalation_LowerConfidenceIgnored(t *testing.T) {
	server := newCountingServer(t, rssDoc("Nuclear war fears grow"))
	escalator := &recordingEscalator{results: []*entity.ThreatClassification{{
		Level:      entity.LevelLow,
		Category:   entity.CategoryGeneral,
		Confidence: 0.2,
		Origin:     entity.OriginLLM,
	}}}

	svc := newTestService(Config{}, escalator)

	desc := entity.FeedDescriptor{Name: "wire", URL: server.URL}
	items := svc.FetchFeed(context.Background(), desc, entity.DefaultLang)
	require.Len(t, items, 1)

	svc.Wait()

	// The keyword result stands: the candidate's confidence was lower.
	assert.Equal(t, entity.LevelCritical, items[0].Threat.Level)
	assert.Equal(t, entity.OriginKeyword, items[0].Threat.Origin)
}

func TestEscalation_CapsPerFeedAndSkipsCacheHits(t *testing.T) {
	server := newCountingServer(t, rssDoc("story one", "story two", "story three", "story four"))
	escalator := &recordingEscalator{}

	svc := newTestService(Config{EscalateCount: 2}, escalator)

	desc := entity.FeedDescriptor{Name: "wire", URL: server.URL}
	svc.FetchFeed(context.Background(), desc, entity.DefaultLang)
	svc.Wait()
	assert.Equal(t, 2, escalator.requestCount())

	// A cache hit must not re-escalate.
	svc.FetchFeed(context.Background(), desc, entity.DefaultLang)
	svc.Wait()
	assert.Equal(t, 2, escalator.requestCount())
	assert.Equal(t, 1, server.hitCount())
}
