// Package geo resolves headline text to geographic hints.
//
// The pipeline only needs a coarse "where does this story point" signal, so
// the index is a static table of well-known place names scanned against the
// title. Consumers use the first match.
package geo

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Match is one resolved location mention.
type Match struct {
	Name string
	Lat  float64
	Lon  float64
}

// Locator resolves a title to an ordered list of location matches.
type Locator interface {
	// Lookup returns matches ordered by their position in the title.
	// An empty slice means no known location was mentioned.
	Lookup(title string) []Match
}

// place is one entry in the static index.
type place struct {
	name string
	lat  float64
	lon  float64
}

// Index is a static, in-memory Locator. It is immutable after construction
// and safe for concurrent use.
type Index struct {
	places []place
}

// NewIndex returns a Locator backed by the built-in place table.
func NewIndex() *Index {
	return &Index{places: defaultPlaces}
}

// Lookup implements Locator. Place names match case-insensitively on word
// boundaries; matches are ordered by where they appear in the title.
func (ix *Index) Lookup(title string) []Match {
	lower := strings.ToLower(title)

	type positioned struct {
		pos   int
		match Match
	}
	var found []positioned

	for _, p := range ix.places {
		pos := indexWord(lower, p.name)
		if pos < 0 {
			continue
		}
		found = append(found, positioned{pos: pos, match: Match{Name: titleCase(p.name), Lat: p.lat, Lon: p.lon}})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	matches := make([]Match, len(found))
	for i, f := range found {
		matches[i] = f.match
	}
	return matches
}

// indexWord returns the byte offset of the first whole-word occurrence of
// token in text, or -1. Short place names ("kyiv", "gaza") inside longer
// words must not count as mentions.
func indexWord(text, token string) int {
	for from := 0; ; {
		i := strings.Index(text[from:], token)
		if i < 0 {
			return -1
		}
		start := from + i
		end := start + len(token)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		leftOK := start == 0 || !unicode.IsLetter(before)
		rightOK := end == len(text) || !unicode.IsLetter(after)
		if leftOK && rightOK {
			return start
		}
		from = start + 1
	}
}

func titleCase(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// defaultPlaces lists capitals, conflict zones, and financial centers that
// dominate world news coverage. Coordinates are city centers, rounded.
var defaultPlaces = []place{
	{"washington", 38.91, -77.04},
	{"new york", 40.71, -74.01},
	{"london", 51.51, -0.13},
	{"paris", 48.86, 2.35},
	{"berlin", 52.52, 13.41},
	{"brussels", 50.85, 4.35},
	{"moscow", 55.76, 37.62},
	{"kyiv", 50.45, 30.52},
	{"warsaw", 52.23, 21.01},
	{"beijing", 39.90, 116.41},
	{"shanghai", 31.23, 121.47},
	{"taipei", 25.03, 121.57},
	{"tokyo", 35.68, 139.69},
	{"seoul", 37.57, 126.98},
	{"pyongyang", 39.04, 125.76},
	{"delhi", 28.61, 77.21},
	{"islamabad", 33.69, 73.06},
	{"tehran", 35.69, 51.39},
	{"tel aviv", 32.09, 34.78},
	{"jerusalem", 31.77, 35.21},
	{"gaza", 31.50, 34.47},
	{"beirut", 33.89, 35.50},
	{"damascus", 33.51, 36.29},
	{"baghdad", 33.32, 44.36},
	{"riyadh", 24.71, 46.68},
	{"cairo", 30.04, 31.24},
	{"khartoum", 15.50, 32.56},
	{"lagos", 6.52, 3.38},
	{"nairobi", -1.29, 36.82},
	{"johannesburg", -26.20, 28.05},
	{"brasilia", -15.79, -47.88},
	{"buenos aires", -34.60, -58.38},
	{"mexico city", 19.43, -99.13},
	{"caracas", 10.48, -66.90},
	{"havana", 23.11, -82.37},
	{"ottawa", 45.42, -75.70},
	{"canberra", -35.28, 149.13},
	{"jakarta", -6.21, 106.85},
	{"manila", 14.60, 120.98},
	{"singapore", 1.35, 103.82},
	{"hong kong", 22.32, 114.17},
	{"ankara", 39.93, 32.86},
	{"athens", 37.98, 23.73},
	{"rome", 41.90, 12.50},
	{"madrid", 40.42, -3.70},
	{"geneva", 46.20, 6.14},
	{"vienna", 48.21, 16.37},
	{"stockholm", 59.33, 18.07},
	{"helsinki", 60.17, 24.94},
	{"oslo", 59.91, 10.75},
}
