// Command classify runs a headline through the keyword cascade and prints
// the resulting classification as JSON. It is the quickest way to check how
// a table change affects a concrete title.
//
// Usage:
//
//	classify [-variant default|tech] "Martial law declared amid coup"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"threatwatch/internal/classifier/keyword"
	"threatwatch/internal/domain/entity"
	"threatwatch/internal/geo"
)

type output struct {
	Title        string                      `json:"title"`
	Variant      string                      `json:"variant"`
	Threat       entity.ThreatClassification `json:"threat"`
	Alert        bool                        `json:"alert"`
	LocationName string                      `json:"locationName,omitempty"`
	Lat          *float64                    `json:"lat,omitempty"`
	Lon          *float64                    `json:"lon,omitempty"`
}

func main() {
	variantFlag := flag.String("variant", "default", "keyword table variant (default or tech)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-variant default|tech] <headline>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	title := strings.Join(flag.Args(), " ")

	variant := keyword.ParseVariant(*variantFlag)
	classifier := keyword.New(variant)

	out := output{
		Title:   title,
		Variant: string(variant),
		Threat:  classifier.Classify(title),
	}
	out.Alert = out.Threat.IsAlerting()

	if matches := geo.NewIndex().Lookup(title); len(matches) > 0 {
		first := matches[0]
		out.LocationName = first.Name
		out.Lat = &first.Lat
		out.Lon = &first.Lon
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
}
