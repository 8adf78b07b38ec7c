package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"threatwatch/internal/domain/entity"
)

// feedsFile is the on-disk shape of the feed roster.
type feedsFile struct {
	Feeds []entity.FeedDescriptor `yaml:"feeds"`
}

// LoadFeeds reads the YAML feed roster at path. Every descriptor must name a
// source and carry at least one URL; the first invalid entry fails the load
// so a typo cannot silently drop a source.
func LoadFeeds(path string) ([]entity.FeedDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var file feedsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}
	if len(file.Feeds) == 0 {
		return nil, fmt.Errorf("feeds file %s declares no feeds", path)
	}

	seen := make(map[string]struct{}, len(file.Feeds))
	for i, desc := range file.Feeds {
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("feeds file %s: entry %d: %w", path, i, err)
		}
		if _, dup := seen[desc.Name]; dup {
			return nil, fmt.Errorf("feeds file %s: duplicate feed name %q", path, desc.Name)
		}
		seen[desc.Name] = struct{}{}
	}

	return file.Feeds, nil
}
