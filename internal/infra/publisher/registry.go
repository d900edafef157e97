package publisher

import (
	"fmt"

	"newsfeed-pipeline/internal/domain/adapter"
)

// SourceConfig describes one configured publisher, read from
// SOURCE_<TAG>_* environment variables (spec.md §6) or a static config
// file. Kind selects which adapter constructor handles this source;
// everything else is adapter-specific construction data.
type SourceConfig struct {
	Tag        string
	Kind       string // "rss" or "archive"
	FeedURL    string // used by Kind == "rss"
	BaseURL    string // used by Kind == "archive"
	ListingURL string // used by Kind == "archive"
	Selectors  ListingSelectors
}

// Registry maps a source tag to its PublisherAdapter, generalizing the
// teacher's per-source-type ScraperFactory into a per-source map so each
// publisher can be independently configured (spec.md §4.1).
type Registry struct {
	adapters map[string]adapter.PublisherAdapter
}

// NewRegistry builds adapters for every configured source and indexes them
// by SourceConfig.Tag. Returns an error if any Kind is unrecognized or two
// configs share a tag.
func NewRegistry(configs []SourceConfig, clientCfg ClientConfig) (*Registry, error) {
	adapters := make(map[string]adapter.PublisherAdapter, len(configs))
	for _, c := range configs {
		if _, exists := adapters[c.Tag]; exists {
			return nil, fmt.Errorf("duplicate source tag %q", c.Tag)
		}

		switch c.Kind {
		case "rss":
			adapters[c.Tag] = NewRSSAdapter(c.Tag, c.FeedURL, clientCfg)
		case "archive":
			adapters[c.Tag] = NewArchiveAdapter(c.Tag, c.BaseURL, c.ListingURL, c.Selectors, clientCfg)
		default:
			return nil, fmt.Errorf("source %q: unknown kind %q", c.Tag, c.Kind)
		}
	}
	return &Registry{adapters: adapters}, nil
}

// Get returns the adapter for tag, or false if no source is configured
// with that tag.
func (r *Registry) Get(tag string) (adapter.PublisherAdapter, bool) {
	a, ok := r.adapters[tag]
	return a, ok
}

// Tags returns every configured source tag, in no particular order.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.adapters))
	for tag := range r.adapters {
		tags = append(tags, tag)
	}
	return tags
}

// All returns every configured adapter, in no particular order.
func (r *Registry) All() []adapter.PublisherAdapter {
	all := make([]adapter.PublisherAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		all = append(all, a)
	}
	return all
}
