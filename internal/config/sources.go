package config

import (
	"fmt"
	"log/slog"
	"strings"

	envconfig "newsfeed-pipeline/pkg/config"

	"newsfeed-pipeline/internal/infra/publisher"
)

// LoadSourceConfigsFromEnv builds the set of publisher.SourceConfig the
// worker registers, driven by SOURCES (a comma-separated list of source
// tags) and, per tag, SOURCE_<TAG>_KIND / SOURCE_<TAG>_FEED_URL (spec.md
// §6, §9).
//
// Only Kind == "rss" is expressible this way: ArchiveAdapter's
// ListingSelectors carries an ArchivePageURL function value, which has no
// environment-variable representation, so archive-kind sources must be
// appended to the returned slice by the caller before constructing the
// registry. A tag with an unrecognized or unset kind is skipped with a
// warning rather than failing the whole load, matching this package's
// fail-open convention.
func LoadSourceConfigsFromEnv(logger *slog.Logger) []publisher.SourceConfig {
	tags := envconfig.GetEnvStringList("SOURCES", nil)
	configs := make([]publisher.SourceConfig, 0, len(tags))

	for _, tag := range tags {
		upper := strings.ToUpper(tag)
		kind := envconfig.GetEnvString(fmt.Sprintf("SOURCE_%s_KIND", upper), "rss")

		switch kind {
		case "rss":
			feedURL := envconfig.GetEnvString(fmt.Sprintf("SOURCE_%s_FEED_URL", upper), "")
			if feedURL == "" {
				logger.Warn("source configured without a feed url, skipping",
					slog.String("source", tag), slog.String("kind", kind))
				continue
			}
			configs = append(configs, publisher.SourceConfig{
				Tag:     tag,
				Kind:    "rss",
				FeedURL: feedURL,
			})
		case "archive":
			logger.Warn("archive-kind sources cannot be configured from environment variables alone (ArchivePageURL has no env representation); register it in code",
				slog.String("source", tag))
		default:
			logger.Warn("unrecognized source kind, skipping",
				slog.String("source", tag), slog.String("kind", kind))
		}
	}

	return configs
}
