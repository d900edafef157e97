// Package adapter defines the PublisherAdapter capability contract: the
// per-source operations the crawl pipeline drives without knowing how any
// particular publisher's site is laid out.
package adapter

import (
	"context"
	"time"

	"newsfeed-pipeline/internal/domain/entity"
)

// PublisherAdapter exposes three operations, each pure with respect to
// system state — it only touches the publisher's site. Implementations
// own no retry or persistence logic; that is the dispatcher's and the
// collectors' concern (spec.md §4.1, §9).
type PublisherAdapter interface {
	// DiscoverRecent fetches the publisher's "what's new" feed, newest
	// first. lastSeenURL, when non-empty, stops the walk early. newestURL
	// is the very first URL in the feed regardless of whether any new
	// records were produced, so the caller's marker can always advance.
	DiscoverRecent(ctx context.Context, lastSeenURL string) (newestURL string, links []entity.LinkRecord, err error)

	// DiscoverForDay fetches all links the publisher attributes to date.
	// May paginate internally; returns once the publisher's listing
	// indicates a prior day.
	DiscoverForDay(ctx context.Context, date time.Time) ([]entity.LinkRecord, error)

	// Fetch loads one article and extracts its content. Returns
	// entity.ErrContentTooShort if the parsed content falls below the
	// caller-supplied minimum, and entity.ErrURLNotOwned if the link does
	// not belong to this adapter's source.
	Fetch(ctx context.Context, link entity.LinkRecord, minContentChars int) (*entity.ArticleRecord, error)

	// SourceTag identifies which source this adapter implements, matching
	// entity.LinkRecord.Source / entity.ArticleRecord.Source.
	SourceTag() string
}
