// Package entity defines the core domain entities and validation logic for the
// pipeline: LinkRecord, ArticleRecord, VectorPoint, and their shared errors.
package entity

import "time"

// ArticleStatus is the lifecycle status of an ArticleRecord.
type ArticleStatus string

const (
	ArticleStatusPending   ArticleStatus = "pending"
	ArticleStatusCompleted ArticleStatus = "completed"
)

// ArticleRecord is the persisted, parsed content for a URL, produced by a
// PublisherAdapter.Fetch call and later embedded into the VectorStore.
type ArticleRecord struct {
	ID          int64
	Source      string
	URL         string
	Title       string
	Content     string
	Summary     string
	Keywords    []string
	Images      []string
	PublishedAt time.Time
	// PublishedTS is the integer-seconds rendering of PublishedAt, kept in
	// sync by SetPublishedAt (and checked by Validate) so callers never have
	// to derive it by hand before writing to the VectorStore payload.
	PublishedTS int64
	Status      ArticleStatus
	CreatedAt   time.Time
}

// SetPublishedAt sets PublishedAt and recomputes the derived PublishedTS.
func (a *ArticleRecord) SetPublishedAt(t time.Time) {
	a.PublishedAt = t
	a.PublishedTS = t.Unix()
}

// Validate enforces the field-level invariants spec.md §3 attaches to
// ArticleRecord (title/content required non-empty, published_ts in sync).
func (a *ArticleRecord) Validate() error {
	if a.Source == "" {
		return &ValidationError{Field: "source", Message: "source is required"}
	}
	if err := ValidateURL(a.URL); err != nil {
		return err
	}
	if a.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if a.Content == "" {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	if a.PublishedTS != a.PublishedAt.Unix() {
		return &ValidationError{Field: "published_ts", Message: "published_ts must equal floor(published_at)"}
	}
	switch a.Status {
	case ArticleStatusPending, ArticleStatusCompleted, "":
	default:
		return &ValidationError{Field: "status", Message: "invalid status"}
	}
	return nil
}

// MeetsContentFloor reports whether the content length satisfies the
// configured MinContentChars guard (spec.md §4.1, §7).
func (a *ArticleRecord) MeetsContentFloor(minContentChars int) bool {
	return len(a.Content) >= minContentChars
}
