package entity

import (
	"fmt"
	"time"
)

// LinkStatus is the lifecycle status of a LinkRecord.
type LinkStatus string

const (
	LinkStatusPending   LinkStatus = "pending"
	LinkStatusCompleted LinkStatus = "completed"
	LinkStatusFailed    LinkStatus = "failed"
)

// LinkRecord is persisted metadata about a single article URL,
// independent of whether the article content has been fetched yet.
type LinkRecord struct {
	ID          int64
	Source      string
	URL         string
	PublishedAt time.Time
	Status      LinkStatus
	TriedCount  int
	LastTriedAt *time.Time
}

// Validate enforces the field-level invariants spec.md §3 attaches to
// LinkRecord. It does not check url uniqueness or the status
// transitions: the repository's RecordFetchOutcome marks a link FAILED
// once a recoverable failure brings tried_count to MaxRetries, or at once
// on a terminal outcome.
func (l *LinkRecord) Validate() error {
	if l.Source == "" {
		return &ValidationError{Field: "source", Message: "source is required"}
	}
	if err := ValidateURL(l.URL); err != nil {
		return err
	}
	if l.TriedCount < 0 {
		return &ValidationError{Field: "tried_count", Message: "tried_count must be non-negative"}
	}
	switch l.Status {
	case LinkStatusPending, LinkStatusCompleted, LinkStatusFailed:
	default:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", l.Status)}
	}
	return nil
}

// ReadyToRetry reports whether the record may still be claimed for
// another fetch attempt under the given retry ceiling.
func (l *LinkRecord) ReadyToRetry(maxRetries int) bool {
	return l.Status == LinkStatusPending && l.TriedCount < maxRetries
}
