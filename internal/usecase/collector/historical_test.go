package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/usecase/collector"
)

type fakeDayPublisher struct {
	source string

	mu      sync.Mutex
	calls   []time.Time
	err     error
	linksFn func(time.Time) []entity.LinkRecord
}

func (f *fakeDayPublisher) SourceTag() string { return f.source }

func (f *fakeDayPublisher) DiscoverRecent(ctx context.Context, lastSeenURL string) (string, []entity.LinkRecord, error) {
	return "", nil, nil
}

func (f *fakeDayPublisher) DiscoverForDay(ctx context.Context, date time.Time) ([]entity.LinkRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, date)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.linksFn != nil {
		return f.linksFn(date), nil
	}
	return []entity.LinkRecord{{Source: f.source, URL: "https://example.com/" + date.Format("2006-01-02")}}, nil
}

func (f *fakeDayPublisher) Fetch(ctx context.Context, link entity.LinkRecord, minContentChars int) (*entity.ArticleRecord, error) {
	return nil, nil
}

func TestHistoricalLinkCollector_WalksEveryDay(t *testing.T) {
	pub := &fakeDayPublisher{source: "example"}
	repo := &fakeLinkRepo{}

	c := collector.NewHistoricalLinkCollector(repo).WithBatchConfig(3, 2)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.Run(context.Background(), pub, start, end))

	assert.Len(t, pub.calls, 7)
	assert.Len(t, repo.upserted, 7)
}

func TestHistoricalLinkCollector_RejectsInvertedRange(t *testing.T) {
	pub := &fakeDayPublisher{source: "example"}
	repo := &fakeLinkRepo{}
	c := collector.NewHistoricalLinkCollector(repo)

	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := c.Run(context.Background(), pub, start, end)
	assert.Error(t, err)
}

func TestHistoricalLinkCollector_PropagatesDiscoverError(t *testing.T) {
	pub := &fakeDayPublisher{source: "example", err: errors.New("site unreachable")}
	repo := &fakeLinkRepo{}
	c := collector.NewHistoricalLinkCollector(repo).WithBatchConfig(10, 4)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	err := c.Run(context.Background(), pub, start, end)
	assert.Error(t, err)
}

func TestHistoricalLinkCollector_SkipsEmptyDays(t *testing.T) {
	pub := &fakeDayPublisher{source: "example", linksFn: func(time.Time) []entity.LinkRecord { return nil }}
	repo := &fakeLinkRepo{}
	c := collector.NewHistoricalLinkCollector(repo).WithBatchConfig(10, 4)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.Run(context.Background(), pub, start, end))
	assert.Empty(t, repo.upserted)
}
