package dispatcher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed-pipeline/internal/domain/adapter"
	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/repository"
	"newsfeed-pipeline/internal/usecase/dispatcher"
)

type fakeLinkRepo struct {
	mu       sync.Mutex
	toClaim  []entity.LinkRecord
	claimErr error
	outcomes []recordedOutcome
	claimed  bool
}

type recordedOutcome struct {
	linkID  int64
	outcome repository.FetchOutcomeKind
}

func (r *fakeLinkRepo) UpsertLinkRecords(ctx context.Context, links []entity.LinkRecord) error {
	return nil
}

func (r *fakeLinkRepo) ClaimPendingLinks(ctx context.Context, source string, limit, maxRetries int) ([]entity.LinkRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed {
		return nil, nil
	}
	r.claimed = true
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	return r.toClaim, nil
}

func (r *fakeLinkRepo) RecordFetchOutcome(ctx context.Context, linkID int64, outcome repository.FetchOutcomeKind, maxRetries int, article *entity.ArticleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, recordedOutcome{linkID: linkID, outcome: outcome})
	return nil
}

func (r *fakeLinkRepo) Stats(ctx context.Context) (repository.LinkStats, error) {
	return repository.LinkStats{}, nil
}

type fakePub struct {
	source  string
	fetchFn func(entity.LinkRecord) (*entity.ArticleRecord, error)
}

func (f *fakePub) SourceTag() string { return f.source }
func (f *fakePub) DiscoverRecent(ctx context.Context, lastSeenURL string) (string, []entity.LinkRecord, error) {
	return "", nil, nil
}
func (f *fakePub) DiscoverForDay(ctx context.Context, date time.Time) ([]entity.LinkRecord, error) {
	return nil, nil
}
func (f *fakePub) Fetch(ctx context.Context, link entity.LinkRecord, minContentChars int) (*entity.ArticleRecord, error) {
	return f.fetchFn(link)
}

type fakeRegistry struct {
	adapters map[string]adapter.PublisherAdapter
}

func (r *fakeRegistry) Get(tag string) (adapter.PublisherAdapter, bool) {
	a, ok := r.adapters[tag]
	return a, ok
}

func TestDispatcher_RunCycle_NoClaimedLinks(t *testing.T) {
	repo := &fakeLinkRepo{}
	reg := &fakeRegistry{adapters: map[string]adapter.PublisherAdapter{}}
	d := dispatcher.New(repo, reg, dispatcher.DefaultConfig())

	n, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDispatcher_RunCycle_UnregisteredSourceFailsTerminal(t *testing.T) {
	repo := &fakeLinkRepo{toClaim: []entity.LinkRecord{{ID: 1, Source: "example", URL: "https://example.com/a"}}}
	reg := &fakeRegistry{adapters: map[string]adapter.PublisherAdapter{}}
	d := dispatcher.New(repo, reg, dispatcher.DefaultConfig())

	n, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, repo.outcomes, 1)
	assert.Equal(t, repository.OutcomeTerminal, repo.outcomes[0].outcome)
}

func TestDispatcher_RunCycle_SuccessOutcome(t *testing.T) {
	repo := &fakeLinkRepo{toClaim: []entity.LinkRecord{{ID: 1, Source: "example", URL: "https://example.com/a"}}}
	pub := &fakePub{source: "example", fetchFn: func(l entity.LinkRecord) (*entity.ArticleRecord, error) {
		return &entity.ArticleRecord{Source: "example", URL: l.URL, Title: "T", Content: "content"}, nil
	}}
	reg := &fakeRegistry{adapters: map[string]adapter.PublisherAdapter{"example": pub}}
	d := dispatcher.New(repo, reg, dispatcher.DefaultConfig())

	n, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, repo.outcomes, 1)
	assert.Equal(t, repository.OutcomeSuccess, repo.outcomes[0].outcome)
}

func TestDispatcher_RunCycle_RecoverableFailure(t *testing.T) {
	repo := &fakeLinkRepo{toClaim: []entity.LinkRecord{{ID: 1, Source: "example", URL: "https://example.com/a"}}}
	pub := &fakePub{source: "example", fetchFn: func(l entity.LinkRecord) (*entity.ArticleRecord, error) {
		return nil, entity.ErrContentTooShort
	}}
	reg := &fakeRegistry{adapters: map[string]adapter.PublisherAdapter{"example": pub}}
	d := dispatcher.New(repo, reg, dispatcher.DefaultConfig())

	_, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, repo.outcomes, 1)
	assert.Equal(t, repository.OutcomeRecoverable, repo.outcomes[0].outcome)
}

func TestDispatcher_RunCycle_TerminalFailure(t *testing.T) {
	repo := &fakeLinkRepo{toClaim: []entity.LinkRecord{{ID: 1, Source: "example", URL: "https://example.com/a"}}}
	pub := &fakePub{source: "example", fetchFn: func(l entity.LinkRecord) (*entity.ArticleRecord, error) {
		return nil, entity.ErrURLNotOwned
	}}
	reg := &fakeRegistry{adapters: map[string]adapter.PublisherAdapter{"example": pub}}
	d := dispatcher.New(repo, reg, dispatcher.DefaultConfig())

	_, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, repo.outcomes, 1)
	assert.Equal(t, repository.OutcomeTerminal, repo.outcomes[0].outcome)
}

func TestDispatcher_InFlightCountResetsAfterCycle(t *testing.T) {
	repo := &fakeLinkRepo{toClaim: []entity.LinkRecord{{ID: 1, Source: "example", URL: "https://example.com/a"}}}
	pub := &fakePub{source: "example", fetchFn: func(l entity.LinkRecord) (*entity.ArticleRecord, error) {
		return &entity.ArticleRecord{Source: "example", URL: l.URL, Title: "T", Content: "content"}, nil
	}}
	reg := &fakeRegistry{adapters: map[string]adapter.PublisherAdapter{"example": pub}}
	d := dispatcher.New(repo, reg, dispatcher.DefaultConfig())

	_, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, d.InFlightCount())
}
