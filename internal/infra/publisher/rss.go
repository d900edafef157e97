package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/resilience/circuitbreaker"
	"newsfeed-pipeline/internal/resilience/retry"

	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// RSSAdapter implements adapter.PublisherAdapter over a publisher's RSS or
// Atom feed. DiscoverRecent/DiscoverForDay walk the feed newest-first;
// Fetch always re-requests the article page and extracts readable content
// with go-readability. The feed item's own content/description is not
// kept and never used as article content.
type RSSAdapter struct {
	sourceTag    string
	feedURL      string
	clientCfg    ClientConfig
	client       *http.Client
	fetchBreaker *circuitbreaker.CircuitBreaker
	feedBreaker  *circuitbreaker.CircuitBreaker
	feedRetry    retry.Config
	fetchRetry   retry.Config
}

// NewRSSAdapter constructs an RSSAdapter for one source. feedURL is the
// canonical RSS/Atom endpoint; sourceTag must match entity.LinkRecord.Source
// for links this adapter produces.
func NewRSSAdapter(sourceTag, feedURL string, cfg ClientConfig) *RSSAdapter {
	return &RSSAdapter{
		sourceTag:    sourceTag,
		feedURL:      feedURL,
		clientCfg:    cfg,
		client:       NewHTTPClient(cfg),
		fetchBreaker: circuitbreaker.New(circuitbreaker.PageFetchConfig()),
		feedBreaker:  circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		feedRetry:    retry.FeedFetchConfig(),
		fetchRetry:   retry.PageFetchConfig(),
	}
}

func (a *RSSAdapter) SourceTag() string { return a.sourceTag }

// DiscoverRecent parses the feed newest-first and stops walking once it
// reaches lastSeenURL (spec.md §4.1 "fresh discovery").
func (a *RSSAdapter) DiscoverRecent(ctx context.Context, lastSeenURL string) (string, []entity.LinkRecord, error) {
	items, err := a.parseFeed(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(items) == 0 {
		return "", nil, nil
	}

	newestURL := items[0].Link
	links := make([]entity.LinkRecord, 0, len(items))
	for _, it := range items {
		if it.Link == lastSeenURL {
			break
		}
		links = append(links, a.toLinkRecord(it))
	}
	return newestURL, links, nil
}

// DiscoverForDay returns every feed entry published on date (UTC day
// boundary). RSS feeds are shallow (no day pagination), so this only
// covers entries the feed currently retains.
func (a *RSSAdapter) DiscoverForDay(ctx context.Context, date time.Time) ([]entity.LinkRecord, error) {
	items, err := a.parseFeed(ctx)
	if err != nil {
		return nil, err
	}

	year, month, day := date.UTC().Date()
	links := make([]entity.LinkRecord, 0)
	for _, it := range items {
		py, pm, pd := it.PublishedAt.UTC().Date()
		if py == year && pm == month && pd == day {
			links = append(links, a.toLinkRecord(it))
		}
	}
	return links, nil
}

// Fetch re-requests the article page and extracts readable content.
// entity.ErrURLNotOwned is returned if link.Source does not match this
// adapter's SourceTag; entity.ErrContentTooShort if extraction produced
// fewer than minContentChars characters.
func (a *RSSAdapter) Fetch(ctx context.Context, link entity.LinkRecord, minContentChars int) (*entity.ArticleRecord, error) {
	if link.Source != a.sourceTag {
		return nil, entity.ErrURLNotOwned
	}

	content, title, err := a.fetchReadableContent(ctx, link.URL)
	if err != nil {
		return nil, err
	}
	if len(content) < minContentChars {
		return nil, entity.ErrContentTooShort
	}

	article := &entity.ArticleRecord{
		Source:  a.sourceTag,
		URL:     link.URL,
		Title:   title,
		Content: content,
		Status:  entity.ArticleStatusPending,
	}
	article.SetPublishedAt(link.PublishedAt)
	return article, nil
}

type feedItem struct {
	Title       string
	Link        string
	PublishedAt time.Time
}

func (a *RSSAdapter) toLinkRecord(it feedItem) entity.LinkRecord {
	return entity.LinkRecord{
		Source:      a.sourceTag,
		URL:         it.Link,
		PublishedAt: it.PublishedAt,
		Status:      entity.LinkStatusPending,
	}
}

func (a *RSSAdapter) parseFeed(ctx context.Context) ([]feedItem, error) {
	var items []feedItem

	retryErr := retry.WithBackoff(ctx, a.feedRetry, func() error {
		result, err := a.feedBreaker.Execute(func() (interface{}, error) {
			return a.doParseFeed(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open",
					slog.String("source", a.sourceTag),
					slog.String("feed_url", a.feedURL))
			}
			return err
		}
		items = result.([]feedItem)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return items, nil
}

func (a *RSSAdapter) doParseFeed(ctx context.Context) ([]feedItem, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "newsfeed-pipeline"
	fp.Client = a.client

	feed, err := fp.ParseURLWithContext(a.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", a.feedURL, err)
	}

	items := make([]feedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		publishedAt := time.Now().UTC()
		switch {
		case it.PublishedParsed != nil:
			publishedAt = it.PublishedParsed.UTC()
		case it.Published != "":
			if parsed, perr := dateparse.ParseAny(it.Published); perr == nil {
				publishedAt = parsed.UTC()
			}
		}

		items = append(items, feedItem{
			Title:       it.Title,
			Link:        it.Link,
			PublishedAt: publishedAt,
		})
	}
	return items, nil
}

func (a *RSSAdapter) fetchReadableContent(ctx context.Context, urlStr string) (content, title string, err error) {
	if verr := validateFetchURL(urlStr, a.clientCfg); verr != nil {
		return "", "", verr
	}

	result, err := a.fetchBreaker.Execute(func() (interface{}, error) {
		return a.doFetchReadable(ctx, urlStr)
	})
	if err != nil {
		return "", "", err
	}
	pair := result.([2]string)
	return pair[0], pair[1], nil
}

func (a *RSSAdapter) doFetchReadable(ctx context.Context, urlStr string) ([2]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return [2]string{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "newsfeed-pipeline/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return [2]string{}, fmt.Errorf("%w: %s", ErrFetchTimeout, urlStr)
		}
		return [2]string{}, fmt.Errorf("fetch %s: %w", urlStr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return [2]string{}, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, urlStr, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, 10*1024*1024+1)
	htmlBytes, err := io.ReadAll(limited)
	if err != nil {
		return [2]string{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(htmlBytes)) > 10*1024*1024 {
		return [2]string{}, fmt.Errorf("%w: %s", ErrBodyTooLarge, urlStr)
	}

	finalURL := resp.Request.URL
	article, err := readability.FromReader(io.NopCloser(bytes.NewReader(htmlBytes)), finalURL)
	if err != nil {
		return [2]string{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	text := article.TextContent
	if text == "" {
		text = article.Content
	}
	return [2]string{text, article.Title}, nil
}
