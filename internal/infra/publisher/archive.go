package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/resilience/circuitbreaker"
	"newsfeed-pipeline/internal/resilience/retry"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
)

// ListingSelectors describes how to pull article links and their
// publication timestamps out of one publisher's day-archive HTML listing
// page. Each publisher family that is not feed-based configures one of
// these instead of writing a bespoke adapter (spec.md §9, generalizing the
// per-publisher archive scrapers).
type ListingSelectors struct {
	// ItemSelector selects one DOM node per article entry.
	ItemSelector string
	// LinkSelector selects the anchor within an item node; href is read
	// relative to BaseURL.
	LinkSelector string
	// TimeSelector selects the element within an item node carrying the
	// publish timestamp, read from TimeAttr (or its text if TimeAttr is "").
	TimeSelector string
	// TimeAttr is the attribute holding the timestamp string; empty means
	// use the element's text content.
	TimeAttr string
	// ArchivePageURL builds the URL for a given page/day combination.
	ArchivePageURL func(baseURL string, date time.Time, page int) string
	// MaxPages bounds day-pagination; 0 means a single page.
	MaxPages int
}

// ArchiveAdapter implements adapter.PublisherAdapter over a publisher's
// plain-HTML day-archive listing, generalizing the teacher's per-framework
// (Webflow/Next.js/Remix) scrapers into one goquery-driven adapter
// configured per source (spec.md §9).
type ArchiveAdapter struct {
	sourceTag    string
	baseURL      string
	listingURL   string // used by DiscoverRecent: the "latest" listing page
	selectors    ListingSelectors
	clientCfg    ClientConfig
	client       *http.Client
	listBreaker  *circuitbreaker.CircuitBreaker
	fetchBreaker *circuitbreaker.CircuitBreaker
	listRetry    retry.Config
	fetchRetry   retry.Config
}

// NewArchiveAdapter constructs an ArchiveAdapter for one source.
func NewArchiveAdapter(sourceTag, baseURL, listingURL string, selectors ListingSelectors, cfg ClientConfig) *ArchiveAdapter {
	return &ArchiveAdapter{
		sourceTag:    sourceTag,
		baseURL:      baseURL,
		listingURL:   listingURL,
		selectors:    selectors,
		clientCfg:    cfg,
		client:       NewHTTPClient(cfg),
		listBreaker:  circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		fetchBreaker: circuitbreaker.New(circuitbreaker.PageFetchConfig()),
		listRetry:    retry.FeedFetchConfig(),
		fetchRetry:   retry.PageFetchConfig(),
	}
}

func (a *ArchiveAdapter) SourceTag() string { return a.sourceTag }

// DiscoverRecent loads the "latest" listing page newest-first and stops at
// lastSeenURL, mirroring RSSAdapter's contract over a non-feed publisher.
func (a *ArchiveAdapter) DiscoverRecent(ctx context.Context, lastSeenURL string) (string, []entity.LinkRecord, error) {
	entries, err := a.fetchListing(ctx, a.listingURL)
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 0 {
		return "", nil, nil
	}

	newestURL := entries[0].url
	links := make([]entity.LinkRecord, 0, len(entries))
	for _, e := range entries {
		if e.url == lastSeenURL {
			break
		}
		links = append(links, entity.LinkRecord{
			Source:      a.sourceTag,
			URL:         e.url,
			PublishedAt: e.publishedAt,
			Status:      entity.LinkStatusPending,
		})
	}
	return newestURL, links, nil
}

// DiscoverForDay paginates the publisher's day-archive for date, stopping
// once a page yields no entries or MaxPages is reached (spec.md §4.1
// "historical backfill").
func (a *ArchiveAdapter) DiscoverForDay(ctx context.Context, date time.Time) ([]entity.LinkRecord, error) {
	if a.selectors.ArchivePageURL == nil {
		return nil, fmt.Errorf("archive adapter %s: no ArchivePageURL configured", a.sourceTag)
	}

	maxPages := a.selectors.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var links []entity.LinkRecord
	for page := 1; page <= maxPages; page++ {
		pageURL := a.selectors.ArchivePageURL(a.baseURL, date, page)
		entries, err := a.fetchListing(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			links = append(links, entity.LinkRecord{
				Source:      a.sourceTag,
				URL:         e.url,
				PublishedAt: e.publishedAt,
				Status:      entity.LinkStatusPending,
			})
		}
	}
	return links, nil
}

// Fetch loads the article page and extracts readable content via
// go-readability, same as RSSAdapter.Fetch.
func (a *ArchiveAdapter) Fetch(ctx context.Context, link entity.LinkRecord, minContentChars int) (*entity.ArticleRecord, error) {
	if link.Source != a.sourceTag {
		return nil, entity.ErrURLNotOwned
	}
	if verr := validateFetchURL(link.URL, a.clientCfg); verr != nil {
		return nil, verr
	}

	result, err := a.fetchBreaker.Execute(func() (interface{}, error) {
		return a.doFetchArticle(ctx, link.URL)
	})
	if err != nil {
		return nil, err
	}
	pair := result.([2]string)
	content, title := pair[0], pair[1]
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

type listingEntry struct {
	url         string
	publishedAt time.Time
}

func (a *ArchiveAdapter) fetchListing(ctx context.Context, pageURL string) ([]listingEntry, error) {
	var entries []listingEntry
	retryErr := retry.WithBackoff(ctx, a.listRetry, func() error {
		result, err := a.listBreaker.Execute(func() (interface{}, error) {
			return a.doFetchListing(ctx, pageURL)
		})
		if err != nil {
			return err
		}
		entries = result.([]listingEntry)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return entries, nil
}

func (a *ArchiveAdapter) doFetchListing(ctx context.Context, pageURL string) ([]listingEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "newsfeed-pipeline/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", pageURL, err)
	}

	base, _ := url.Parse(a.baseURL)

	var entries []listingEntry
	doc.Find(a.selectors.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		link := item.Find(a.selectors.LinkSelector)
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		absURL := href
		if parsed, perr := url.Parse(href); perr == nil && base != nil {
			absURL = base.ResolveReference(parsed).String()
		}

		publishedAt := time.Now().UTC()
		timeEl := item.Find(a.selectors.TimeSelector)
		var raw string
		if a.selectors.TimeAttr != "" {
			raw, _ = timeEl.Attr(a.selectors.TimeAttr)
		} else {
			raw = strings.TrimSpace(timeEl.Text())
		}
		if raw != "" {
			if parsed, perr := dateparse.ParseAny(raw); perr == nil {
				publishedAt = parsed.UTC()
			}
		}

		entries = append(entries, listingEntry{url: absURL, publishedAt: publishedAt})
	})

	return entries, nil
}

func (a *ArchiveAdapter) doFetchArticle(ctx context.Context, urlStr string) ([2]string, error) {
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
	article, err := readability.FromReader(limited, resp.Request.URL)
	if err != nil {
		return [2]string{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	text := article.TextContent
	if text == "" {
		text = article.Content
	}
	return [2]string{text, article.Title}, nil
}
