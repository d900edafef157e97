package publisher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsfeed-pipeline/internal/domain/entity"
	"newsfeed-pipeline/internal/infra/publisher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClientConfig() publisher.ClientConfig {
	cfg := publisher.DefaultClientConfig()
	cfg.DenyPrivateIPs = false // exercising against httptest.Server loopback addresses
	return cfg
}

func TestRSSAdapter_DiscoverRecent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Article 1</title>
      <link>https://example.com/article1</link>
      <description>Description 1</description>
      <pubDate>Tue, 02 Jan 2024 00:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Article 2</title>
      <link>https://example.com/article2</link>
      <description>Description 2</description>
      <pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer server.Close()

	a := publisher.NewRSSAdapter("example", server.URL, testClientConfig())

	newest, links, err := a.DiscoverRecent(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/article1", newest)
	require.Len(t, links, 2)
	assert.Equal(t, "example", links[0].Source)
	assert.Equal(t, "https://example.com/article1", links[0].URL)
}

func TestRSSAdapter_DiscoverRecent_StopsAtLastSeen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<item><title>A</title><link>https://example.com/a</link><pubDate>Tue, 02 Jan 2024 00:00:00 +0000</pubDate></item>
<item><title>B</title><link>https://example.com/b</link><pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate></item>
</channel></rss>`
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer server.Close()

	a := publisher.NewRSSAdapter("example", server.URL, testClientConfig())

	newest, links, err := a.DiscoverRecent(context.Background(), "https://example.com/b")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", newest)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/a", links[0].URL)
}

func TestRSSAdapter_Fetch_WrongSource(t *testing.T) {
	a := publisher.NewRSSAdapter("example", "https://example.com/feed", testClientConfig())

	link := entity.LinkRecord{Source: "other", URL: "https://example.com/x", Status: entity.LinkStatusPending}
	_, err := a.Fetch(context.Background(), link, 10)
	assert.ErrorIs(t, err, entity.ErrURLNotOwned)
}

func TestRSSAdapter_Fetch_ContentTooShort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><article><p>` + strings.Repeat("x", 5) + `</p></article></body></html>`))
	}))
	defer server.Close()

	a := publisher.NewRSSAdapter("example", server.URL+"/feed", testClientConfig())

	link := entity.LinkRecord{Source: "example", URL: server.URL + "/article", Status: entity.LinkStatusPending}
	_, err := a.Fetch(context.Background(), link, 5000)
	require.Error(t, err)
}
