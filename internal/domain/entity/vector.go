package entity

import (
	"github.com/google/uuid"
)

// NamespaceURL is the standard RFC 4122 URL namespace UUID used to derive
// deterministic VectorPoint ids from article URLs (UUIDv5(NamespaceURL, url)).
var NamespaceURL = uuid.NameSpaceURL

// VectorPointID derives the deterministic, URL-stable point id spec.md
// §3/§4.5/§6 requires: UUIDv5(NAMESPACE_URL, url).
func VectorPointID(url string) uuid.UUID {
	return uuid.NewSHA1(NamespaceURL, []byte(url))
}

// VectorPoint is an embedding plus payload stored in the VectorStore
// under a URL-derived id.
type VectorPoint struct {
	ID      uuid.UUID
	Vector  []float32
	Payload VectorPayload
}

// VectorPayload mirrors the ArticleRecord fields the VectorStore indexes
// and filters on, per spec.md §6.
type VectorPayload struct {
	Source              string
	Title               string
	Content             string
	Summary             string
	Link                string
	Keywords            []string
	Images              []string
	PublishedDatetime   string
	PublishedTimestamp  int64
}

// NewVectorPoint builds a VectorPoint from an ArticleRecord and its
// embedding vector, deriving the point id from the record's URL.
func NewVectorPoint(article *ArticleRecord, vector []float32) VectorPoint {
	return VectorPoint{
		ID:     VectorPointID(article.URL),
		Vector: vector,
		Payload: VectorPayload{
			Source:             article.Source,
			Title:              article.Title,
			Content:            article.Content,
			Summary:            article.Summary,
			Link:               article.URL,
			Keywords:           article.Keywords,
			Images:             article.Images,
			PublishedDatetime:  article.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			PublishedTimestamp: article.PublishedTS,
		},
	}
}

// SourceMarker is the per-source "most recent URL already seen" cursor
// used to terminate fresh-discovery walks. It is never authoritative —
// purely an optimization, per spec.md §3.
type SourceMarker struct {
	Source   string
	LastURL  string
}
