package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArticleRecord_SetPublishedAt(t *testing.T) {
	var a ArticleRecord
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	a.SetPublishedAt(ts)

	assert.Equal(t, ts, a.PublishedAt)
	assert.Equal(t, ts.Unix(), a.PublishedTS)
}

func TestArticleRecord_Validate(t *testing.T) {
	validBase := func() ArticleRecord {
		a := ArticleRecord{
			Source:  "irna",
			URL:     "https://example.com/a",
			Title:   "T",
			Content: "some content long enough",
			Status:  ArticleStatusPending,
		}
		a.SetPublishedAt(time.Now())
		return a
	}

	t.Run("valid record", func(t *testing.T) {
		a := validBase()
		assert.NoError(t, a.Validate())
	})

	t.Run("missing title", func(t *testing.T) {
		a := validBase()
		a.Title = ""
		assert.Error(t, a.Validate())
	})

	t.Run("missing content", func(t *testing.T) {
		a := validBase()
		a.Content = ""
		assert.Error(t, a.Validate())
	})

	t.Run("published_ts out of sync", func(t *testing.T) {
		a := validBase()
		a.PublishedTS = a.PublishedTS + 1
		assert.Error(t, a.Validate())
	})

	t.Run("invalid status", func(t *testing.T) {
		a := validBase()
		a.Status = "bogus"
		assert.Error(t, a.Validate())
	})
}

func TestArticleRecord_MeetsContentFloor(t *testing.T) {
	a := ArticleRecord{Content: string(make([]byte, 50))}
	assert.True(t, a.MeetsContentFloor(50))
	assert.False(t, a.MeetsContentFloor(51))
}
