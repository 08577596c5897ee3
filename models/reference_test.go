package models

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestReferenceMergeFrom(t *testing.T) {
	t.Run("non-empty incoming fields win", func(t *testing.T) {
		existing := &Reference{
			Title:       "old title",
			Description: "old description",
			Source:      "手動追加",
			Tags:        pq.StringArray{"ミニマル"},
		}
		existing.MergeFrom(&Reference{
			Title:       "new title",
			Description: "",
			Source:      "landbook",
			ImageURL:    "https://cdn.example.com/shot.png",
		})

		assert.Equal(t, "new title", existing.Title)
		assert.Equal(t, "old description", existing.Description)
		assert.Equal(t, "landbook", existing.Source)
		assert.Equal(t, "https://cdn.example.com/shot.png", existing.ImageURL)
	})

	t.Run("tags union preserves existing order and appends new", func(t *testing.T) {
		existing := &Reference{Tags: pq.StringArray{"ミニマル", "SaaS"}}
		existing.MergeFrom(&Reference{Tags: pq.StringArray{"SaaS", "ダークモード"}})

		assert.Equal(t, pq.StringArray{"ミニマル", "SaaS", "ダークモード"}, existing.Tags)
	})

	t.Run("ai analyzed is monotonic", func(t *testing.T) {
		existing := &Reference{AIAnalyzed: true}
		existing.MergeFrom(&Reference{AIAnalyzed: false})
		assert.True(t, existing.AIAnalyzed)

		fresh := &Reference{AIAnalyzed: false}
		fresh.MergeFrom(&Reference{AIAnalyzed: true})
		assert.True(t, fresh.AIAnalyzed)
	})
}

func TestMergeTagNames(t *testing.T) {
	merged := MergeTagNames([]string{"a", "b"}, []string{"b", "c", "a", "d"})
	assert.Equal(t, pq.StringArray{"a", "b", "c", "d"}, merged)

	assert.Empty(t, MergeTagNames(nil, nil))
	assert.Equal(t, pq.StringArray{"x"}, MergeTagNames(nil, []string{"x", "x"}))
}
