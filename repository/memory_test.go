package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ayatose/refbako/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOwner(t *testing.T, store *MemoryStore, email string) *models.Account {
	t.Helper()
	repo := NewMemoryAccountRepository(store)
	account := &models.Account{Username: "tester", Email: email, PasswordHash: "x"}
	require.NoError(t, repo.Save(context.Background(), account))
	return account
}

func TestUpsertByURLDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	owner := newTestOwner(t, store, "owner@example.com")
	repo := NewMemoryReferenceRepository(store)

	first, created, err := repo.UpsertByURL(ctx, &models.Reference{
		OwnerID: owner.ID,
		Title:   "Example",
		URL:     "https://example.com/x",
		Source:  "手動追加",
		Tags:    pq.StringArray{"ミニマル"},
	})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.UpsertByURL(ctx, &models.Reference{
		OwnerID: owner.ID,
		URL:     "https://example.com/x",
		Source:  "landbook",
		Tags:    pq.StringArray{"SaaS"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, pq.StringArray{"ミニマル", "SaaS"}, second.Tags)
	assert.Equal(t, "Example", second.Title)
	assert.Equal(t, "landbook", second.Source)

	count, err := repo.Count(ctx, models.ReferenceFilter{OwnerID: &owner.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertByURLOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := newTestOwner(t, store, "alice@example.com")
	bob := newTestOwner(t, store, "bob@example.com")
	repo := NewMemoryReferenceRepository(store)

	_, created, err := repo.UpsertByURL(ctx, &models.Reference{OwnerID: alice.ID, URL: "https://example.com/x", Title: "a"})
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = repo.UpsertByURL(ctx, &models.Reference{OwnerID: bob.ID, URL: "https://example.com/x", Title: "b"})
	require.NoError(t, err)
	assert.True(t, created, "same URL under a different owner must create a distinct row")
}

func TestDeleteOwnerChecked(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice := newTestOwner(t, store, "alice@example.com")
	bob := newTestOwner(t, store, "bob@example.com")
	repo := NewMemoryReferenceRepository(store)

	ref, _, err := repo.UpsertByURL(ctx, &models.Reference{OwnerID: alice.ID, URL: "https://example.com/x", Title: "a"})
	require.NoError(t, err)

	removed, err := repo.Delete(ctx, ref.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, removed, "another owner must not be able to delete the row")

	removed, err = repo.Delete(ctx, ref.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, ref.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, removed, "deleting a missing row reports no removal")
}

func TestSearchFiltersAndPagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	owner := newTestOwner(t, store, "owner@example.com")
	other := newTestOwner(t, store, "other@example.com")
	repo := NewMemoryReferenceRepository(store)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, &models.Reference{
			OwnerID:   owner.ID,
			Title:     fmt.Sprintf("Portfolio %d", i),
			URL:       fmt.Sprintf("https://example.com/p/%d", i),
			Source:    "landbook",
			Tags:      pq.StringArray{"ポートフォリオ"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Save(ctx, &models.Reference{
		OwnerID:     owner.ID,
		Title:       "Dark SaaS landing",
		Description: "dashboard concept",
		URL:         "https://example.com/dark",
		Source:      "muzli",
		Tags:        pq.StringArray{"ダークモード", "SaaS"},
		CreatedAt:   base.Add(time.Hour),
	}))
	require.NoError(t, repo.Save(ctx, &models.Reference{
		OwnerID: other.ID,
		Title:   "Portfolio not mine",
		URL:     "https://example.com/theirs",
		Source:  "landbook",
	}))

	t.Run("owner filter always applied", func(t *testing.T) {
		rows, total, err := repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
		assert.Len(t, rows, 6)
	})

	t.Run("pagination window with total", func(t *testing.T) {
		rows, total, err := repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Limit: 2, Offset: 0})
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
		assert.Len(t, rows, 2)
		assert.Equal(t, "Dark SaaS landing", rows[0].Title, "newest first")

		rows, total, err = repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Limit: 4, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
		assert.Len(t, rows, 2)

		rows, _, err = repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Limit: 2, Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("case-insensitive text over title description and tags", func(t *testing.T) {
		rows, total, err := repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Query: "DARK", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, rows, 1)
		assert.Equal(t, "Dark SaaS landing", rows[0].Title)

		_, total, err = repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Query: "dashboard", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		_, total, err = repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Query: "ポートフォリオ", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})

	t.Run("tag filter matches any requested name", func(t *testing.T) {
		_, total, err := repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Tags: []string{"SaaS", "存在しない"}, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("source filter exact with AND combination", func(t *testing.T) {
		_, total, err := repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Source: "landbook", Query: "portfolio", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)

		_, total, err = repo.Search(ctx, models.SearchQuery{OwnerID: owner.ID, Source: "muzli", Query: "portfolio", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestTagLedger(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewMemoryTagRepository(store)

	t.Run("ensure creates at zero and is idempotent", func(t *testing.T) {
		tag, err := repo.Ensure(ctx, "ミニマル")
		require.NoError(t, err)
		assert.Equal(t, 0, tag.Count)

		again, err := repo.Ensure(ctx, "ミニマル")
		require.NoError(t, err)
		assert.Equal(t, tag.ID, again.ID)
	})

	t.Run("increment creates missing tag at one", func(t *testing.T) {
		require.NoError(t, repo.Increment(ctx, "テック"))
		tag, err := repo.ByName(ctx, "テック")
		require.NoError(t, err)
		require.NotNil(t, tag)
		assert.Equal(t, 1, tag.Count)
	})

	t.Run("count equals number of increments", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Increment(ctx, "SaaS"))
		}
		tag, err := repo.ByName(ctx, "SaaS")
		require.NoError(t, err)
		assert.Equal(t, 3, tag.Count)
	})

	t.Run("list all ordered by count desc", func(t *testing.T) {
		rows, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rows), 3)
		assert.Equal(t, "SaaS", rows[0].Name)
		assert.Equal(t, "テック", rows[1].Name)
		for i := 1; i < len(rows); i++ {
			assert.LessOrEqual(t, rows[i].Count, rows[i-1].Count)
		}
	})

	t.Run("seed is idempotent and keeps counts", func(t *testing.T) {
		require.NoError(t, repo.Seed(ctx, []string{"SaaS", "新規シード"}))
		require.NoError(t, repo.Seed(ctx, []string{"SaaS", "新規シード"}))

		saas, err := repo.ByName(ctx, "SaaS")
		require.NoError(t, err)
		assert.Equal(t, 3, saas.Count, "seeding must not reset counts")

		seeded, err := repo.ByName(ctx, "新規シード")
		require.NoError(t, err)
		require.NotNil(t, seeded)
		assert.Equal(t, 0, seeded.Count)

		count, err := repo.Count(ctx, models.TagFilter{})
		require.NoError(t, err)
		names := map[string]bool{}
		rows, _ := repo.ListAll(ctx)
		for _, row := range rows {
			assert.False(t, names[row.Name], "no duplicate tag names")
			names[row.Name] = true
		}
		assert.Equal(t, int64(len(rows)), count)
	})
}
