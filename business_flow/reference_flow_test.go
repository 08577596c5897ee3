package businessflow

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/services"
	"github.com/ayatose/refbako/models"
	"github.com/ayatose/refbako/repository"
)

type referenceFixture struct {
	flow     ReferenceFlow
	refRepo  repository.ReferenceRepository
	tagRepo  repository.TagRepository
	analyzer *services.MockAnalyzerService
}

func newReferenceFixture(t *testing.T) *referenceFixture {
	t.Helper()

	store := repository.NewMemoryStore()
	refRepo := repository.NewMemoryReferenceRepository(store)
	tagRepo := repository.NewMemoryTagRepository(store)
	analyzer := services.NewMockAnalyzerService(nil, nil)

	return &referenceFixture{
		flow:     NewReferenceFlow(refRepo, tagRepo, analyzer, nil),
		refRepo:  refRepo,
		tagRepo:  tagRepo,
		analyzer: analyzer,
	}
}

func (f *referenceFixture) seed(t *testing.T, ownerID uint, ref models.Reference) *models.Reference {
	t.Helper()
	ref.OwnerID = ownerID
	stored, _, err := f.refRepo.UpsertByURL(context.Background(), &ref)
	require.NoError(t, err)
	return stored
}

func TestGetReference(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()

	stored := f.seed(t, 1, models.Reference{
		Title: "Studio",
		URL:   "https://example.com/studio",
		Tags:  models.MergeTagNames(nil, []string{"ミニマル"}),
	})

	t.Run("returns owned reference", func(t *testing.T) {
		got, err := f.flow.GetReference(ctx, stored.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, "Studio", got.Title)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := f.flow.GetReference(ctx, 999, 1)
		require.Error(t, err)
		assert.True(t, IsReferenceNotFound(err))
	})

	t.Run("other owner is denied, not hidden", func(t *testing.T) {
		_, err := f.flow.GetReference(ctx, stored.ID, 2)
		require.Error(t, err)
		assert.True(t, IsReferenceAccessDenied(err))
		assert.False(t, IsReferenceNotFound(err))
	})
}

func TestDeleteReference(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()

	stored := f.seed(t, 1, models.Reference{
		Title: "Studio",
		URL:   "https://example.com/studio",
	})

	t.Run("other owner cannot delete", func(t *testing.T) {
		err := f.flow.DeleteReference(ctx, stored.ID, 2)
		require.Error(t, err)
		assert.True(t, IsReferenceAccessDenied(err))

		still, err := f.refRepo.ByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.NotNil(t, still)
	})

	t.Run("owner deletes", func(t *testing.T) {
		require.NoError(t, f.flow.DeleteReference(ctx, stored.ID, 1))

		gone, err := f.refRepo.ByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("repeat delete is not found", func(t *testing.T) {
		err := f.flow.DeleteReference(ctx, stored.ID, 1)
		require.Error(t, err)
		assert.True(t, IsReferenceNotFound(err))
	})
}

func TestSearchReferencesValidation(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()

	t.Run("limit over maximum", func(t *testing.T) {
		_, err := f.flow.SearchReferences(ctx, &dto.SearchReferencesRequest{Limit: 101}, 1)
		require.Error(t, err)
		assert.True(t, IsInvalidLimit(err))
	})

	t.Run("negative limit", func(t *testing.T) {
		_, err := f.flow.SearchReferences(ctx, &dto.SearchReferencesRequest{Limit: -1}, 1)
		require.Error(t, err)
		assert.True(t, IsInvalidLimit(err))
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := f.flow.SearchReferences(ctx, &dto.SearchReferencesRequest{Offset: -1}, 1)
		require.Error(t, err)
		assert.True(t, IsInvalidOffset(err))
	})

	t.Run("zero values default", func(t *testing.T) {
		resp, err := f.flow.SearchReferences(ctx, &dto.SearchReferencesRequest{}, 1)
		require.NoError(t, err)
		assert.Zero(t, resp.Total)
		assert.Empty(t, resp.References)
	})
}

func TestSearchReferences(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()

	f.seed(t, 1, models.Reference{
		Title: "Minimal studio",
		URL:   "https://example.com/a",
		Tags:  models.MergeTagNames(nil, []string{"ミニマル"}),
	})
	f.seed(t, 1, models.Reference{
		Title:  "SaaS landing",
		URL:    "https://example.com/b",
		Source: "Muzli",
		Tags:   models.MergeTagNames(nil, []string{"SaaS"}),
	})
	f.seed(t, 2, models.Reference{
		Title: "Minimal other owner",
		URL:   "https://example.com/c",
		Tags:  models.MergeTagNames(nil, []string{"ミニマル"}),
	})

	resp, err := f.flow.SearchReferences(ctx, &dto.SearchReferencesRequest{Query: "minimal"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.References, 1)
	assert.Equal(t, "Minimal studio", resp.References[0].Title)

	resp, err = f.flow.SearchReferences(ctx, &dto.SearchReferencesRequest{Source: "Muzli"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)
}

func TestCopyReference(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()

	t.Run("formats the full block", func(t *testing.T) {
		stored := f.seed(t, 1, models.Reference{
			Title:       "Minimal studio",
			Description: "白基調のポートフォリオ",
			URL:         "https://example.com/studio",
			Source:      "Land-book",
			Tags:        models.MergeTagNames(nil, []string{"ミニマル", "ポートフォリオ"}),
		})

		resp, err := f.flow.CopyReference(ctx, stored.ID, 1)
		require.NoError(t, err)

		want := "Minimal studio\n" +
			"白基調のポートフォリオ\n" +
			"URL: https://example.com/studio\n" +
			"Tags: ミニマル, ポートフォリオ\n" +
			"Source: Land-book"
		assert.Equal(t, want, resp.Text)
		assert.Equal(t, stored.ID, resp.Reference.ID)
	})

	t.Run("missing description leaves an empty line", func(t *testing.T) {
		stored := f.seed(t, 1, models.Reference{
			Title:  "Bare",
			URL:    "https://example.com/bare",
			Source: "手動追加",
			Tags:   models.MergeTagNames(nil, []string{"未分類"}),
		})

		resp, err := f.flow.CopyReference(ctx, stored.ID, 1)
		require.NoError(t, err)

		want := "Bare\n" +
			"\n" +
			"URL: https://example.com/bare\n" +
			"Tags: 未分類\n" +
			"Source: 手動追加"
		assert.Equal(t, want, resp.Text)
	})

	t.Run("other owner is denied", func(t *testing.T) {
		stored := f.seed(t, 1, models.Reference{
			Title: "Private",
			URL:   "https://example.com/private",
		})

		_, err := f.flow.CopyReference(ctx, stored.ID, 2)
		require.Error(t, err)
		assert.True(t, IsReferenceAccessDenied(err))
	})
}

func TestAnalyzeReference(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces tags and marks analyzed", func(t *testing.T) {
		f := newReferenceFixture(t)
		f.analyzer.Result = &services.AnalysisResult{
			Tags:                []string{"ダークモード", "SaaS"},
			EnhancedDescription: "ダークモードのSaaS LP",
		}

		stored := f.seed(t, 1, models.Reference{
			Title: "Dark landing",
			URL:   "https://example.com/dark",
			Tags:  models.MergeTagNames(nil, []string{"未分類"}),
		})

		got, err := f.flow.AnalyzeReference(ctx, stored.ID, 1)
		require.NoError(t, err)

		assert.Equal(t, []string{"ダークモード", "SaaS"}, got.Tags)
		assert.Equal(t, "ダークモードのSaaS LP", got.Description)
		assert.True(t, got.AIAnalyzed)

		reloaded, err := f.refRepo.ByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.AIAnalyzed)

		// Re-analysis registers tag names without counting a creation.
		tag, err := f.tagRepo.ByName(ctx, "ダークモード")
		require.NoError(t, err)
		require.NotNil(t, tag)
		assert.Zero(t, tag.Count)
	})

	t.Run("analyzer failure surfaces and leaves the row untouched", func(t *testing.T) {
		f := newReferenceFixture(t)
		f.analyzer.Err = errors.New("rate limited")

		stored := f.seed(t, 1, models.Reference{
			Title: "Plain",
			URL:   "https://example.com/plain",
			Tags:  models.MergeTagNames(nil, []string{"未分類"}),
		})

		_, err := f.flow.AnalyzeReference(ctx, stored.ID, 1)
		require.Error(t, err)
		assert.True(t, IsAnalysisFailed(err))

		reloaded, err := f.refRepo.ByID(ctx, stored.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.AIAnalyzed)
		assert.Equal(t, []string{"未分類"}, []string(reloaded.Tags))
	})
}

func TestExportReferences(t *testing.T) {
	f := newReferenceFixture(t)
	ctx := context.Background()

	f.seed(t, 1, models.Reference{
		Title:  "Minimal studio",
		URL:    "https://example.com/studio",
		Source: "Land-book",
		Tags:   models.MergeTagNames(nil, []string{"ミニマル", "ポートフォリオ"}),
	})
	f.seed(t, 2, models.Reference{
		Title: "Other owner",
		URL:   "https://example.com/other",
	})

	raw, err := f.flow.ExportReferences(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	book, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("References")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Title", rows[0][0])
	assert.Equal(t, "Minimal studio", rows[1][0])
	assert.Equal(t, "ミニマル, ポートフォリオ", rows[1][5])
}
