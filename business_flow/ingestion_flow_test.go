package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/services"
	"github.com/ayatose/refbako/repository"
	"github.com/ayatose/refbako/utils"
)

type ingestionFixture struct {
	flow     *IngestionFlowImpl
	refRepo  repository.ReferenceRepository
	tagRepo  repository.TagRepository
	analyzer *services.MockAnalyzerService
	scraper  *services.MockScraperService
}

func newIngestionFixture(t *testing.T) *ingestionFixture {
	t.Helper()

	store := repository.NewMemoryStore()
	refRepo := repository.NewMemoryReferenceRepository(store)
	tagRepo := repository.NewMemoryTagRepository(store)
	analyzer := services.NewMockAnalyzerService(nil, nil)
	scraper := services.NewMockScraperService()

	flow := NewIngestionFlow(refRepo, tagRepo, analyzer, scraper, nil).(*IngestionFlowImpl)
	flow.batchPause = time.Millisecond

	return &ingestionFixture{
		flow:     flow,
		refRepo:  refRepo,
		tagRepo:  tagRepo,
		analyzer: analyzer,
		scraper:  scraper,
	}
}

func (f *ingestionFixture) tagCount(t *testing.T, name string) int {
	t.Helper()
	tag, err := f.tagRepo.ByName(context.Background(), name)
	require.NoError(t, err)
	if tag == nil {
		return -1
	}
	return tag.Count
}

func TestCreateReference(t *testing.T) {
	ctx := context.Background()

	t.Run("caller tags win without analysis", func(t *testing.T) {
		f := newIngestionFixture(t)

		ref, created, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{
			URL:  "https://example.com/portfolio",
			Tags: []string{"ポートフォリオ", "ミニマル"},
		}, 1)
		require.NoError(t, err)

		assert.True(t, created)
		assert.Equal(t, []string{"ポートフォリオ", "ミニマル"}, ref.Tags)
		assert.Equal(t, utils.DefaultReferenceTitle, ref.Title)
		assert.Equal(t, utils.ManualSource, ref.Source)
		assert.False(t, ref.AIAnalyzed)
		assert.Equal(t, 1, f.tagCount(t, "ポートフォリオ"))
		assert.Equal(t, 1, f.tagCount(t, "ミニマル"))
	})

	t.Run("analyzer failure falls back to the default tag", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.analyzer.Err = errors.New("rate limited")

		ref, created, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{
			URL:   "https://example.com/saas",
			Title: "SaaS landing",
			UseAI: true,
		}, 1)
		require.NoError(t, err)

		assert.True(t, created)
		assert.Equal(t, []string{utils.FallbackTag}, ref.Tags)
		assert.False(t, ref.AIAnalyzed)
		assert.Equal(t, 1, f.tagCount(t, utils.FallbackTag))
	})

	t.Run("analyzer result replaces tags and description", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.analyzer.Result = &services.AnalysisResult{
			Tags:                []string{"SaaS", "ダークモード"},
			EnhancedDescription: "ダークモード基調のSaaS LP",
		}

		ref, created, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{
			URL:         "https://example.com/dark",
			Title:       "Dark landing",
			Description: "original",
			Tags:        []string{"手動タグ"},
			UseAI:       true,
		}, 1)
		require.NoError(t, err)

		assert.True(t, created)
		assert.Equal(t, []string{"SaaS", "ダークモード"}, ref.Tags)
		assert.Equal(t, "ダークモード基調のSaaS LP", ref.Description)
		assert.True(t, ref.AIAnalyzed)
		assert.Len(t, f.analyzer.Calls, 1)
		assert.Equal(t, -1, f.tagCount(t, "手動タグ"))
	})

	t.Run("disabled analyzer skips analysis", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.analyzer.Disabled = true

		ref, _, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{
			URL:   "https://example.com/plain",
			UseAI: true,
		}, 1)
		require.NoError(t, err)

		assert.Equal(t, []string{utils.FallbackTag}, ref.Tags)
		assert.False(t, ref.AIAnalyzed)
		assert.Empty(t, f.analyzer.Calls)
	})

	t.Run("rejects missing URL", func(t *testing.T) {
		f := newIngestionFixture(t)

		_, _, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{URL: "   "}, 1)
		require.Error(t, err)
		assert.True(t, IsReferenceURLRequired(err))
	})
}

func TestCreateReferenceDeduplicates(t *testing.T) {
	f := newIngestionFixture(t)
	ctx := context.Background()

	first, created, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{
		URL:   "http://Example.com/site/",
		Title: "First",
		Tags:  []string{"ミニマル"},
	}, 1)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{
		URL:   "https://example.com/site?utm_source=x",
		Title: "Second",
		Tags:  []string{"SaaS"},
	}, 1)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "https://example.com/site", second.URL)
	assert.Equal(t, "Second", second.Title)
	assert.Equal(t, []string{"ミニマル", "SaaS"}, second.Tags)

	// The merge is not a creation event: the new tag joins the ledger at
	// zero while the original keeps its single creation count.
	assert.Equal(t, 1, f.tagCount(t, "ミニマル"))
	assert.Equal(t, 0, f.tagCount(t, "SaaS"))
}

func TestCreateReferenceDeduplicatesSiteRoot(t *testing.T) {
	f := newIngestionFixture(t)
	ctx := context.Background()

	first, created, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{
		URL:   "https://example.com",
		Title: "Root without slash",
	}, 1)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "https://example.com/", first.URL)

	second, created, err := f.flow.CreateReference(ctx, &dto.CreateReferenceRequest{
		URL:   "https://example.com/",
		Title: "Root with slash",
	}, 1)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "https://example.com/", second.URL)
}

func TestIngestBatchIsolatesFailures(t *testing.T) {
	f := newIngestionFixture(t)
	ctx := context.Background()

	candidates := []services.ScrapedReference{
		{Title: "One", URL: "https://example.com/1", Source: "Land-book"},
		{URL: ""},
		{Title: "Three", URL: "https://example.com/3", Source: "Land-book"},
	}

	outcomes := f.flow.IngestBatch(ctx, candidates, 1)
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.True(t, outcomes[0].Created)
	assert.Error(t, outcomes[1].Err)
	assert.True(t, IsReferenceURLRequired(outcomes[1].Err))
	assert.NoError(t, outcomes[2].Err)
	assert.True(t, outcomes[2].Created)
}

func TestIngestBatchHonorsCancellation(t *testing.T) {
	f := newIngestionFixture(t)
	f.flow.batchPause = time.Minute

	candidates := make([]services.ScrapedReference, utils.IngestBatchSize+2)
	for i := range candidates {
		candidates[i] = services.ScrapedReference{
			Title:  "Site",
			URL:    "https://example.com/" + string(rune('a'+i)),
			Source: "Land-book",
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := f.flow.IngestBatch(ctx, candidates, 1)
	require.Len(t, outcomes, len(candidates))

	// The first group still runs; everything after the cancelled pause is
	// marked with the context error.
	for i := utils.IngestBatchSize; i < len(candidates); i++ {
		assert.ErrorIs(t, outcomes[i].Err, context.Canceled)
	}
}

func TestScrape(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unknown source", func(t *testing.T) {
		f := newIngestionFixture(t)

		_, err := f.flow.Scrape(ctx, &dto.ScrapeRequest{Source: "dribbble"}, 1)
		require.Error(t, err)
		assert.True(t, IsUnknownScrapeSource(err))
	})

	t.Run("ingests scraped candidates", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.scraper.Candidates[services.SourceLandBook] = []services.ScrapedReference{
			{Title: "Studio A", URL: "https://example.com/a", Source: "Land-book"},
			{Title: "Studio B", URL: "https://example.com/b", Source: "Land-book"},
		}

		resp, err := f.flow.Scrape(ctx, &dto.ScrapeRequest{Source: services.SourceLandBook}, 1)
		require.NoError(t, err)

		assert.Equal(t, 2, resp.Count)
		require.Len(t, resp.References, 2)
		assert.Equal(t, "Land-book", resp.References[0].Source)
		assert.Equal(t, []string{utils.FallbackTag}, resp.References[0].Tags)
	})

	t.Run("empty source scrapes all galleries", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.scraper.Candidates[services.SourceLandBook] = []services.ScrapedReference{
			{Title: "Studio A", URL: "https://example.com/a", Source: "Land-book"},
		}
		f.scraper.Candidates[services.SourceMuzli] = []services.ScrapedReference{
			{Title: "Post B", URL: "https://example.com/b", Source: "Muzli"},
		}
		f.scraper.Errs[services.SourceAwwwards] = errors.New("blocked")

		resp, err := f.flow.Scrape(ctx, &dto.ScrapeRequest{}, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("unreachable gallery yields empty success", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.scraper.Errs[services.SourceMuzli] = errors.New("timeout")

		resp, err := f.flow.Scrape(ctx, &dto.ScrapeRequest{Source: services.SourceMuzli}, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Count)
		assert.NotNil(t, resp.References)
		assert.Empty(t, resp.References)
	})
}
