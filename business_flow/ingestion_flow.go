package businessflow

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/services"
	"github.com/ayatose/refbako/models"
	"github.com/ayatose/refbako/repository"
	"github.com/ayatose/refbako/utils"
)

// IngestionFlow turns raw candidates (manual entry or scraper output) into
// persisted, deduplicated, tagged references. Analysis failures degrade to
// fallback tags and never abort ingestion.
type IngestionFlow interface {
	CreateReference(ctx context.Context, req *dto.CreateReferenceRequest, ownerID uint) (*dto.ReferenceDTO, bool, error)
	Scrape(ctx context.Context, req *dto.ScrapeRequest, ownerID uint) (*dto.ScrapeResponse, error)
	IngestOne(ctx context.Context, candidate services.ScrapedReference, ownerID uint, useAI bool, tags []string) (*models.Reference, bool, error)
	IngestBatch(ctx context.Context, candidates []services.ScrapedReference, ownerID uint) []IngestOutcome
}

// IngestOutcome is the per-candidate result of a batch ingestion. Failures
// are collected here instead of aborting sibling candidates.
type IngestOutcome struct {
	Candidate services.ScrapedReference
	Reference *models.Reference
	Created   bool
	Err       error
}

// IngestionFlowImpl implements the ingestion business flow
type IngestionFlowImpl struct {
	referenceRepo repository.ReferenceRepository
	tagRepo       repository.TagRepository
	analyzer      services.AnalyzerService
	scraper       services.ScraperService
	tagCache      *TagCache
	batchPause    time.Duration
}

// NewIngestionFlow creates a new ingestion flow instance
func NewIngestionFlow(
	referenceRepo repository.ReferenceRepository,
	tagRepo repository.TagRepository,
	analyzer services.AnalyzerService,
	scraper services.ScraperService,
	tagCache *TagCache,
) IngestionFlow {
	return &IngestionFlowImpl{
		referenceRepo: referenceRepo,
		tagRepo:       tagRepo,
		analyzer:      analyzer,
		scraper:       scraper,
		tagCache:      tagCache,
		batchPause:    utils.IngestBatchPause,
	}
}

// CreateReference ingests one manually entered candidate
func (s *IngestionFlowImpl) CreateReference(ctx context.Context, req *dto.CreateReferenceRequest, ownerID uint) (*dto.ReferenceDTO, bool, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, false, NewBusinessError("VALIDATION_FAILED", "URL is required", ErrReferenceURLRequired)
	}

	candidate := services.ScrapedReference{
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		ImageURL:    req.ImageURL,
		Source:      utils.ManualSource,
	}

	ref, created, err := s.IngestOne(ctx, candidate, ownerID, req.UseAI, req.Tags)
	if err != nil {
		return nil, false, NewBusinessError("INGEST_FAILED", "Failed to save reference", err)
	}

	out := ToReferenceDTO(*ref)
	return &out, created, nil
}

// IngestOne runs the per-candidate state machine: optional analysis, tag
// fallback, then the dedup-aware upsert. Tag counts increment only when a
// new row was created; a merge into an existing row ensures new tag names
// exist in the ledger without counting a second creation.
func (s *IngestionFlowImpl) IngestOne(ctx context.Context, candidate services.ScrapedReference, ownerID uint, useAI bool, tags []string) (*models.Reference, bool, error) {
	if strings.TrimSpace(candidate.URL) == "" {
		return nil, false, ErrReferenceURLRequired
	}

	title := strings.TrimSpace(candidate.Title)
	if title == "" {
		title = utils.DefaultReferenceTitle
	}
	source := candidate.Source
	if source == "" {
		source = utils.ManualSource
	}

	description := candidate.Description
	aiAnalyzed := false

	if useAI && s.analyzer.Enabled() {
		result, err := s.analyzer.Analyze(ctx, candidate)
		if err != nil {
			log.Printf("analysis failed for %s, falling back: %v", candidate.URL, err)
		} else {
			tags = result.Tags
			if result.EnhancedDescription != "" {
				description = result.EnhancedDescription
			}
			aiAnalyzed = true
		}
	}

	if len(tags) == 0 {
		tags = []string{utils.FallbackTag}
	}

	ref := &models.Reference{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		URL:         utils.NormalizeURL(candidate.URL),
		ImageURL:    candidate.ImageURL,
		Source:      source,
		Tags:        models.MergeTagNames(nil, tags),
		AIAnalyzed:  aiAnalyzed,
	}

	stored, created, err := s.referenceRepo.UpsertByURL(ctx, ref)
	if err != nil {
		return nil, false, err
	}

	if created {
		for _, name := range stored.Tags {
			if err := s.tagRepo.Increment(ctx, name); err != nil {
				log.Printf("failed to increment tag %q: %v", name, err)
			}
		}
	} else {
		for _, name := range ref.Tags {
			if _, err := s.tagRepo.Ensure(ctx, name); err != nil {
				log.Printf("failed to ensure tag %q: %v", name, err)
			}
		}
	}
	s.tagCache.Invalidate(ctx)

	return stored, created, nil
}

// IngestBatch processes candidates in fixed-size groups with a pause
// between groups to respect external rate limits. Candidates within a group
// are analyzed and persisted concurrently; one candidate's failure never
// blocks its group.
func (s *IngestionFlowImpl) IngestBatch(ctx context.Context, candidates []services.ScrapedReference, ownerID uint) []IngestOutcome {
	outcomes := make([]IngestOutcome, len(candidates))

	for start := 0; start < len(candidates); start += utils.IngestBatchSize {
		end := start + utils.IngestBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				candidate := candidates[i]
				ref, created, err := s.IngestOne(ctx, candidate, ownerID, true, nil)
				outcomes[i] = IngestOutcome{
					Candidate: candidate,
					Reference: ref,
					Created:   created,
					Err:       err,
				}
			}(i)
		}
		wg.Wait()

		if end < len(candidates) {
			select {
			case <-ctx.Done():
				for i := end; i < len(candidates); i++ {
					outcomes[i] = IngestOutcome{Candidate: candidates[i], Err: ctx.Err()}
				}
				return outcomes
			case <-time.After(s.batchPause):
			}
		}
	}

	return outcomes
}

// Scrape gathers candidates from one gallery (or all of them) and ingests
// the batch. Zero candidates is a successful run with count 0, not an error.
func (s *IngestionFlowImpl) Scrape(ctx context.Context, req *dto.ScrapeRequest, ownerID uint) (*dto.ScrapeResponse, error) {
	source := req.Source
	if source == "" {
		source = services.SourceAll
	}
	if !s.scraper.IsKnownSource(source) {
		return nil, NewBusinessErrorf("INVALID_SOURCE", "Unknown scrape source: %s", ErrUnknownScrapeSource, source)
	}

	var candidates []services.ScrapedReference
	if source == services.SourceAll {
		candidates = s.scraper.ScrapeAll(ctx, req.Limit)
	} else {
		var err error
		candidates, err = s.scraper.Scrape(ctx, source, req.Limit)
		if err != nil {
			// A single unreachable gallery degrades to an empty result.
			log.Printf("scrape of %s failed: %v", source, err)
			candidates = nil
		}
	}

	resp := &dto.ScrapeResponse{References: []dto.ReferenceDTO{}}
	if len(candidates) == 0 {
		return resp, nil
	}

	for _, outcome := range s.IngestBatch(ctx, candidates, ownerID) {
		if outcome.Err != nil {
			log.Printf("failed to ingest %s: %v", outcome.Candidate.URL, outcome.Err)
			continue
		}
		resp.Count++
		resp.References = append(resp.References, ToReferenceDTO(*outcome.Reference))
	}
	return resp, nil
}
