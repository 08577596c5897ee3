package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/services"
	"github.com/ayatose/refbako/models"
	"github.com/ayatose/refbako/repository"
	"github.com/ayatose/refbako/utils"
	"github.com/xuri/excelize/v2"
)

// ReferenceFlow handles reads, deletion, and per-reference operations on an
// owner's collection
type ReferenceFlow interface {
	GetReference(ctx context.Context, id, ownerID uint) (*dto.ReferenceDTO, error)
	SearchReferences(ctx context.Context, req *dto.SearchReferencesRequest, ownerID uint) (*dto.ReferenceListResponse, error)
	DeleteReference(ctx context.Context, id, ownerID uint) error
	CopyReference(ctx context.Context, id, ownerID uint) (*dto.CopyReferenceResponse, error)
	AnalyzeReference(ctx context.Context, id, ownerID uint) (*dto.ReferenceDTO, error)
	ExportReferences(ctx context.Context, ownerID uint) ([]byte, error)
}

// ReferenceFlowImpl implements the reference business flow
type ReferenceFlowImpl struct {
	referenceRepo repository.ReferenceRepository
	tagRepo       repository.TagRepository
	analyzer      services.AnalyzerService
	tagCache      *TagCache
}

// NewReferenceFlow creates a new reference flow instance
func NewReferenceFlow(
	referenceRepo repository.ReferenceRepository,
	tagRepo repository.TagRepository,
	analyzer services.AnalyzerService,
	tagCache *TagCache,
) ReferenceFlow {
	return &ReferenceFlowImpl{
		referenceRepo: referenceRepo,
		tagRepo:       tagRepo,
		analyzer:      analyzer,
		tagCache:      tagCache,
	}
}

// loadOwned fetches a reference and enforces ownership. Missing ids map to
// not-found; existing rows owned by someone else map to access-denied, which
// intentionally reveals existence.
func (s *ReferenceFlowImpl) loadOwned(ctx context.Context, id, ownerID uint) (*models.Reference, error) {
	ref, err := s.referenceRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("REFERENCE_LOOKUP_FAILED", "Failed to load reference", err)
	}
	if ref == nil {
		return nil, NewBusinessError("REFERENCE_NOT_FOUND", "Reference not found", ErrReferenceNotFound)
	}
	if ref.OwnerID != ownerID {
		return nil, NewBusinessError("NOT_OWNER", "Reference belongs to another account", ErrReferenceAccessDenied)
	}
	return ref, nil
}

// GetReference returns one of the owner's references
func (s *ReferenceFlowImpl) GetReference(ctx context.Context, id, ownerID uint) (*dto.ReferenceDTO, error) {
	ref, err := s.loadOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	out := ToReferenceDTO(*ref)
	return &out, nil
}

// SearchReferences returns the filtered, paginated page of the owner's
// references plus the total match count
func (s *ReferenceFlowImpl) SearchReferences(ctx context.Context, req *dto.SearchReferencesRequest, ownerID uint) (*dto.ReferenceListResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = utils.DefaultPageLimit
	}
	if limit < 1 || limit > utils.MaxPageLimit {
		return nil, NewBusinessError("VALIDATION_FAILED", "Invalid limit", ErrInvalidLimit)
	}
	if req.Offset < 0 {
		return nil, NewBusinessError("VALIDATION_FAILED", "Invalid offset", ErrInvalidOffset)
	}

	rows, total, err := s.referenceRepo.Search(ctx, models.SearchQuery{
		OwnerID: ownerID,
		Query:   req.Query,
		Tags:    req.Tags,
		Source:  req.Source,
		Limit:   limit,
		Offset:  req.Offset,
	})
	if err != nil {
		return nil, NewBusinessError("SEARCH_FAILED", "Failed to search references", err)
	}

	return &dto.ReferenceListResponse{
		References: ToReferenceDTOs(rows),
		Total:      total,
	}, nil
}

// DeleteReference removes one of the owner's references. Tag counts are not
// rolled back: the ledger counts creation events, not live references.
func (s *ReferenceFlowImpl) DeleteReference(ctx context.Context, id, ownerID uint) error {
	if _, err := s.loadOwned(ctx, id, ownerID); err != nil {
		return err
	}

	removed, err := s.referenceRepo.Delete(ctx, id, ownerID)
	if err != nil {
		return NewBusinessError("DELETE_FAILED", "Failed to delete reference", err)
	}
	if !removed {
		return NewBusinessError("REFERENCE_NOT_FOUND", "Reference not found", ErrReferenceNotFound)
	}
	return nil
}

// CopyReference formats a reference as the fixed plain-text clipboard block
func (s *ReferenceFlowImpl) CopyReference(ctx context.Context, id, ownerID uint) (*dto.CopyReferenceResponse, error) {
	ref, err := s.loadOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	text := strings.Join([]string{
		ref.Title,
		ref.Description,
		"URL: " + ref.URL,
		"Tags: " + strings.Join(ref.Tags, ", "),
		"Source: " + ref.Source,
	}, "\n")

	return &dto.CopyReferenceResponse{
		Text:      text,
		Reference: ToReferenceDTO(*ref),
	}, nil
}

// AnalyzeReference forces re-analysis of a stored reference. Unlike
// ingestion, an analyzer failure here surfaces to the caller: the user
// explicitly asked for analysis and must learn it did not happen.
func (s *ReferenceFlowImpl) AnalyzeReference(ctx context.Context, id, ownerID uint) (*dto.ReferenceDTO, error) {
	ref, err := s.loadOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	result, err := s.analyzer.Analyze(ctx, services.ScrapedReference{
		Title:       ref.Title,
		Description: ref.Description,
		URL:         ref.URL,
		ImageURL:    ref.ImageURL,
		Source:      ref.Source,
	})
	if err != nil {
		return nil, NewBusinessError("ANALYSIS_FAILED", "Analysis failed", ErrAnalysisFailed)
	}

	ref.Tags = models.MergeTagNames(nil, result.Tags)
	if result.EnhancedDescription != "" {
		ref.Description = result.EnhancedDescription
	}
	ref.AIAnalyzed = true

	if err := s.referenceRepo.Update(ctx, ref); err != nil {
		return nil, NewBusinessError("ANALYSIS_FAILED", "Failed to save analyzed reference", err)
	}

	// Re-analysis is not a creation event: new tag names join the ledger
	// without incrementing counts.
	for _, name := range ref.Tags {
		if _, err := s.tagRepo.Ensure(ctx, name); err != nil {
			log.Printf("failed to ensure tag %q: %v", name, err)
		}
	}
	s.tagCache.Invalidate(ctx)

	out := ToReferenceDTO(*ref)
	return &out, nil
}

// ExportReferences builds an xlsx workbook of the owner's collection
func (s *ReferenceFlowImpl) ExportReferences(ctx context.Context, ownerID uint) ([]byte, error) {
	rows, err := s.referenceRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, NewBusinessError("EXPORT_FAILED", "Failed to load references", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "References"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Title", "Description", "URL", "Image URL", "Source", "Tags", "AI Analyzed", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, NewBusinessError("EXPORT_FAILED", "Failed to build export", err)
		}
	}

	for rowIdx, ref := range rows {
		values := []any{
			ref.Title,
			ref.Description,
			ref.URL,
			ref.ImageURL,
			ref.Source,
			strings.Join(ref.Tags, ", "),
			ref.AIAnalyzed,
			ref.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, NewBusinessError("EXPORT_FAILED", "Failed to build export", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXPORT_FAILED", fmt.Sprintf("Failed to serialize export for account %d", ownerID), err)
	}
	return buf.Bytes(), nil
}
