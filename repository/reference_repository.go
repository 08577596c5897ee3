package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayatose/refbako/models"
	"github.com/ayatose/refbako/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ReferenceRepositoryImpl implements ReferenceRepository interface
type ReferenceRepositoryImpl struct {
	*BaseRepository[models.Reference, models.ReferenceFilter]
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &ReferenceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Reference, models.ReferenceFilter](db),
	}
}

// ByUUID retrieves a reference by UUID
func (r *ReferenceRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Reference, error) {
	db := r.getDB(ctx)
	var row models.Reference
	if err := db.Where("uuid = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByOwnerAndURL retrieves the owner's reference for a normalized URL
func (r *ReferenceRepositoryImpl) ByOwnerAndURL(ctx context.Context, ownerID uint, url string) (*models.Reference, error) {
	db := r.getDB(ctx)
	var row models.Reference
	if err := db.Where("owner_id = ? AND url = ?", ownerID, url).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpsertByURL inserts the candidate or merges it into the owner's existing
// row for the same URL. Candidate URL must already be normalized. A
// concurrent insert losing the (owner_id, url) uniqueness race falls back to
// loading the winner and merging into it.
func (r *ReferenceRepositoryImpl) UpsertByURL(ctx context.Context, candidate *models.Reference) (*models.Reference, bool, error) {
	existing, err := r.ByOwnerAndURL(ctx, candidate.OwnerID, candidate.URL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up reference by url: %w", err)
	}
	if existing != nil {
		existing.MergeFrom(candidate)
		if err := r.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if candidate.UUID == uuid.Nil {
		candidate.UUID = uuid.New()
	}
	err = r.Save(ctx, candidate)
	if err == nil {
		return candidate, true, nil
	}
	if !IsUniqueViolation(err) {
		return nil, false, err
	}

	// Lost the insert race: another request created the row between the
	// lookup and the insert. Merge into the winner instead.
	existing, lookupErr := r.ByOwnerAndURL(ctx, candidate.OwnerID, candidate.URL)
	if lookupErr != nil {
		return nil, false, fmt.Errorf("failed to resolve upsert race: %w", lookupErr)
	}
	if existing == nil {
		return nil, false, err
	}
	existing.MergeFrom(candidate)
	if err := r.Update(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Update persists changes to an existing reference
func (r *ReferenceRepositoryImpl) Update(ctx context.Context, reference *models.Reference) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	reference.UpdatedAt = utils.UTCNow()
	err = db.Save(reference).Error
	if err != nil {
		return fmt.Errorf("failed to update reference: %w", err)
	}
	return nil
}

// Delete removes the reference only when it belongs to ownerID
func (r *ReferenceRepositoryImpl) Delete(ctx context.Context, id, ownerID uint) (bool, error) {
	db := r.getDB(ctx)
	result := db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Reference{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete reference: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// applySearch builds the filter conjunction for a search query
func (r *ReferenceRepositoryImpl) applySearch(query *gorm.DB, q models.SearchQuery) *gorm.DB {
	query = query.Where("owner_id = ?", q.OwnerID)
	if q.Query != "" {
		pattern := "%" + q.Query + "%"
		query = query.Where(
			"title ILIKE ? OR description ILIKE ? OR EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE ?)",
			pattern, pattern, pattern,
		)
	}
	if len(q.Tags) > 0 {
		query = query.Where("tags && ?", pq.StringArray(q.Tags))
	}
	if q.Source != "" {
		query = query.Where("source = ?", q.Source)
	}
	return query
}

// Search returns the page of matching references ordered newest first, plus
// the total match count before pagination
func (r *ReferenceRepositoryImpl) Search(ctx context.Context, q models.SearchQuery) ([]*models.Reference, int64, error) {
	db := r.getDB(ctx)
	query := r.applySearch(db.Model(&models.Reference{}), q)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count references: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = utils.DefaultPageLimit
	}

	var rows []*models.Reference
	err := query.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(q.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search references: %w", err)
	}
	return rows, total, nil
}

// ListByOwner returns all of an owner's references ordered newest first
func (r *ReferenceRepositoryImpl) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Reference, error) {
	db := r.getDB(ctx)
	var rows []*models.Reference
	err := db.Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ReferenceRepositoryImpl) applyFilter(query *gorm.DB, filter models.ReferenceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.URL != nil {
		query = query.Where("url = ?", *filter.URL)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.AIAnalyzed != nil {
		query = query.Where("ai_analyzed = ?", *filter.AIAnalyzed)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves references based on filter criteria
func (r *ReferenceRepositoryImpl) ByFilter(ctx context.Context, filter models.ReferenceFilter, orderBy string, limit, offset int) ([]*models.Reference, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Reference{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Reference
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of references matching the filter
func (r *ReferenceRepositoryImpl) Count(ctx context.Context, filter models.ReferenceFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Reference{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any reference matching the filter exists
func (r *ReferenceRepositoryImpl) Exists(ctx context.Context, filter models.ReferenceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
