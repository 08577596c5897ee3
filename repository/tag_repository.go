package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayatose/refbako/models"
	"gorm.io/gorm"
)

// TagRepositoryImpl implements TagRepository interface
type TagRepositoryImpl struct {
	*BaseRepository[models.Tag, models.TagFilter]
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &TagRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Tag, models.TagFilter](db),
	}
}

// ByName retrieves a tag by exact name
func (r *TagRepositoryImpl) ByName(ctx context.Context, name string) (*models.Tag, error) {
	db := r.getDB(ctx)
	var row models.Tag
	if err := db.Where("name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Ensure returns the tag with the given name, creating it at count 0 when
// missing. Losing the uk_tags_name insert race resolves to the winner's row.
func (r *TagRepositoryImpl) Ensure(ctx context.Context, name string) (*models.Tag, error) {
	existing, err := r.ByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	tag := &models.Tag{Name: name, Count: 0}
	err = r.Save(ctx, tag)
	if err == nil {
		return tag, nil
	}
	if !IsUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
	}

	existing, lookupErr := r.ByName(ctx, name)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing == nil {
		return nil, err
	}
	return existing, nil
}

// Increment raises the named tag's count by one, creating the tag first when
// it does not exist. The UPDATE is atomic so concurrent increments never
// lose counts.
func (r *TagRepositoryImpl) Increment(ctx context.Context, name string) error {
	if _, err := r.Ensure(ctx, name); err != nil {
		return err
	}
	db := r.getDB(ctx)
	return db.Model(&models.Tag{}).
		Where("name = ?", name).
		UpdateColumn("count", gorm.Expr("count + 1")).Error
}

// ListAll returns every tag ordered by count descending, id ascending
func (r *TagRepositoryImpl) ListAll(ctx context.Context) ([]*models.Tag, error) {
	db := r.getDB(ctx)
	var rows []*models.Tag
	if err := db.Order("count DESC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Seed ensures the given tag names exist. Idempotent: existing tags and
// their counts are untouched.
func (r *TagRepositoryImpl) Seed(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := r.Ensure(ctx, name); err != nil {
			return fmt.Errorf("failed to seed tag %q: %w", name, err)
		}
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *TagRepositoryImpl) applyFilter(query *gorm.DB, filter models.TagFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves tags based on filter criteria
func (r *TagRepositoryImpl) ByFilter(ctx context.Context, filter models.TagFilter, orderBy string, limit, offset int) ([]*models.Tag, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Tag{})

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

	var rows []*models.Tag
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of tags matching the filter
func (r *TagRepositoryImpl) Count(ctx context.Context, filter models.TagFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Tag{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any tag matching the filter exists
func (r *TagRepositoryImpl) Exists(ctx context.Context, filter models.TagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
