package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Reference represents a bookmarked design-site entry
// Table: references
// URL is stored in normalized form and unique per owner
// Tags is an ordered set: insertion order preserved, membership deduplicated
type Reference struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UUID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_references_uuid" json:"uuid"`
	OwnerID uint      `gorm:"not null;uniqueIndex:uk_references_owner_url;index:idx_references_owner_id" json:"owner_id"`
	Owner   *Account  `gorm:"foreignKey:OwnerID;references:ID" json:"-"`

	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	URL         string         `gorm:"size:2048;not null;uniqueIndex:uk_references_owner_url" json:"url"`
	ImageURL    string         `gorm:"size:2048" json:"image_url"`
	Source      string         `gorm:"size:100;not null;index:idx_references_source" json:"source"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`
	AIAnalyzed  bool           `gorm:"default:false" json:"ai_analyzed"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_references_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Reference) TableName() string { return "references" }

// MergeFrom folds an incoming candidate into an existing reference with the
// same owner and normalized URL. Non-empty incoming scalar fields win, tags
// are unioned with existing order preserved and new names appended, and
// AIAnalyzed is monotonic: once true it stays true.
func (r *Reference) MergeFrom(in *Reference) {
	if in.Title != "" {
		r.Title = in.Title
	}
	if in.Description != "" {
		r.Description = in.Description
	}
	if in.ImageURL != "" {
		r.ImageURL = in.ImageURL
	}
	if in.Source != "" {
		r.Source = in.Source
	}
	r.Tags = MergeTagNames(r.Tags, in.Tags)
	r.AIAnalyzed = r.AIAnalyzed || in.AIAnalyzed
}

// MergeTagNames unions two tag sequences: existing names keep their relative
// order, names new to the sequence are appended in input order, duplicates
// are dropped.
func MergeTagNames(existing, incoming []string) pq.StringArray {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make(pq.StringArray, 0, len(existing)+len(incoming))
	for _, lists := range [][]string{existing, incoming} {
		for _, name := range lists {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			merged = append(merged, name)
		}
	}
	return merged
}

// ReferenceFilter represents filter criteria for reference queries
type ReferenceFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	OwnerID       *uint
	URL           *string
	Source        *string
	AIAnalyzed    *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// SearchQuery is the ephemeral parameter object for reference search.
// Query matches title, description, or any tag name (case-insensitive
// substring); Tags matches references containing any of the given names;
// Source is an exact match. All provided filters combine with AND and the
// owner filter is always applied.
type SearchQuery struct {
	OwnerID uint
	Query   string
	Tags    []string
	Source  string
	Limit   int
	Offset  int
}
