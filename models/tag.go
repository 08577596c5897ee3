package models

import "time"

// Tag represents a label used to categorize references
// Table: tags
// Unique by name; count is a lifetime usage counter incremented once per
// reference-creation event that includes the name, never decremented
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uk_tags_name" json:"name"`
	Count     int       `gorm:"not null;default:0;index:idx_tags_count" json:"count"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_tags_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Tag) TableName() string { return "tags" }

// TagFilter represents filter criteria for tag queries
type TagFilter struct {
	ID            *uint
	Name          *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
