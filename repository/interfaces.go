// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/ayatose/refbako/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AccountRepository defines operations for accounts
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByEmail(ctx context.Context, email string) (*models.Account, error)
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, accountID uint) error
}

// ReferenceRepository defines operations for references.
// URL-keyed operations expect the URL already normalized; UpsertByURL is the
// single write entry point for ingestion so duplicate URLs merge instead of
// inserting twice.
type ReferenceRepository interface {
	Repository[models.Reference, models.ReferenceFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Reference, error)
	ByOwnerAndURL(ctx context.Context, ownerID uint, url string) (*models.Reference, error)
	// UpsertByURL inserts the candidate or merges it into the owner's
	// existing row for the same normalized URL. The returned bool is true
	// when a new row was created.
	UpsertByURL(ctx context.Context, candidate *models.Reference) (*models.Reference, bool, error)
	Update(ctx context.Context, reference *models.Reference) error
	// Delete removes the reference only when it belongs to ownerID and
	// reports whether a row was removed.
	Delete(ctx context.Context, id, ownerID uint) (bool, error)
	// Search returns the page of matching references plus the total match
	// count before pagination.
	Search(ctx context.Context, query models.SearchQuery) ([]*models.Reference, int64, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]*models.Reference, error)
}

// TagRepository defines operations for the tag ledger
type TagRepository interface {
	Repository[models.Tag, models.TagFilter]
	ByName(ctx context.Context, name string) (*models.Tag, error)
	// Ensure returns the tag with the given name, creating it at count 0 if
	// missing. A concurrent create losing the uniqueness race resolves to
	// the winner's row.
	Ensure(ctx context.Context, name string) (*models.Tag, error)
	// Increment raises the named tag's count by one, ensuring it first.
	Increment(ctx context.Context, name string) error
	// ListAll returns every tag ordered by count descending, id ascending.
	ListAll(ctx context.Context) ([]*models.Tag, error)
	// Seed ensures the given names exist; idempotent, never resets counts.
	Seed(ctx context.Context, names []string) error
}
