// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"time"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/models"
	"github.com/ayatose/refbako/repository"
	"gorm.io/gorm"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for logging and tracing
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// runInTx wraps fn in a database transaction when a durable backend is
// wired. The memory backend has no transaction support, so fn runs directly
// and relies on the store's own locking.
func runInTx(ctx context.Context, db *gorm.DB, fn func(context.Context) error) error {
	if db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, db, fn)
}

// ToAuthAccountDTO converts an account model to AuthAccountDTO for authentication responses
func ToAuthAccountDTO(account models.Account) dto.AuthAccountDTO {
	return dto.AuthAccountDTO{
		ID:        account.ID,
		UUID:      account.UUID.String(),
		Username:  account.Username,
		Email:     account.Email,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
}

// ToReferenceDTO converts a reference model to its API representation
func ToReferenceDTO(ref models.Reference) dto.ReferenceDTO {
	tags := make([]string, len(ref.Tags))
	copy(tags, ref.Tags)
	return dto.ReferenceDTO{
		ID:          ref.ID,
		UUID:        ref.UUID.String(),
		Title:       ref.Title,
		Description: ref.Description,
		URL:         ref.URL,
		ImageURL:    ref.ImageURL,
		Source:      ref.Source,
		Tags:        tags,
		AIAnalyzed:  ref.AIAnalyzed,
		CreatedAt:   ref.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   ref.UpdatedAt.Format(time.RFC3339),
	}
}

// ToReferenceDTOs converts a slice of reference models
func ToReferenceDTOs(refs []*models.Reference) []dto.ReferenceDTO {
	out := make([]dto.ReferenceDTO, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ToReferenceDTO(*ref))
	}
	return out
}

// ToTagDTOs converts a slice of tag models
func ToTagDTOs(tags []*models.Tag) []dto.TagDTO {
	out := make([]dto.TagDTO, 0, len(tags))
	for _, tag := range tags {
		out = append(out, dto.TagDTO{ID: tag.ID, Name: tag.Name, Count: tag.Count})
	}
	return out
}
