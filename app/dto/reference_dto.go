package dto

// CreateReferenceRequest represents the payload for adding a single reference
type CreateReferenceRequest struct {
	URL         string   `json:"url" validate:"required,max=2048" example:"https://example.com/portfolio"`
	Title       string   `json:"title" validate:"omitempty,max=255" example:"Portfolio site"`
	Description string   `json:"description" validate:"omitempty,max=5000" example:"Clean grid layout"`
	ImageURL    string   `json:"image_url" validate:"omitempty,max=2048" example:"https://cdn.example.com/shot.png"`
	Tags        []string `json:"tags" validate:"omitempty,max=30,dive,min=1,max=255" example:"ミニマル,SaaS"`
	UseAI       bool     `json:"use_ai" example:"true"`
}

// SearchReferencesRequest represents the query parameters for listing references
type SearchReferencesRequest struct {
	Query  string   `json:"query" validate:"omitempty,max=255"`
	Tags   []string `json:"tags" validate:"omitempty,max=30,dive,min=1,max=255"`
	Source string   `json:"source" validate:"omitempty,max=100"`
	Limit  int      `json:"limit" validate:"omitempty,min=1,max=100"`
	Offset int      `json:"offset" validate:"omitempty,min=0"`
}

// ReferenceDTO represents a reference returned by the API
type ReferenceDTO struct {
	ID          uint     `json:"id" example:"42"`
	UUID        string   `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Title       string   `json:"title" example:"Portfolio site"`
	Description string   `json:"description" example:"Clean grid layout"`
	URL         string   `json:"url" example:"https://example.com/portfolio"`
	ImageURL    string   `json:"image_url,omitempty" example:"https://cdn.example.com/shot.png"`
	Source      string   `json:"source" example:"手動追加"`
	Tags        []string `json:"tags" example:"ミニマル,SaaS"`
	AIAnalyzed  bool     `json:"ai_analyzed" example:"false"`
	CreatedAt   string   `json:"created_at" example:"2025-01-15T10:30:00Z"`
	UpdatedAt   string   `json:"updated_at" example:"2025-01-15T10:30:00Z"`
}

// ReferenceListResponse represents a page of references with the total match count
type ReferenceListResponse struct {
	References []ReferenceDTO `json:"references"`
	Total      int64          `json:"total" example:"57"`
}

// CopyReferenceResponse represents the clipboard text export of a reference
type CopyReferenceResponse struct {
	Text      string       `json:"text"`
	Reference ReferenceDTO `json:"reference"`
}

// ScrapeRequest represents the payload for gallery scraping
type ScrapeRequest struct {
	Source string `json:"source" validate:"omitempty,max=100" example:"landbook"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=50" example:"10"`
}

// ScrapeResponse represents the outcome of a scrape-and-ingest run
type ScrapeResponse struct {
	Count      int            `json:"count" example:"8"`
	References []ReferenceDTO `json:"references"`
}

// TagDTO represents a tag with its usage count
type TagDTO struct {
	ID    uint   `json:"id" example:"7"`
	Name  string `json:"name" example:"ミニマル"`
	Count int    `json:"count" example:"12"`
}

// Common error codes for reference operations
const (
	ErrorReferenceNotFound = "REFERENCE_NOT_FOUND"
	ErrorNotOwner          = "NOT_OWNER"
	ErrorInvalidSource     = "INVALID_SOURCE"
	ErrorAnalysisFailed    = "ANALYSIS_FAILED"
)
