// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SignupRequest represents the request payload for account registration
type SignupRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=255" example:"designlover"`
	Email    string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// LoginRequest represents the request payload for account login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// AuthAccountDTO represents account information returned by auth endpoints
type AuthAccountDTO struct {
	ID        uint   `json:"id" example:"123"`
	UUID      string `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Username  string `json:"username" example:"designlover"`
	Email     string `json:"email" example:"user@example.com"`
	CreatedAt string `json:"created_at" example:"2025-01-15T10:30:00Z"`
}

// AuthResponse represents the payload for successful signup and login
type AuthResponse struct {
	Token     string         `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType string         `json:"token_type" example:"Bearer"`
	ExpiresIn int            `json:"expires_in" example:"604800"`
	Account   AuthAccountDTO `json:"account"`
}

// Common error codes for auth operations
const (
	ErrorEmailTaken         = "EMAIL_TAKEN"
	ErrorInvalidCredentials = "INVALID_CREDENTIALS"
	ErrorUnauthorized       = "UNAUTHORIZED"
)
