// Package businessflow contains the core business logic and use cases for the reference service
package businessflow

import (
	"context"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/services"
	"github.com/ayatose/refbako/models"
	"github.com/ayatose/refbako/repository"
	"github.com/ayatose/refbako/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthFlow handles signup and login business logic
type AuthFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
}

// AuthFlowImpl implements the auth business flow
type AuthFlowImpl struct {
	accountRepo  repository.AccountRepository
	tokenService services.TokenService
	db           *gorm.DB
}

// NewAuthFlow creates a new auth flow instance
func NewAuthFlow(
	accountRepo repository.AccountRepository,
	tokenService services.TokenService,
	db *gorm.DB,
) AuthFlow {
	return &AuthFlowImpl{
		accountRepo:  accountRepo,
		tokenService: tokenService,
		db:           db,
	}
}

// Signup registers a new account and issues its first token
func (s *AuthFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.accountRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}
	if existing != nil {
		return nil, NewBusinessError("EMAIL_TAKEN", "Email already registered", ErrEmailAlreadyExists)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	account := &models.Account{
		UUID:         uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		IsActive:     utils.ToPtr(true),
	}

	err = runInTx(ctx, s.db, func(txCtx context.Context) error {
		return s.accountRepo.Save(txCtx, account)
	})
	if err != nil {
		// Concurrent signup with the same email loses the uk_accounts_email
		// race; report it as the same conflict as the pre-check.
		if repository.IsUniqueViolation(err) {
			return nil, NewBusinessError("EMAIL_TAKEN", "Email already registered", ErrEmailAlreadyExists)
		}
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	token, err := s.tokenService.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	log.Printf("account created: id=%d request_id=%s", account.ID, metadata.RequestID)

	return &dto.AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: utils.AccessTokenTTLSeconds,
		Account:   ToAuthAccountDTO(*account),
	}, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password both return the same generic error so callers cannot enumerate
// accounts.
func (s *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	account, err := s.accountRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}
	if account == nil {
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrInvalidCredentials)
	}
	if !utils.IsTrue(account.IsActive) {
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrAccountInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrInvalidCredentials)
	}

	token, err := s.tokenService.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	if err := s.accountRepo.UpdateLastLogin(ctx, account.ID); err != nil {
		log.Printf("failed to stamp last login for account %d: %v", account.ID, err)
	}

	log.Printf("account logged in: id=%d request_id=%s", account.ID, metadata.RequestID)

	return &dto.AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: utils.AccessTokenTTLSeconds,
		Account:   ToAuthAccountDTO(*account),
	}, nil
}
