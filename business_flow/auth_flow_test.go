package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/app/services"
	"github.com/ayatose/refbako/repository"
	"github.com/ayatose/refbako/utils"
)

func newAuthFlowForTest(t *testing.T) (AuthFlow, repository.AccountRepository) {
	t.Helper()

	store := repository.NewMemoryStore()
	accountRepo := repository.NewMemoryAccountRepository(store)

	tokenService, err := services.NewTokenService(
		time.Hour, "refbako-auth", "refbako-clients",
		false, "", "", "test-secret-key-for-jwt-token-generation-32-chars",
	)
	require.NoError(t, err)

	return NewAuthFlow(accountRepo, tokenService, nil), accountRepo
}

func TestSignup(t *testing.T) {
	flow, _ := newAuthFlowForTest(t)
	ctx := context.Background()
	metadata := &ClientMetadata{IPAddress: "127.0.0.1", RequestID: "test-req"}

	t.Run("creates account and issues token", func(t *testing.T) {
		resp, err := flow.Signup(ctx, &dto.SignupRequest{
			Email:    "  Hanako@Example.COM ",
			Password: "correct horse battery",
		}, metadata)
		require.NoError(t, err)

		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, utils.AccessTokenTTLSeconds, resp.ExpiresIn)
		assert.Equal(t, "hanako@example.com", resp.Account.Email)
		assert.Equal(t, "hanako", resp.Account.Username)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		_, err := flow.Signup(ctx, &dto.SignupRequest{
			Email:    "hanako@example.com",
			Password: "another password",
		}, metadata)
		require.Error(t, err)
		assert.True(t, IsEmailAlreadyExists(err))
	})

	t.Run("duplicate check is case insensitive", func(t *testing.T) {
		_, err := flow.Signup(ctx, &dto.SignupRequest{
			Email:    "HANAKO@example.com",
			Password: "another password",
		}, metadata)
		require.Error(t, err)
		assert.True(t, IsEmailAlreadyExists(err))
	})

	t.Run("keeps explicit username", func(t *testing.T) {
		resp, err := flow.Signup(ctx, &dto.SignupRequest{
			Username: "designfan",
			Email:    "taro@example.com",
			Password: "correct horse battery",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, "designfan", resp.Account.Username)
	})
}

func TestLogin(t *testing.T) {
	flow, _ := newAuthFlowForTest(t)
	ctx := context.Background()
	metadata := &ClientMetadata{IPAddress: "127.0.0.1", RequestID: "test-req"}

	_, err := flow.Signup(ctx, &dto.SignupRequest{
		Email:    "hanako@example.com",
		Password: "correct horse battery",
	}, metadata)
	require.NoError(t, err)

	t.Run("succeeds with valid credentials", func(t *testing.T) {
		resp, err := flow.Login(ctx, &dto.LoginRequest{
			Email:    "Hanako@Example.com",
			Password: "correct horse battery",
		}, metadata)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "hanako@example.com", resp.Account.Email)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, errUnknown := flow.Login(ctx, &dto.LoginRequest{
			Email:    "nobody@example.com",
			Password: "whatever",
		}, metadata)
		require.Error(t, errUnknown)
		assert.True(t, IsInvalidCredentials(errUnknown))

		_, errWrongPass := flow.Login(ctx, &dto.LoginRequest{
			Email:    "hanako@example.com",
			Password: "wrong password",
		}, metadata)
		require.Error(t, errWrongPass)
		assert.True(t, IsInvalidCredentials(errWrongPass))

		var beUnknown, beWrong *BusinessError
		require.ErrorAs(t, errUnknown, &beUnknown)
		require.ErrorAs(t, errWrongPass, &beWrong)
		assert.Equal(t, beUnknown.Code, beWrong.Code)
		assert.Equal(t, beUnknown.Message, beWrong.Message)
	})

}

func TestLoginStampsLastLogin(t *testing.T) {
	flow, accountRepo := newAuthFlowForTest(t)
	ctx := context.Background()
	metadata := &ClientMetadata{RequestID: "test-req"}

	_, err := flow.Signup(ctx, &dto.SignupRequest{
		Email:    "taro@example.com",
		Password: "correct horse battery",
	}, metadata)
	require.NoError(t, err)

	before, err := accountRepo.ByEmail(ctx, "taro@example.com")
	require.NoError(t, err)
	assert.Nil(t, before.LastLoginAt)

	_, err = flow.Login(ctx, &dto.LoginRequest{
		Email:    "taro@example.com",
		Password: "correct horse battery",
	}, metadata)
	require.NoError(t, err)

	after, err := accountRepo.ByEmail(ctx, "taro@example.com")
	require.NoError(t, err)
	assert.NotNil(t, after.LastLoginAt)
}

func TestLoginInactiveAccount(t *testing.T) {
	flow, accountRepo := newAuthFlowForTest(t)
	ctx := context.Background()
	metadata := &ClientMetadata{RequestID: "test-req"}

	_, err := flow.Signup(ctx, &dto.SignupRequest{
		Email:    "dormant@example.com",
		Password: "correct horse battery",
	}, metadata)
	require.NoError(t, err)

	account, err := accountRepo.ByEmail(ctx, "dormant@example.com")
	require.NoError(t, err)
	require.NotNil(t, account)

	account.IsActive = utils.ToPtr(false)
	require.NoError(t, accountRepo.Save(ctx, account))

	_, err = flow.Login(ctx, &dto.LoginRequest{
		Email:    "dormant@example.com",
		Password: "correct horse battery",
	}, metadata)
	require.Error(t, err)
	assert.True(t, IsInvalidCredentials(err) || IsAccountInactive(err))

	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "INVALID_CREDENTIALS", be.Code)
}
