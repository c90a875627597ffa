package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibusisodube/canopay-backend/pkg/config"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "canopay-test",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	storeID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID:        userID,
		ActiveStoreID: &storeID,
		Role:          enums.MemberRoleAdmin,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	require.NotNil(t, claims.ActiveStoreID)
	assert.Equal(t, storeID, *claims.ActiveStoreID)
	assert.Equal(t, enums.MemberRoleAdmin, claims.Role)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestMintAccessTokenValidation(t *testing.T) {
	userID := uuid.New()

	t.Run("missing secret", func(t *testing.T) {
		cfg := testJWTConfig()
		cfg.Secret = ""
		_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: enums.MemberRoleOwner})
		assert.Error(t, err)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: userID, Role: enums.MemberRole("ceo")})
		assert.Error(t, err)
	})

	t.Run("non positive expiry", func(t *testing.T) {
		cfg := testJWTConfig()
		cfg.ExpirationMinutes = 0
		_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: enums.MemberRoleOwner})
		assert.Error(t, err)
	})
}

func TestParseAccessTokenRejections(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	t.Run("expired token", func(t *testing.T) {
		token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{
			UserID: userID,
			Role:   enums.MemberRoleStaff,
		})
		require.NoError(t, err)

		_, err = ParseAccessToken(cfg, token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
			UserID: userID,
			Role:   enums.MemberRoleStaff,
		})
		require.NoError(t, err)

		other := cfg
		other.Secret = "different"
		_, err = ParseAccessToken(other, token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
			UserID: userID,
			Role:   enums.MemberRoleStaff,
		})
		require.NoError(t, err)

		other := cfg
		other.Issuer = "someone-else"
		_, err = ParseAccessToken(other, token)
		assert.Error(t, err)
	})
}
