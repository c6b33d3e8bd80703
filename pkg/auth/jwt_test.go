package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	userID := uuid.New()

	token, err := svc.Generate(userID, RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", time.Hour).Generate(uuid.New(), RoleMember)
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	svc.expiry = -time.Minute

	token, err := svc.Generate(uuid.New(), RoleService)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	_, err := svc.Validate("not.a.token")
	assert.Error(t, err)
}
