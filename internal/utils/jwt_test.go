package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret")

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	userID, err := svc.ExtractUserID(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret")

	expired, err := svc.GenerateTokenWithTTL(42, -time.Second)
	require.NoError(t, err)
	_, err = svc.ExtractUserID(expired)
	assert.Error(t, err)

	zero, err := svc.GenerateToken(0)
	require.NoError(t, err)
	_, err = svc.ExtractUserID(zero)
	assert.Error(t, err)

	_, err = NewJWTService("other").ExtractUserID(zero)
	assert.Error(t, err)
}
