package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/dataset-forge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

var fixedTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
	assert.Error(t, err)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateAndValidate(t *testing.T) {
	t.Parallel()

	svc := newJWTService(testSecret, fixedClock(fixedTime))
	token, err := svc.GenerateToken(context.Background(), "pipeline-bot", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "pipeline-bot", claims.Subject)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateToken_Invalid(t *testing.T) {
	t.Parallel()

	svc := newJWTService(testSecret, fixedClock(fixedTime))
	_, err := svc.GenerateToken(context.Background(), "", time.Hour)
	assert.Error(t, err)
	_, err = svc.GenerateToken(context.Background(), "bot", 0)
	assert.Error(t, err)
}

func TestValidateToken_Failures(t *testing.T) {
	t.Parallel()

	issuer := newJWTService(testSecret, fixedClock(fixedTime))
	valid, err := issuer.GenerateToken(context.Background(), "bot", time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "bot",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	notBefore, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "bot",
		NotBefore: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
		ExpiresAt: jwt.NewNumericDate(fixedTime.Add(2 * time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		svc   *hmacJWTService
		token string
		want  error
	}{
		{"expired", newJWTService(testSecret, fixedClock(fixedTime.Add(2*time.Hour))), valid, ErrExpiredToken},
		{"within clock skew", newJWTService(testSecret, fixedClock(fixedTime.Add(61*time.Minute))), valid, nil},
		{"wrong secret", newJWTService("another-secret-that-is-long-enough-xx", fixedClock(fixedTime)), valid, ErrInvalidToken},
		{"malformed", issuer, "not.a.token", ErrInvalidToken},
		{"no expiry", issuer, noExpiry, ErrInvalidToken},
		{"not yet valid", issuer, notBefore, ErrTokenNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateToken(context.Background(), tt.token)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
