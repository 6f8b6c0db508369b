package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenActive(t *testing.T) {
	now := time.Now()

	token := RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, token.Active(now))

	token.IsRevoked = true
	assert.False(t, token.Active(now), "revoked tokens are dead even before expiry")

	expired := RefreshToken{ExpiresAt: now.Add(-time.Minute)}
	assert.False(t, expired.Active(now))
}
