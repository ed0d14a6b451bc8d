package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenSet_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresAt time.Time
		expired   bool
	}{
		{"long lived", now.Add(time.Hour), false},
		{"just outside the skew", now.Add(TokenExpirySkew + time.Second), false},
		{"exactly at the skew boundary", now.Add(TokenExpirySkew), true},
		{"inside the skew", now.Add(30 * time.Second), true},
		{"already expired", now.Add(-time.Minute), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := &TokenSet{AccessToken: "at", ExpiresAt: tc.expiresAt}
			assert.Equal(t, tc.expired, tokens.ExpiresWithin(now, TokenExpirySkew))
		})
	}
}

func TestTokenSet_CanRefresh(t *testing.T) {
	assert.True(t, (&TokenSet{RefreshToken: "rt"}).CanRefresh())
	assert.False(t, (&TokenSet{}).CanRefresh())
}
