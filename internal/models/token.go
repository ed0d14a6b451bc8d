package models

import "time"

// TokenExpirySkew is subtracted from a token's lifetime when judging expiry,
// so a token that would die mid-operation is refreshed up front.
const TokenExpirySkew = 60 * time.Second

// TokenSet holds one account's OAuth tokens. A set without a refresh token
// cannot be renewed; once it expires the account must re-authenticate.
type TokenSet struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ExpiresWithin reports whether the access token is expired, or will be
// within the given skew of now.
func (t *TokenSet) ExpiresWithin(now time.Time, skew time.Duration) bool {
	return !t.ExpiresAt.After(now.Add(skew))
}

func (t *TokenSet) CanRefresh() bool {
	return t.RefreshToken != ""
}
