package models

// Credentials is the closed set of ways a session can authenticate. Values are
// built fresh for every connection attempt and never persisted or cached; the
// two kinds share no fields so a password path can never read a token field.
type Credentials interface {
	Username() string
	credentials()
}

type PasswordCredentials struct {
	User     string
	Password string
}

func (c PasswordCredentials) Username() string { return c.User }
func (c PasswordCredentials) credentials()     {}

type OAuth2Credentials struct {
	User        string
	AccessToken string
}

func (c OAuth2Credentials) Username() string { return c.User }
func (c OAuth2Credentials) credentials()     {}
