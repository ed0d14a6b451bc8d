package session

import (
	"github.com/emersion/go-sasl"
)

// xoauth2Client implements the SASL XOAUTH2 mechanism for IMAP AUTHENTICATE.
// Initial response format: "user=" {user} "\x01auth=Bearer " {token} "\x01\x01".
type xoauth2Client struct {
	username string
	token    string
}

func newXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	// The only challenge XOAUTH2 sends is an error blob. An empty response
	// makes the server return the final tagged NO.
	return []byte{}, nil
}
