package smtp

import (
	"fmt"
	"net/smtp"

	"github.com/pkg/errors"
)

// xoauth2Auth implements the SASL XOAUTH2 mechanism for net/smtp.
// Initial response format: "user=" {user} "\x01auth=Bearer " {token} "\x01\x01".
type xoauth2Auth struct {
	user  string
	token string
}

func (a *xoauth2Auth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS {
		return "", nil, errors.New("xoauth2: refusing to send token over plaintext connection")
	}
	ir := fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", a.user, a.token)
	return "XOAUTH2", []byte(ir), nil
}

func (a *xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		// The server sent an error challenge. An empty response makes it
		// return the final error status.
		return []byte{}, nil
	}
	return nil, nil
}
