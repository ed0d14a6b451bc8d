package errors

import "github.com/pkg/errors"

var (
	// account errors
	ErrNoActiveAccount = errors.New("no active account")
	ErrAccountNotFound = errors.New("account not found")

	// credential errors
	ErrUnauthenticated = errors.New("no stored credentials for account")
	ErrReauthRequired  = errors.New("token expired and no refresh token available, re-authentication required")
	ErrRefreshFailed   = errors.New("token refresh failed")

	// session errors
	ErrConnectionFailed = errors.New("connection to mail server failed")
	ErrNotConnected     = errors.New("session is not connected")
	ErrNoClientStored   = errors.New("failed to store session handle")

	// addressing errors
	ErrInvalidAddress = errors.New("invalid message address")
)
