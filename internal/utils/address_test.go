package utils

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	er "github.com/mailroomhq/mailroom/internal/errors"
)

func TestEncodeMessageRef(t *testing.T) {
	assert.Equal(t, "acct_123:INBOX:42", EncodeMessageRef("acct_123", "INBOX", 42))
	assert.Equal(t, "a:f:0", EncodeMessageRef("a", "f", 0))
}

func TestParseMessageRef_RoundTrip(t *testing.T) {
	cases := []struct {
		accountID string
		folder    string
		uid       uint32
	}{
		{"acct_123", "INBOX", 42},
		{"a", "Sent", 0},
		{"acct_9", "[Gmail]/All Mail", 4294967295},
	}

	for _, tc := range cases {
		// Act
		accountID, folder, uid, err := ParseMessageRef(EncodeMessageRef(tc.accountID, tc.folder, tc.uid))

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, tc.accountID, accountID)
		assert.Equal(t, tc.folder, folder)
		assert.Equal(t, tc.uid, uid)
	}
}

func TestParseMessageRef_Invalid(t *testing.T) {
	cases := []string{
		"",
		"acct_123",
		"acct_123:INBOX",
		"acct_123:INBOX:",
		"acct_123:INBOX:abc",
		"acct_123:INBOX:-1",
		"acct_123:INBOX:42:junk", // extra segment lands in the uid field
		"acct_123:INBOX:99999999999999999999",
	}

	for _, ref := range cases {
		_, _, _, err := ParseMessageRef(ref)
		assert.Error(t, err, "ref %q", ref)
		assert.True(t, errors.Is(err, er.ErrInvalidAddress), "ref %q", ref)
	}
}
