package smtp

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/models"
)

func testAccount() *models.Account {
	return &models.Account{
		ID:       "acct_smtp",
		Email:    "sender@example.com",
		AuthKind: enum.AuthPassword,
		SmtpHost: "smtp.example.com",
		SmtpPort: 587,
	}
}

func validEmail() *models.OutgoingEmail {
	return &models.OutgoingEmail{
		FromAddress: "sender@example.com",
		ToAddresses: []string{"to@example.com"},
		Subject:     "hello",
		BodyText:    "plain body",
	}
}

func TestValidateEmail(t *testing.T) {
	sender := &smtpSender{}
	account := testAccount()

	cases := []struct {
		name    string
		mutate  func(e *models.OutgoingEmail)
		wantErr string
	}{
		{"valid", func(e *models.OutgoingEmail) {}, ""},
		{"no recipients", func(e *models.OutgoingEmail) { e.ToAddresses = nil }, "at least one recipient"},
		{"no body", func(e *models.OutgoingEmail) { e.BodyText = "" }, "text or HTML content"},
		{"no subject", func(e *models.OutgoingEmail) { e.Subject = "" }, "subject"},
		{"bad recipient", func(e *models.OutgoingEmail) { e.ToAddresses = []string{"not-an-address"} }, "not valid"},
		{"foreign from address", func(e *models.OutgoingEmail) { e.FromAddress = "other@example.com" }, "does not belong"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			email := validEmail()
			tc.mutate(email)

			err := sender.validateEmail(context.Background(), account, email)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

func TestValidateEmail_FillsEmptyFromAddress(t *testing.T) {
	sender := &smtpSender{}
	email := validEmail()
	email.FromAddress = ""

	err := sender.validateEmail(context.Background(), testAccount(), email)

	assert.NoError(t, err)
	assert.Equal(t, "sender@example.com", email.FromAddress)
}

func TestBuildMessage_PlainText(t *testing.T) {
	sender := &smtpSender{}
	email := validEmail()

	buffer, err := sender.buildMessage(context.Background(), email, "<id@example.com>")

	assert.NoError(t, err)
	raw := buffer.String()
	assert.Contains(t, raw, "From: <sender@example.com>")
	assert.Contains(t, raw, "To: <to@example.com>")
	assert.Contains(t, raw, "Subject: hello")
	assert.Contains(t, raw, "Message-ID: <id@example.com>")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, raw, "plain body")
}

func TestBuildMessage_MultipartAlternative(t *testing.T) {
	sender := &smtpSender{}
	email := validEmail()
	email.BodyHTML = "<p>rich body</p>"

	buffer, err := sender.buildMessage(context.Background(), email, "<id@example.com>")

	assert.NoError(t, err)
	raw := buffer.String()
	assert.Contains(t, raw, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, raw, "text/plain; charset=UTF-8")
	assert.Contains(t, raw, "text/html; charset=UTF-8")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "rich body")
}

func TestAllRecipients_Deduplicates(t *testing.T) {
	email := &models.OutgoingEmail{
		ToAddresses:  []string{"a@example.com", "b@example.com"},
		CcAddresses:  []string{"b@example.com", "c@example.com"},
		BccAddresses: []string{"a@example.com"},
	}

	recipients := allRecipients(email)

	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, recipients)
}

func TestXOAuth2InitialResponse(t *testing.T) {
	auth := &xoauth2Auth{user: "user@example.com", token: "tok"}

	// The initial response is only handed out over TLS
	proto, ir, err := auth.Start(&smtp.ServerInfo{TLS: true})
	assert.NoError(t, err)
	assert.Equal(t, "XOAUTH2", proto)
	assert.Equal(t, "user=user@example.com\x01auth=Bearer tok\x01\x01", string(ir))
	assert.True(t, strings.HasPrefix(string(ir), "user="))
}

func TestXOAuth2RefusesPlaintext(t *testing.T) {
	auth := &xoauth2Auth{user: "user@example.com", token: "tok"}

	_, _, err := auth.Start(&smtp.ServerInfo{TLS: false})
	assert.Error(t, err)
}
