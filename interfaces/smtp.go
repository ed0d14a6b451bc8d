package interfaces

import (
	"context"

	"github.com/mailroomhq/mailroom/internal/models"
)

// SMTPSender delivers an outgoing email through the account's SMTP server.
// It returns the generated Message-ID and the raw RFC 5322 message so the
// caller can append a copy to the Sent folder.
type SMTPSender interface {
	Send(ctx context.Context, account *models.Account, creds models.Credentials, email *models.OutgoingEmail) (messageID string, raw []byte, err error)
}
