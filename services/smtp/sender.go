package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/tracing"
	"github.com/mailroomhq/mailroom/internal/utils"
)

type smtpSender struct{}

// NewSMTPSender returns a sender that speaks to the account's SMTP server
// directly. It holds no connection state; every Send dials fresh.
func NewSMTPSender() interfaces.SMTPSender {
	return &smtpSender{}
}

func (s *smtpSender) Send(ctx context.Context, account *models.Account, creds models.Credentials, email *models.OutgoingEmail) (string, []byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPSender.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	if err := s.validateEmail(ctx, account, email); err != nil {
		tracing.TraceErr(span, err)
		return "", nil, err
	}

	domain := utils.ExtractDomainFromEmail(account.Email)
	messageID := utils.GenerateMessageID(domain, "")

	buffer, err := s.buildMessage(ctx, email, messageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", nil, err
	}

	recipients := allRecipients(email)
	if err := s.sendToServer(ctx, account, creds, email.FromAddress, recipients, buffer); err != nil {
		tracing.TraceErr(span, err)
		return "", nil, err
	}

	return messageID, buffer.Bytes(), nil
}

func (s *smtpSender) validateEmail(ctx context.Context, account *models.Account, email *models.OutgoingEmail) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPSender.validateEmail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if email == nil {
		return errors.New("email cannot be nil")
	}

	if email.FromAddress == "" {
		email.FromAddress = account.Email
	}
	if email.FromAddress != account.Email {
		return errors.Errorf("from address %s does not belong to account %s", email.FromAddress, account.Email)
	}

	validation := mailvalidate.ValidateEmailSyntax(email.FromAddress)
	if !validation.IsValid {
		return errors.New("from address is not valid")
	}

	if len(email.ToAddresses) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, addr := range append(append(append([]string{}, email.ToAddresses...), email.CcAddresses...), email.BccAddresses...) {
		if v := mailvalidate.ValidateEmailSyntax(addr); !v.IsValid {
			return errors.Errorf("recipient address %s is not valid", addr)
		}
	}

	if email.BodyText == "" && email.BodyHTML == "" {
		return errors.New("email must have either text or HTML content")
	}

	if email.Subject == "" {
		return errors.New("email must have a subject")
	}

	return nil
}

// buildMessage renders the outgoing email as an RFC 5322 message. Text plus
// HTML becomes multipart/alternative, a single body is written inline.
func (s *smtpSender) buildMessage(ctx context.Context, email *models.OutgoingEmail, messageID string) (*bytes.Buffer, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPSender.buildMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	buffer := bytes.NewBuffer(nil)
	headers := s.buildHeaders(email, messageID)

	if email.BodyText != "" && email.BodyHTML != "" {
		writer := multipart.NewWriter(buffer)
		headers["Content-Type"] = "multipart/alternative; boundary=" + writer.Boundary()
		writeHeaders(headers, buffer)

		if err := addBodyPart(writer, "text/plain", email.BodyText); err != nil {
			return nil, err
		}
		if err := addBodyPart(writer, "text/html", email.BodyHTML); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
		return buffer, nil
	}

	body := email.BodyText
	contentType := "text/plain"
	if body == "" {
		body = email.BodyHTML
		contentType = "text/html"
	}

	headers["Content-Type"] = contentType + "; charset=UTF-8"
	headers["Content-Transfer-Encoding"] = "quoted-printable"
	writeHeaders(headers, buffer)

	qp := quotedprintable.NewWriter(buffer)
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, err
	}
	return buffer, qp.Close()
}

func (s *smtpSender) buildHeaders(email *models.OutgoingEmail, messageID string) map[string]string {
	from := mail.Address{Name: email.FromName, Address: email.FromAddress}

	headers := map[string]string{
		"From":         from.String(),
		"To":           formatAddressList(email.ToAddresses),
		"Subject":      email.Subject,
		"Message-ID":   messageID,
		"Date":         time.Now().Format(time.RFC1123Z),
		"MIME-Version": "1.0",
	}
	if len(email.CcAddresses) > 0 {
		headers["Cc"] = formatAddressList(email.CcAddresses)
	}
	return headers
}

func (s *smtpSender) sendToServer(ctx context.Context, account *models.Account, creds models.Credentials, from string, recipients []string, buffer *bytes.Buffer) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPSender.sendToServer")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("smtp_server", account.SmtpHost)
	span.LogKV("smtp_port", account.SmtpPort)

	addr := account.SmtpAddr()
	auth := smtpAuth(account, creds)

	switch account.Security {
	case enum.EmailSecuritySSL, enum.EmailSecurityTLS:
		return s.sendWithImplicitTLS(ctx, addr, account.SmtpHost, auth, from, recipients, buffer)
	case enum.EmailSecurityStartTLS:
		return s.sendWithSTARTTLS(ctx, addr, account.SmtpHost, auth, from, recipients, buffer)
	default:
		// Plain SMTP, upgraded opportunistically when the server offers it.
		if err := smtp.SendMail(addr, auth, from, recipients, buffer.Bytes()); err != nil {
			err = errors.Wrap(err, "failed to send email")
			tracing.TraceErr(span, err)
			return err
		}
		return nil
	}
}

func (s *smtpSender) sendWithImplicitTLS(ctx context.Context, addr, host string, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPSender.sendWithImplicitTLS")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		err = errors.Wrap(err, "failed to connect to SMTP server")
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		err = errors.Wrap(err, "failed to create SMTP client")
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	return s.deliver(span, client, auth, from, recipients, buffer)
}

func (s *smtpSender) sendWithSTARTTLS(ctx context.Context, addr, host string, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "SMTPSender.sendWithSTARTTLS")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		err = errors.Wrap(err, "failed to connect to SMTP server")
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		err = errors.Wrap(err, "failed to create SMTP client")
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		err = errors.Wrap(err, "failed to start TLS")
		tracing.TraceErr(span, err)
		return err
	}

	return s.deliver(span, client, auth, from, recipients, buffer)
}

// deliver runs the post-handshake SMTP conversation on an open client.
func (s *smtpSender) deliver(span opentracing.Span, client *smtp.Client, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	if err := client.Auth(auth); err != nil {
		err = errors.Wrap(err, "SMTP authentication failed")
		tracing.TraceErr(span, err)
		return err
	}

	if err := client.Mail(from); err != nil {
		err = errors.Wrap(err, "SMTP MAIL command failed")
		tracing.TraceErr(span, err)
		return err
	}

	for _, recipient := range recipients {
		if err := client.Rcpt(recipient); err != nil {
			err = errors.Wrapf(err, "SMTP RCPT command failed for %s", recipient)
			tracing.TraceErr(span, err)
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		err = errors.Wrap(err, "SMTP DATA command failed")
		tracing.TraceErr(span, err)
		return err
	}

	if _, err = writer.Write(buffer.Bytes()); err != nil {
		err = errors.Wrap(err, "failed to write message data")
		tracing.TraceErr(span, err)
		return err
	}

	if err = writer.Close(); err != nil {
		err = errors.Wrap(err, "failed to finalize message data")
		tracing.TraceErr(span, err)
		return err
	}

	return client.Quit()
}

func smtpAuth(account *models.Account, creds models.Credentials) smtp.Auth {
	switch c := creds.(type) {
	case models.PasswordCredentials:
		return smtp.PlainAuth("", c.User, c.Password, account.SmtpHost)
	case models.OAuth2Credentials:
		return &xoauth2Auth{user: c.User, token: c.AccessToken}
	default:
		return nil
	}
}

func addBodyPart(writer *multipart.Writer, contentType, content string) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType + "; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create %s part", contentType)
	}

	qp := quotedprintable.NewWriter(part)
	if _, err = qp.Write([]byte(content)); err != nil {
		return errors.Wrapf(err, "failed to write %s content", contentType)
	}
	return qp.Close()
}

func writeHeaders(headers map[string]string, buffer *bytes.Buffer) {
	for k, v := range headers {
		buffer.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	buffer.WriteString("\r\n")
}

func formatAddressList(addresses []string) string {
	formatted := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		formatted = append(formatted, (&mail.Address{Address: addr}).String())
	}
	return strings.Join(formatted, ", ")
}

func allRecipients(email *models.OutgoingEmail) []string {
	recipients := make([]string, 0, len(email.ToAddresses)+len(email.CcAddresses)+len(email.BccAddresses))
	recipients = append(recipients, email.ToAddresses...)
	recipients = append(recipients, email.CcAddresses...)
	recipients = append(recipients, email.BccAddresses...)
	return utils.UniqueEmails(recipients)
}
