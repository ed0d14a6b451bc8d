package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/net/proxy"

	"github.com/mailroomhq/mailroom/config"
	er "github.com/mailroomhq/mailroom/internal/errors"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/logger"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/tracing"
	"github.com/mailroomhq/mailroom/internal/utils"
)

const (
	defaultListLimit = 50

	loginTimeout = 30 * time.Second
	fetchTimeout = 60 * time.Second

	// idleRestartInterval keeps the server-side IDLE younger than the
	// 30-minute drop window most servers enforce.
	idleRestartInterval = 25 * time.Minute
)

type imapSession struct {
	log     logger.Logger
	cfg     *config.IMAPConfig
	account *models.Account
	creds   models.Credentials
	sender  interfaces.SMTPSender

	// mu serializes protocol operations. At most one command runs on the
	// underlying connection at a time.
	mu     sync.Mutex
	client *client.Client
	closed bool
}

// NewIMAPSession binds a session to one account and one set of credentials.
// It performs no I/O; the connection is dialed on first use.
func NewIMAPSession(log logger.Logger, cfg *config.IMAPConfig, account *models.Account, creds models.Credentials, sender interfaces.SMTPSender) interfaces.MailSession {
	return &imapSession{
		log:     log,
		cfg:     cfg,
		account: account,
		creds:   creds,
		sender:  sender,
	}
}

func (s *imapSession) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPSession.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *imapSession) ListMessages(ctx context.Context, folder string, limit, offset uint32) ([]*models.EmailSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPSession.ListMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagFolder(span, folder)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	mbox, err := s.client.Select(folder, true)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to select folder %s", folder)
	}

	if limit == 0 {
		limit = defaultListLimit
	}
	total := mbox.Messages
	if total == 0 || offset >= total {
		return []*models.EmailSummary{}, nil
	}

	// Page from the newest message backwards.
	high := total - offset
	low := uint32(1)
	if high > limit {
		low = high - limit + 1
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(low, high)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	s.client.Timeout = fetchTimeout
	go func() {
		done <- s.client.Fetch(seqSet, items, messages)
	}()

	summaries := make([]*models.EmailSummary, 0, high-low+1)
	for msg := range messages {
		summaries = append(summaries, s.buildSummary(msg, folder, section))
	}

	err = <-done
	s.client.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to fetch messages from %s", folder)
	}

	// Fetch returns ascending sequence numbers; callers want newest first.
	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}

	span.LogKV("result.count", len(summaries))
	return summaries, nil
}

func (s *imapSession) GetMessage(ctx context.Context, folder string, uid uint32) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPSession.GetMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagFolder(span, folder)
	span.SetTag("uid", uid)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if _, err := s.client.Select(folder, true); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to select folder %s", folder)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	s.client.Timeout = fetchTimeout
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}

	err := <-done
	s.client.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to fetch message %d from %s", uid, folder)
	}
	if msg == nil {
		err = errors.Errorf("message with UID %d not found in %s", uid, folder)
		tracing.TraceErr(span, err)
		return nil, err
	}

	return s.buildMessage(msg, folder, section), nil
}

func (s *imapSession) Send(ctx context.Context, email *models.OutgoingEmail) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPSession.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)

	messageID, raw, err := s.sender.Send(ctx, s.account, s.creds, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.LogKV("message_id", messageID)

	// The message left the server already; a failed Sent-folder copy is
	// logged, not surfaced.
	if err := s.appendToSent(ctx, raw); err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("failed to append sent message to %s for account %s: %v", models.FolderSent, s.account.ID, err)
	}
	return nil
}

func (s *imapSession) appendToSent(ctx context.Context, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		return err
	}
	return s.client.Append(models.FolderSent, []string{imap.SeenFlag}, utils.Now(), bytes.NewBuffer(raw))
}

func (s *imapSession) SetFlags(ctx context.Context, folder string, uid uint32, flags []string, set bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPSession.SetFlags")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagFolder(span, folder)
	span.SetTag("uid", uid)
	span.SetTag("set", set)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if _, err := s.client.Select(folder, false); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to select folder %s", folder)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	var op imap.FlagsOp = imap.RemoveFlags
	if set {
		op = imap.AddFlags
	}
	item := imap.FormatFlagsOp(op, true)

	if err := s.client.UidStore(seqSet, item, canonicalFlags(flags), nil); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to store flags on message %d", uid)
	}
	return nil
}

func (s *imapSession) MoveMessage(ctx context.Context, folder string, uid uint32, destFolder string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPSession.MoveMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagFolder(span, folder)
	span.SetTag("uid", uid)
	span.SetTag("destination", destFolder)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if _, err := s.client.Select(folder, false); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to select folder %s", folder)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	if err := s.client.UidMove(seqSet, destFolder); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to move message %d to %s", uid, destFolder)
	}
	return nil
}

func (s *imapSession) FolderStats(ctx context.Context, folder string) (*models.FolderStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPSession.FolderStats")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagFolder(span, folder)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	status, err := s.client.Status(folder, []imap.StatusItem{imap.StatusMessages, imap.StatusUnseen})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to get status of folder %s", folder)
	}

	return &models.FolderStats{
		Folder:   folder,
		Total:    status.Messages,
		Unseen:   status.Unseen,
		LastSync: utils.NowPtr(),
	}, nil
}

// AwaitChange parks the connection in IDLE on the given folder. It returns
// true when the folder grew, false when maxWait elapsed quietly, and an error
// when the connection broke. The handle lock is held for the full wait, so no
// other operation can run on this session while it is watching.
func (s *imapSession) AwaitChange(ctx context.Context, folder string, maxWait time.Duration) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPSession.AwaitChange")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagFolder(span, folder)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}

	mbox, err := s.client.Select(folder, true)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, errors.Wrapf(err, "failed to select folder %s", folder)
	}
	count := mbox.Messages

	updates := make(chan client.Update, 100)
	s.client.Updates = updates
	defer func() { s.client.Updates = nil }()

	stop := make(chan struct{})
	var stopOnce sync.Once
	stopIdle := func() { stopOnce.Do(func() { close(stop) }) }

	idleDone := make(chan error, 1)
	go func() {
		idleDone <- s.client.Idle(stop, &client.IdleOptions{
			LogoutTimeout: idleRestartInterval,
		})
	}()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			stopIdle()
			<-idleDone
			return false, ctx.Err()

		case <-timer.C:
			stopIdle()
			if err := <-idleDone; err != nil {
				tracing.TraceErr(span, err)
				return false, errors.Wrap(err, "idle ended with error")
			}
			return false, nil

		case update := <-updates:
			u, ok := update.(*client.MailboxUpdate)
			if !ok || u.Mailbox == nil {
				continue
			}
			if u.Mailbox.Messages > count {
				span.LogKV("new_messages", u.Mailbox.Messages-count)
				stopIdle()
				<-idleDone
				return true, nil
			}
			// Expunges shrink the count; track it so the next growth
			// past the new baseline still registers.
			count = u.Mailbox.Messages

		case err := <-idleDone:
			if err != nil {
				tracing.TraceErr(span, err)
				return false, errors.Wrap(err, "idle ended with error")
			}
			return false, nil
		}
	}
}

func (s *imapSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.client == nil {
		return nil
	}

	err := s.client.Logout()
	s.client = nil
	if err != nil {
		return errors.Wrap(err, "failed to log out")
	}
	return nil
}

// ensureConnected dials and authenticates if no live connection exists.
// Callers must hold s.mu.
func (s *imapSession) ensureConnected(ctx context.Context) error {
	if s.closed {
		return errors.Wrapf(er.ErrNotConnected, "account %s", s.account.ID)
	}
	if s.client != nil {
		return nil
	}
	return s.connect(ctx)
}

func (s *imapSession) connect(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPSession.connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.account.ID)
	span.SetTag("server", s.account.ImapHost)
	span.SetTag("port", s.account.ImapPort)
	span.SetTag("security", s.account.Security)

	dialer, err := s.dialer()
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	addr := s.account.ImapAddr()
	tlsConfig := &tls.Config{ServerName: s.account.ImapHost}

	var c *client.Client
	switch s.account.Security {
	case enum.EmailSecuritySSL, enum.EmailSecurityTLS:
		c, err = client.DialWithDialerTLS(dialer, addr, tlsConfig)
	default:
		c, err = client.DialWithDialer(dialer, addr)
		if err == nil && s.account.Security == enum.EmailSecurityStartTLS {
			err = c.StartTLS(tlsConfig)
		}
	}
	if err != nil {
		err = errors.Wrapf(er.ErrConnectionFailed, "connect %s: %v", addr, err)
		tracing.TraceErr(span, err)
		return err
	}

	caps, err := c.Capability()
	if err != nil {
		c.Logout()
		err = errors.Wrapf(er.ErrConnectionFailed, "capabilities %s: %v", addr, err)
		tracing.TraceErr(span, err)
		return err
	}
	s.log.Debugf("[%s] server capabilities: %v", s.account.ID, caps)

	c.Timeout = loginTimeout
	switch creds := s.creds.(type) {
	case models.PasswordCredentials:
		err = c.Login(creds.User, creds.Password)
	case models.OAuth2Credentials:
		err = c.Authenticate(newXOAuth2Client(creds.User, creds.AccessToken))
	default:
		err = errors.Errorf("unsupported credential kind %T", s.creds)
	}
	if err != nil {
		c.Logout()
		err = errors.Wrapf(er.ErrConnectionFailed, "login as %s: %v", s.creds.Username(), err)
		tracing.TraceErr(span, err)
		return err
	}
	c.Timeout = 0

	s.client = c
	s.log.Debugf("[%s] connected to %s", s.account.ID, addr)
	return nil
}

// dialer returns the TCP dialer for this session, routed through the SOCKS5
// proxy when one is configured.
func (s *imapSession) dialer() (client.Dialer, error) {
	direct := &net.Dialer{
		Timeout:   time.Duration(s.cfg.DialTimeoutSeconds) * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if s.cfg.ProxyURL == "" {
		return direct, nil
	}

	u, err := url.Parse(s.cfg.ProxyURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid proxy url %s", s.cfg.ProxyURL)
	}

	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}

	socks, err := proxy.SOCKS5("tcp", u.Host, auth, direct)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build SOCKS5 dialer for %s", u.Host)
	}
	return socks, nil
}

func (s *imapSession) buildSummary(msg *imap.Message, folder string, section *imap.BodySectionName) *models.EmailSummary {
	summary := &models.EmailSummary{
		Ref:    utils.EncodeMessageRef(s.account.ID, folder, msg.Uid),
		Uid:    msg.Uid,
		Folder: folder,
	}

	if env := msg.Envelope; env != nil {
		summary.Subject = env.Subject
		summary.ToAddresses = addressList(env.To)
		if !env.Date.IsZero() {
			summary.SentAt = utils.ToPtr(env.Date)
		}
		if len(env.From) > 0 {
			summary.FromAddress = env.From[0].Address()
			summary.FromName = env.From[0].PersonalName
		}
	}

	summary.Seen = hasFlag(msg.Flags, imap.SeenFlag)
	summary.Flagged = hasFlag(msg.Flags, imap.FlaggedFlag)

	if body := msg.GetBody(section); body != nil {
		if parsed, err := enmime.ReadEnvelope(body); err == nil {
			summary.Snippet = utils.Snippet(parsed.Text, parsed.HTML)
		}
	}
	return summary
}

func (s *imapSession) buildMessage(msg *imap.Message, folder string, section *imap.BodySectionName) *models.EmailMessage {
	email := &models.EmailMessage{
		Ref:    utils.EncodeMessageRef(s.account.ID, folder, msg.Uid),
		Uid:    msg.Uid,
		Folder: folder,
	}

	if env := msg.Envelope; env != nil {
		email.Subject = env.Subject
		email.MessageID = utils.NormalizeMessageID(env.MessageId)
		email.ToAddresses = addressList(env.To)
		email.CcAddresses = addressList(env.Cc)
		if !env.Date.IsZero() {
			email.SentAt = utils.ToPtr(env.Date)
		}
		if len(env.From) > 0 {
			email.FromAddress = env.From[0].Address()
			email.FromName = env.From[0].PersonalName
		}
	}

	email.Seen = hasFlag(msg.Flags, imap.SeenFlag)
	email.Flagged = hasFlag(msg.Flags, imap.FlaggedFlag)

	if body := msg.GetBody(section); body != nil {
		parsed, err := enmime.ReadEnvelope(body)
		if err != nil {
			s.log.Warnf("[%s] failed to parse message %d: %v", s.account.ID, msg.Uid, err)
			return email
		}
		email.BodyText = parsed.Text
		email.BodyHTML = parsed.HTML
		for _, att := range parsed.Attachments {
			email.Attachments = append(email.Attachments, models.Attachment{
				FileName:    att.FileName,
				ContentType: att.ContentType,
				Size:        len(att.Content),
			})
		}
	}
	return email
}

func addressList(addrs []*imap.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address())
	}
	return out
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// canonicalFlags maps caller-friendly flag names onto IMAP system flags.
// Unknown values pass through untouched for servers with custom keywords.
func canonicalFlags(flags []string) []interface{} {
	out := make([]interface{}, 0, len(flags))
	for _, f := range flags {
		switch strings.ToLower(strings.TrimPrefix(f, "\\")) {
		case "seen":
			out = append(out, imap.SeenFlag)
		case "flagged":
			out = append(out, imap.FlaggedFlag)
		case "answered":
			out = append(out, imap.AnsweredFlag)
		case "draft":
			out = append(out, imap.DraftFlag)
		case "deleted":
			out = append(out, imap.DeletedFlag)
		default:
			out = append(out, f)
		}
	}
	return out
}
