package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"mediawatch/internal/classify"
	"mediawatch/internal/config"
	"mediawatch/internal/logging"
	"mediawatch/internal/services"
	"mediawatch/internal/textutil"
)

// Message is a composed email ready for an SMTP envelope.
type Message struct {
	From string
	To   []string
	Body []byte
}

// SendFunc hands a composed message to an SMTP relay.
type SendFunc func(ctx context.Context, msg Message) error

// EmailOption configures the email notifier.
type EmailOption func(*emailService)

// WithSender replaces the SMTP transport, for tests.
func WithSender(send SendFunc) EmailOption {
	return func(e *emailService) {
		if send != nil {
			e.send = send
		}
	}
}

// WithEmailClock overrides time.Now for the Date header.
func WithEmailClock(now func() time.Time) EmailOption {
	return func(e *emailService) {
		if now != nil {
			e.now = now
		}
	}
}

type emailService struct {
	cfg    config.Email
	send   SendFunc
	now    func() time.Time
	logger *slog.Logger
}

// NewEmailService returns an SMTP notifier that sends one message per
// non-empty category.
func NewEmailService(cfg config.Email, logger *slog.Logger, opts ...EmailOption) Service {
	e := &emailService{cfg: cfg, now: time.Now, logger: logging.NewComponentLogger(logger, "email")}
	e.send = e.sendSMTP
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *emailService) Deliver(ctx context.Context, digest classify.Digest) error {
	var errs []error
	for _, group := range digest.Buckets.Ordered() {
		recipients := e.recipientsFor(group.Category)
		if len(recipients) == 0 {
			logging.WarnWithContext(e.logger, "no recipients for digest category", "email_no_recipients",
				logging.String("category", string(group.Category)),
				logging.Int("facts", len(group.Facts)),
				logging.String(logging.FieldErrorHint, "add email.recipient_groups."+string(group.Category)+" or email.default_recipients"),
				logging.String(logging.FieldImpact, "facts in this category were recorded but not emailed"),
			)
			continue
		}
		subject := fmt.Sprintf("%s (%s)", e.subject(), textutil.DisplayLabel(string(group.Category)))
		if err := e.deliver(ctx, recipients, subject, CategoryBody(group)); err != nil {
			errs = append(errs, fmt.Errorf("email %s digest: %w", group.Category, err))
			continue
		}
		e.logger.Info("digest email sent",
			logging.String("category", string(group.Category)),
			logging.Int("recipients", len(recipients)),
			logging.Int("facts", len(group.Facts)),
		)
	}
	return errors.Join(errs...)
}

func (e *emailService) Test(ctx context.Context) error {
	recipients := e.allRecipients()
	if len(recipients) == 0 {
		return services.Wrap(services.ErrConfiguration, "emit", "email", "no recipients configured", nil)
	}
	return e.deliver(ctx, recipients, e.subject()+" (Test)", "Notification system test\n")
}

func (e *emailService) subject() string {
	if s := strings.TrimSpace(e.cfg.Subject); s != "" {
		return s
	}
	return "New Media Releases"
}

func (e *emailService) recipientsFor(category classify.Category) []string {
	if group := e.cfg.RecipientGroups[string(category)]; len(group) > 0 {
		return group
	}
	return e.cfg.DefaultRecipients
}

func (e *emailService) allRecipients() []string {
	seen := map[string]bool{}
	var out []string
	add := func(list []string) {
		for _, addr := range list {
			if addr = strings.TrimSpace(addr); addr != "" && !seen[strings.ToLower(addr)] {
				seen[strings.ToLower(addr)] = true
				out = append(out, addr)
			}
		}
	}
	add(e.cfg.DefaultRecipients)
	for _, category := range classify.Categories {
		add(e.cfg.RecipientGroups[string(category)])
	}
	return out
}

func (e *emailService) deliver(ctx context.Context, to []string, subject, body string) error {
	msg, err := composeMessage(e.cfg.Sender, to, subject, body, e.now())
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "emit", "email", "compose message", err)
	}
	return e.send(ctx, msg)
}

// composeMessage builds an RFC 5322 plain-text message along with the bare
// envelope addresses.
func composeMessage(from string, to []string, subject, body string, date time.Time) (Message, error) {
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return Message{}, fmt.Errorf("parse sender: %w", err)
	}
	msg := Message{From: sender.Address}
	rcpts := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return Message{}, fmt.Errorf("parse recipient %q: %w", addr, err)
		}
		rcpts = append(rcpts, parsed)
		msg.To = append(msg.To, parsed.Address)
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{sender})
	h.SetAddressList("To", rcpts)
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return Message{}, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return Message{}, fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return Message{}, fmt.Errorf("close message writer: %w", err)
	}
	msg.Body = buf.Bytes()
	return msg, nil
}

// sendSMTP dials the relay, upgrades with STARTTLS when offered, and
// authenticates when a password is configured.
func (e *emailService) sendSMTP(ctx context.Context, msg Message) error {
	host := e.cfg.SMTPServer
	addr := net.JoinHostPort(host, strconv.Itoa(e.cfg.SMTPPort))

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return services.TransportError("emit", "email", fmt.Errorf("dial %s: %w", addr, err))
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return services.TransportError("emit", "email", fmt.Errorf("create SMTP client: %w", err))
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return services.TransportError("emit", "email", fmt.Errorf("SMTP STARTTLS: %w", err))
		}
	}
	if e.cfg.Password != "" {
		username := e.cfg.Username
		if username == "" {
			username = e.cfg.Sender
		}
		if err := client.Auth(smtp.PlainAuth("", username, e.cfg.Password, host)); err != nil {
			return services.Wrap(services.ErrFatal, "emit", "email", "SMTP auth", err)
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(msg.Body); err != nil {
		return fmt.Errorf("write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close email body: %w", err)
	}
	return client.Quit()
}
