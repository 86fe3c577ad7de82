package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultSMTPTimeout bounds dialing and each SMTP command
const DefaultSMTPTimeout = 30 * time.Second

// SMTPOptions configures an SMTP mail transport. To, Cc and Bcc take
// comma-separated addresses; From defaults to User.
type SMTPOptions struct {
	Host       string
	Port       int
	User       string
	Pass       string
	From       string
	To         string
	Cc         string
	Bcc        string
	ReplyTo    string
	Secure     *bool
	RequireTLS bool
	IgnoreTLS  bool
	Timeout    time.Duration
}

// implicitTLS reports whether the connection starts with TLS (SMTPS).
// Without an explicit setting this is port 465.
func (o SMTPOptions) implicitTLS() bool {
	if o.Secure != nil {
		return *o.Secure
	}
	return o.Port == 465
}

// tlsPolicy decides how STARTTLS is negotiated on plain connections
func (o SMTPOptions) tlsPolicy() mail.TLSPolicy {
	switch {
	case o.IgnoreTLS:
		return mail.NoTLS
	case o.RequireTLS:
		return mail.TLSMandatory
	default:
		return mail.TLSOpportunistic
	}
}

// SMTP sends notifications as e-mail
type SMTP struct {
	opts SMTPOptions
}

// NewSMTP creates an SMTP transport
func NewSMTP(opts SMTPOptions) *SMTP {
	if opts.From == "" {
		opts.From = opts.User
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSMTPTimeout
	}
	return &SMTP{opts: opts}
}

func (s *SMTP) Name() string { return "smtp" }

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.message(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.opts.User),
		mail.WithPassword(s.opts.Pass),
		mail.WithTimeout(s.opts.Timeout),
		mail.WithTLSPolicy(s.opts.tlsPolicy()),
	}
	if s.opts.implicitTLS() {
		opts = append(opts, mail.WithSSL())
	}

	client, err := mail.NewClient(s.opts.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// message builds the mail: plain text with an HTML alternative
func (s *SMTP) message(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.opts.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(splitAddresses(s.opts.To)...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	if cc := splitAddresses(s.opts.Cc); len(cc) > 0 {
		if err := m.Cc(cc...); err != nil {
			return nil, fmt.Errorf("invalid cc address: %w", err)
		}
	}
	if bcc := splitAddresses(s.opts.Bcc); len(bcc) > 0 {
		if err := m.Bcc(bcc...); err != nil {
			return nil, fmt.Errorf("invalid bcc address: %w", err)
		}
	}
	if s.opts.ReplyTo != "" {
		if err := m.ReplyTo(s.opts.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}

	subject := msg.Title
	if subject == "" {
		subject = DefaultTitle
	}
	m.Subject(subject)
	if !msg.Time.IsZero() {
		m.SetDateWithValue(msg.Time)
	}

	text := mailBody(msg)
	m.SetBodyString(mail.TypeTextPlain, text)
	m.AddAlternativeString(mail.TypeTextHTML,
		`<div style="font-family: Arial, sans-serif; line-height: 1.6;">`+
			strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")+`</div>`)
	return m, nil
}

// mailBody is the timestamp line followed by the content
func mailBody(msg Message) string {
	if msg.Time.IsZero() {
		return msg.Content
	}
	return msg.Time.Format("2006-01-02 15:04:05") + "\n\n" + msg.Content
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
