// Package notify delivers monitoring messages to chat and push services.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/railwatch/crtm/internal/config"
	"github.com/railwatch/crtm/internal/output"
	"github.com/railwatch/crtm/internal/telemetry"
)

// DefaultTitle is used when a message has no title
const DefaultTitle = "12306 ticket monitor"

// ErrRejected is returned when a service answers with an error payload
var ErrRejected = errors.New("notification rejected")

// StatusError reports a non-2xx HTTP response from a notification service
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Message is one notification
type Message struct {
	Title   string
	Time    time.Time
	Content string
}

// Text renders the message as plain text: title, timestamp, then content
func (m Message) Text() string {
	title := m.Title
	if title == "" {
		title = DefaultTitle
	}
	text := title
	if !m.Time.IsZero() {
		text += "\n" + m.Time.Format("2006-01-02 15:04:05")
	}
	if m.Content != "" {
		text += "\n\n" + m.Content
	}
	return text
}

// Notifier is a single delivery transport
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Manager fans a message out to every configured transport
type Manager struct {
	notifiers []Notifier
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewManager creates a manager over the given transports
func NewManager(logger *slog.Logger, notifiers ...Notifier) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		notifiers: notifiers,
		logger:    logger,
		tracer:    telemetry.Tracer("notify"),
	}
}

// Options holds construction settings for transports built from config
type Options struct {
	HTTPClient *http.Client
	Console    io.Writer
	Colors     *output.Colors
	Logger     *slog.Logger
}

// FromConfig builds a manager from notification settings. An empty list
// yields a console-only manager.
func FromConfig(cfgs []config.NotificationConfig, opts Options) (*Manager, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		}
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Colors == nil {
		opts.Colors = output.NewColors(output.ColorAuto)
	}

	if len(cfgs) == 0 {
		cfgs = []config.NotificationConfig{{Type: config.TypeConsole}}
	}

	notifiers := make([]Notifier, 0, len(cfgs))
	for i, cfg := range cfgs {
		var n Notifier
		switch cfg.Type {
		case config.TypeConsole:
			n = NewConsole(opts.Console, opts.Colors)
		case config.TypeLark:
			n = NewLark(opts.HTTPClient, cfg.Webhook, cfg.Secret)
		case config.TypeTelegram:
			n = NewTelegram(opts.HTTPClient, cfg.APIBase, cfg.BotToken, cfg.ChatID)
		case config.TypeWechatWork:
			n = NewWechatWork(opts.HTTPClient, cfg.Webhook)
		case config.TypeBark:
			n = NewBark(opts.HTTPClient, BarkOptions{
				ServerURL: cfg.ServerURL,
				DeviceKey: cfg.DeviceKey,
				Group:     cfg.Group,
				Sound:     cfg.Sound,
				Level:     cfg.Level,
				Icon:      cfg.Icon,
				URL:       cfg.URL,
			})
		case config.TypeSMTP:
			n = NewSMTP(SMTPOptions{
				Host:       cfg.Host,
				Port:       cfg.Port,
				User:       cfg.User,
				Pass:       cfg.Pass,
				From:       cfg.From,
				To:         cfg.To,
				Cc:         cfg.Cc,
				Bcc:        cfg.Bcc,
				ReplyTo:    cfg.ReplyTo,
				Secure:     cfg.Secure,
				RequireTLS: cfg.RequireTLS,
				IgnoreTLS:  cfg.IgnoreTLS,
			})
		default:
			return nil, fmt.Errorf("notifications[%d]: unknown type %q", i, cfg.Type)
		}
		notifiers = append(notifiers, n)
	}
	return NewManager(opts.Logger, notifiers...), nil
}

// Len returns the number of transports
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Names lists the transports in configuration order
func (m *Manager) Names() []string {
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return names
}

// SendAll delivers msg through every transport. A failing transport is
// logged and does not stop the others; all failures are joined in the
// returned error.
func (m *Manager) SendAll(ctx context.Context, msg Message) error {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	ctx, span := m.tracer.Start(ctx, "notify.send_all", trace.WithAttributes(
		attribute.String("notify.title", msg.Title),
		attribute.Int("notify.transports", len(m.notifiers)),
	))
	defer span.End()

	var errs []error
	for _, n := range m.notifiers {
		err := n.Send(ctx, msg)
		telemetry.RecordNotification(ctx, n.Name(), err)
		if err != nil {
			m.logger.Error("notification failed",
				slog.String("transport", n.Name()),
				slog.String("title", msg.Title),
				slog.Any("error", err))
			span.RecordError(err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// postJSON sends payload as JSON and decodes the response body into out
func postJSON(ctx context.Context, client *http.Client, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
