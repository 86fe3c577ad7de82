package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/railwatch/crtm/internal/output"
)

// Console prints messages to a terminal
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	colors *output.Colors
}

// NewConsole creates a console transport
func NewConsole(w io.Writer, colors *output.Colors) *Console {
	if colors == nil {
		colors = output.NewColors(output.ColorNever)
	}
	return &Console{w: w, colors: colors}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := msg.Title
	if title == "" {
		title = DefaultTitle
	}
	stamp := ""
	if !msg.Time.IsZero() {
		stamp = msg.Time.Format("15:04:05")
	}

	_, err := fmt.Fprintf(c.w, "%s %s\n", c.colors.Muted(stamp), c.colors.Header(title))
	if err != nil {
		return err
	}
	for _, line := range strings.Split(msg.Content, "\n") {
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintf(c.w, "  %s\n", line); err != nil {
			return err
		}
	}
	return nil
}
