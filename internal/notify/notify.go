// Package notify formats host transitions and delivers them to the
// configured chat channel.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/hazz-dev/hostwatch/internal/status"
)

const sendTimeout = 10 * time.Second

// Message is a rendered notification. Senders pick the variant their
// channel understands.
type Message struct {
	Notification status.Notification
	Text         string
	HTML         string
}

// Sender delivers a message to a channel.
type Sender interface {
	Send(ctx context.Context, channel string, msg Message) error
}

// Label is the name a host is shown under in messages.
func Label(host int) string {
	return fmt.Sprintf("Server-%d", host)
}

// Format renders n as plain text:
//
//	DD.MM.YYYY at HH:MM:SS
//	Server-<index> is 🟢
func Format(n status.Notification, loc *time.Location) string {
	return formatWith(n, loc, Label(n.Host))
}

// FormatHTML is Format with the host label in bold.
func FormatHTML(n status.Notification, loc *time.Location) string {
	return formatWith(n, loc, "<b>"+html.EscapeString(Label(n.Host))+"</b>")
}

func formatWith(n status.Notification, loc *time.Location, label string) string {
	if loc == nil {
		loc = time.Local
	}
	t := n.Timestamp.In(loc)
	return fmt.Sprintf("%s at %s\n%s is %s",
		t.Format("02.01.2006"),
		t.Format("15:04:05"),
		label,
		n.Outcome.Glyph(),
	)
}

// Notifier sends transitions to a single channel.
type Notifier struct {
	sender  Sender
	channel string
	loc     *time.Location
	logger  *slog.Logger
}

// New creates a Notifier. Pass nil loc for local time and nil logger for the default logger.
func New(sender Sender, channel string, loc *time.Location, logger *slog.Logger) *Notifier {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, channel: channel, loc: loc, logger: logger}
}

// Send formats and delivers n. Failures are logged and returned; they never
// affect the stored host status.
func (nt *Notifier) Send(ctx context.Context, n status.Notification) error {
	msg := Message{
		Notification: n,
		Text:         Format(n, nt.loc),
		HTML:         FormatHTML(n, nt.loc),
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := nt.sender.Send(ctx, nt.channel, msg); err != nil {
		nt.logger.Error("sending notification",
			"host", n.Host,
			"status", n.Outcome,
			"channel", nt.channel,
			"error", err,
		)
		return fmt.Errorf("notifying %s: %w", Label(n.Host), err)
	}

	nt.logger.Info("notification sent", "host", n.Host, "status", n.Outcome)
	return nil
}

// LogSender writes messages to a logger instead of a chat service.
type LogSender struct {
	Logger *slog.Logger
}

func (l *LogSender) Send(_ context.Context, channel string, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "channel", channel, "text", msg.Text)
	return nil
}
